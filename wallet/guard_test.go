package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_SameAccount_SecondWaiterTimesOut(t *testing.T) {
	// GIVEN: The lock for an account is held
	// WHEN: A second caller tries to acquire it with a short bound
	// THEN: It fails with ErrContention instead of blocking

	g := NewGuard(50 * time.Millisecond)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "u-1")
	require.NoError(t, err)
	defer release()

	_, err = g.Acquire(ctx, "u-1")
	assert.ErrorIs(t, err, ErrContention)
	assert.True(t, IsRetryable(err))
}

func TestGuard_DifferentAccounts_Independent(t *testing.T) {
	// Lock scope is per account. Holding u-1 must not delay u-2.

	g := NewGuard(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := g.Acquire(ctx, "u-1")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := g.Acquire(ctx, "u-2")
	require.NoError(t, err)
	releaseB()
}

func TestGuard_ReleaseAllowsReacquire(t *testing.T) {
	g := NewGuard(50 * time.Millisecond)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "u-1")
	require.NoError(t, err)
	release()

	release, err = g.Acquire(ctx, "u-1")
	require.NoError(t, err)
	release()
}

func TestGuard_WaiterProceedsAfterRelease(t *testing.T) {
	// A waiter within the bound gets the lock as soon as the holder
	// releases it.

	g := NewGuard(2 * time.Second)
	ctx := context.Background()

	release, err := g.Acquire(ctx, "u-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := g.Acquire(ctx, "u-1")
		assert.NoError(t, err)
		close(acquired)
		r()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("waiter acquired while the lock was held")
	default:
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after release")
	}
}

func TestGuard_ContextCancellation(t *testing.T) {
	g := NewGuard(5 * time.Second)

	release, err := g.Acquire(context.Background(), "u-1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = g.Acquire(ctx, "u-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuard_EntriesCleanedUpAtZeroRefs(t *testing.T) {
	// The lock table must not grow with every account ever touched.

	g := NewGuard(50 * time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(ctx, "u-1")
			if err == nil {
				release()
			}
		}()
	}
	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Empty(t, g.locks)
}
