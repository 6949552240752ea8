/*
guard.go - Per-account locking discipline

Every mutating operation acquires the account's lock before its
read-then-write sequence, so two concurrent mutations on the SAME account
are strictly serialized while different accounts proceed fully in
parallel. The lock scope is per-account, never global.

Acquisition is bounded: a caller that cannot get the lock in time fails
with ErrContention instead of blocking indefinitely, and is expected to
retry with backoff.
*/
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLockWait bounds how long a mutation waits for the account lock.
const DefaultLockWait = 3 * time.Second

// Guard serializes mutations per account id.
type Guard struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[UserID]*accountLock
}

type accountLock struct {
	sem  chan struct{} // capacity 1
	refs int           // waiters + holder; entry is removed at zero
}

func NewGuard(wait time.Duration) *Guard {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &Guard{wait: wait, locks: make(map[UserID]*accountLock)}
}

// Acquire takes the exclusive lock for userID, waiting at most the
// configured bound. It returns a release function on success.
func (g *Guard) Acquire(ctx context.Context, userID UserID) (func(), error) {
	g.mu.Lock()
	l, ok := g.locks[userID]
	if !ok {
		l = &accountLock{sem: make(chan struct{}, 1)}
		g.locks[userID] = l
	}
	l.refs++
	g.mu.Unlock()

	timer := time.NewTimer(g.wait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			g.unref(userID, l)
		}, nil
	case <-timer.C:
		g.unref(userID, l)
		return nil, fmt.Errorf("account %s: %w", userID, ErrContention)
	case <-ctx.Done():
		g.unref(userID, l)
		return nil, ctx.Err()
	}
}

func (g *Guard) unref(userID UserID, l *accountLock) {
	g.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(g.locks, userID)
	}
	g.mu.Unlock()
}
