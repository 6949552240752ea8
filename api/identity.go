package api

import (
	"context"
	"net/http"

	"github.com/warp/wallet-engine/wallet"
)

// UserHeader carries the authenticated account id, set by the upstream
// gateway. The wallet trusts the channel, not the client: these routes
// must never be exposed without the gateway in front.
const UserHeader = "X-Wallet-User"

type ctxKey int

const userIDKey ctxKey = iota

// RequireUser rejects requests that arrive without an authenticated
// account id and stores the id in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Missing account identity", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, wallet.UserID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) wallet.UserID {
	id, _ := r.Context().Value(userIDKey).(wallet.UserID)
	return id
}
