package httpmw

import (
	"context"
	"net/http"
)

// LastSeenToucher refreshes a user's last-seen timestamp.
type LastSeenToucher interface {
	TouchLastSeen(ctx context.Context, userID int64) error
}

// ActivityMiddleware keeps presence last_seen fresh on any
// authenticated REST call. Best-effort: failures never abort the
// request.
func ActivityMiddleware(presence LastSeenToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := Identity(r.Context()); id.UserID != 0 {
				_ = presence.TouchLastSeen(r.Context(), id.UserID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
