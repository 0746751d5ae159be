package httpmw

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

// Caller is the authenticated identity: session issuance lives in the
// auth service, so here a bearer token plus the gateway-injected user
// and tenant headers are trusted as-is.
type Caller struct {
	Token    string
	UserID   int64
	TenantID int64
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}

		uid, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || uid <= 0 {
			http.Error(w, `{"error":"invalid X-User-ID"}`, http.StatusUnauthorized)
			return
		}
		tid, err := strconv.ParseInt(r.Header.Get("X-Tenant-ID"), 10, 64)
		if err != nil || tid <= 0 {
			http.Error(w, `{"error":"invalid X-Tenant-ID"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity, Caller{
			Token:    strings.TrimSpace(auth[7:]),
			UserID:   uid,
			TenantID: tid,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func Identity(ctx context.Context) Caller {
	if v := ctx.Value(ctxKeyIdentity); v != nil {
		if c, ok := v.(Caller); ok {
			return c
		}
	}
	return Caller{}
}
