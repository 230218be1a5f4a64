package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

type userIDContextKey struct{}

// UserIDFromContext returns the authenticated user id set by Authenticate.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey{}).(string)
	return id, ok && id != ""
}

// WithUserID stores an authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// Authenticate never rejects a request. A missing or invalid identity cookie
// leaves the request anonymous.
func Authenticate(engine *goGuard.Engine, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authenticate(engine, opts, r)))
		})
	}
}

func authenticate(engine *goGuard.Engine, opts Options, r *http.Request) context.Context {
	ctx := goGuard.WithClientIP(r.Context(), clientIP(r))
	ctx = goGuard.WithUserAgent(ctx, r.UserAgent())
	if engine == nil {
		return ctx
	}
	token := cookieValue(r, opts.IdentityCookie)
	if token == "" {
		return ctx
	}
	userID, err := engine.ParseIdentity(token)
	if err != nil {
		return ctx
	}
	return WithUserID(ctx, userID)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
