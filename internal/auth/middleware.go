package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mistakeknot/recall/internal/core"
)

// Info identifies the authenticated caller for a request.
type Info struct {
	UserID string
	Email  string
	Role   core.Role
}

func (i Info) IsAdmin() bool { return i.Role == core.RoleAdmin }

type ctxKey struct{}

// FromContext returns the caller Info, if the request was authenticated.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}

// WithInfo attaches caller Info to ctx. Used by tests and the embedded
// server path.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// Middleware verifies the Authorization bearer token and stores the
// caller Info in the request context. Requests for which public returns
// true pass through unauthenticated.
func Middleware(issuer *Issuer, public func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public != nil && public(r) {
				next.ServeHTTP(w, r)
				return
			}
			raw := bearerToken(r)
			if raw == "" {
				deny(w, "missing bearer token")
				return
			}
			info, err := issuer.VerifyAccessToken(raw)
			if err != nil {
				deny(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
