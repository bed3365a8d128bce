package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/identity"
)

const callerKey contextKey = "caller"

// AdminAuth returns a middleware that verifies the bearer token with
// the identity service and requires the caller to be a tenant admin.
func AdminAuth(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			caller, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrUnauthenticated) {
					response.WriteError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
				response.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}

			if !caller.IsAdmin() {
				response.WriteError(w, http.StatusForbidden, "tenant admin access required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// WithCaller returns a context carrying the verified caller.
func WithCaller(ctx context.Context, caller *identity.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// GetCaller extracts the verified admin caller from the request context.
func GetCaller(ctx context.Context) *identity.Caller {
	caller, _ := ctx.Value(callerKey).(*identity.Caller)
	return caller
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
