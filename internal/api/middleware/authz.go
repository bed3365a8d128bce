package middleware

import (
	"fmt"
	"net/http"

	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/core"
)

// RequireScope returns middleware that checks the key has the given
// resource:action scope. Write scopes are distinct from read scopes; a
// read-only key is rejected here before any mutation is attempted.
func RequireScope(resource, action string) func(http.Handler) http.Handler {
	target := resource + ":" + action
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetKeyIdentity(r.Context())
			if identity == nil || !core.HasScope(identity.Scopes, target) {
				response.WriteCoreError(w, fmt.Errorf("%w: requires %s", core.ErrForbidden, target))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
