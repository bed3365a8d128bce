package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/core"
)

type contextKey string

const keyIdentityKey contextKey = "key_identity"

// KeyIdentity holds the authorized key's identity for the request.
type KeyIdentity struct {
	KeyID            string
	KeyHash          string
	TenantID         string
	Scopes           []string
	RateLimitPerHour int
}

// KeyAuth returns a middleware that validates the X-API-Key header
// through the authorizer and enforces the key's hourly ceiling against
// the usage store. The digest of the presented key is exposed to the
// surrounding usage recorder whether or not authorization succeeds, so
// rejected calls stay attributable.
func KeyAuth(auth *core.AuthService, usage *core.UsageService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key != "" {
				SetUsageKeyHash(r.Context(), core.HashKey(key))
			}

			ac, err := auth.Authorize(r.Context(), key)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			if ac.RateLimitPerHour > 0 {
				n, err := usage.CountLastHour(r.Context(), ac.KeyHash)
				if err != nil {
					response.WriteError(w, http.StatusInternalServerError, "internal error")
					return
				}
				if n >= ac.RateLimitPerHour {
					response.WriteCoreError(w, core.ErrRateLimited)
					return
				}
			}

			identity := &KeyIdentity{
				KeyID:            ac.KeyID,
				KeyHash:          ac.KeyHash,
				TenantID:         ac.TenantID,
				Scopes:           ac.Scopes,
				RateLimitPerHour: ac.RateLimitPerHour,
			}
			next.ServeHTTP(w, r.WithContext(WithKeyIdentity(r.Context(), identity)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrMissingCredential) || errors.Is(err, core.ErrInvalidCredential) {
		response.WriteCoreError(w, err)
		return
	}
	response.WriteError(w, http.StatusInternalServerError, "internal error")
}

// WithKeyIdentity returns a context carrying the authorized key identity.
func WithKeyIdentity(ctx context.Context, identity *KeyIdentity) context.Context {
	return context.WithValue(ctx, keyIdentityKey, identity)
}

// GetKeyIdentity extracts the KeyIdentity from the request context.
func GetKeyIdentity(ctx context.Context) *KeyIdentity {
	identity, _ := ctx.Value(keyIdentityKey).(*KeyIdentity)
	return identity
}
