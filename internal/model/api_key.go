package model

import "time"

// APIKey represents a tenant-scoped API key for the programmatic API.
// The raw key is never stored; KeyHash holds its sha256 digest and
// KeyPrefix a short non-secret slice for display.
type APIKey struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	Name             string     `json:"name"`
	KeyHash          string     `json:"-"`
	KeyPrefix        string     `json:"key_prefix,omitempty"`
	Scopes           []string   `json:"scopes"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RateLimitPerHour int        `json:"rate_limit_per_hour"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

// NewAPIKey pairs a freshly issued key record with its raw secret. It is
// returned only from KeyService.Issue; everywhere else only the
// digest-carrying APIKey exists, so a stored key can never be
// re-serialized as if it still carried the secret.
type NewAPIKey struct {
	Key    *APIKey
	RawKey string
}
