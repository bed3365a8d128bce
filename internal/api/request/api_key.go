package request

import "time"

// CreateAPIKey holds the request body for issuing an API key.
type CreateAPIKey struct {
	KeyName          string     `json:"key_name" validate:"required,min=1,max=255"`
	Permissions      []string   `json:"permissions" validate:"required,min=1"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RateLimitPerHour int        `json:"rate_limit_per_hour,omitempty" validate:"omitempty,min=1"`
}
