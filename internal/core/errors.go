package core

import "errors"

// Error taxonomy for the gateway. Unknown, expired, and revoked keys all
// map to ErrInvalidCredential so callers cannot probe which keys exist.
var (
	ErrMissingCredential = errors.New("missing API key")
	ErrInvalidCredential = errors.New("invalid API key")
	ErrForbidden         = errors.New("insufficient scope")
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limit exceeded")
)
