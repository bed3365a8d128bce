package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AuthContext is the result of a successful authorization: the identity
// every downstream query must be scoped by, plus the key's configured
// rate ceiling for the usage accounting layer.
type AuthContext struct {
	KeyID            string
	KeyHash          string
	TenantID         string
	Scopes           []string
	RateLimitPerHour int
}

// AuthService resolves presented API keys. It is the single choke point
// for the gateway's key-authenticated surface.
type AuthService struct {
	db  DB
	now func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(db DB) *AuthService {
	return &AuthService{db: db, now: time.Now}
}

// Authorize validates the presented key. Unknown, revoked, and expired
// keys all fail with ErrInvalidCredential. Scope checks happen per
// route against the returned Scopes. Authorize has no side effects;
// the caller records usage once the outcome is known.
func (s *AuthService) Authorize(ctx context.Context, presentedKey string) (*AuthContext, error) {
	if presentedKey == "" {
		return nil, ErrMissingCredential
	}

	keyHash := HashKey(presentedKey)

	var (
		ac        AuthContext
		active    bool
		expiresAt *time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, scopes, expires_at, rate_limit_per_hour, active FROM api_keys WHERE key_hash = $1`,
		keyHash,
	).Scan(&ac.KeyID, &ac.TenantID, &ac.Scopes, &expiresAt, &ac.RateLimitPerHour, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	if !active {
		return nil, ErrInvalidCredential
	}
	if expiresAt != nil && s.now().After(*expiresAt) {
		return nil, ErrInvalidCredential
	}

	ac.KeyHash = keyHash
	return &ac, nil
}
