package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/probuild/gateway/internal/model"
	"github.com/probuild/gateway/internal/platform"
)

// DefaultRateLimitPerHour applies when a key is issued without an
// explicit ceiling.
const DefaultRateLimitPerHour = 1000

// KeyService issues and manages API keys. Raw key material leaves this
// service exactly once, inside the model.NewAPIKey returned from Issue.
type KeyService struct {
	db DB
}

// NewKeyService creates a new KeyService.
func NewKeyService(db DB) *KeyService {
	return &KeyService{db: db}
}

// Issue generates a new API key for the tenant, stores its digest, and
// returns the record together with the raw key. The raw key must be
// shown to the caller exactly once.
func (s *KeyService) Issue(ctx context.Context, tenantID, name string, scopes []string, expiresAt *time.Time, rateLimit int) (*model.NewAPIKey, error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", ErrValidation)
	}
	for _, sc := range scopes {
		if !ValidScope(sc) {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrValidation, sc)
		}
	}

	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	rawKey := "pbk_" + hex.EncodeToString(rawBytes) // 68 chars total

	return s.issueWithKey(ctx, tenantID, name, rawKey, scopes, expiresAt, rateLimit)
}

// IssueWithRawKey stores an API key with a caller-provided raw key value.
// Used for well-known dev/test keys where the raw value must be deterministic.
func (s *KeyService) IssueWithRawKey(ctx context.Context, tenantID, name, rawKey string, scopes []string) (*model.APIKey, error) {
	nk, err := s.issueWithKey(ctx, tenantID, name, rawKey, scopes, nil, 0)
	if err != nil {
		return nil, err
	}
	return nk.Key, nil
}

func (s *KeyService) issueWithKey(ctx context.Context, tenantID, name, rawKey string, scopes []string, expiresAt *time.Time, rateLimit int) (*model.NewAPIKey, error) {
	if len(rawKey) < 12 {
		return nil, fmt.Errorf("%w: raw key must be at least 12 characters", ErrValidation)
	}

	id := platform.NewID()

	keyHash := HashKey(rawKey)
	keyPrefix := rawKey[:12] // "pbk_" + first 8 hex chars

	if rateLimit <= 0 {
		rateLimit = DefaultRateLimitPerHour
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, expires_at, rate_limit_per_hour, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now())`,
		id, tenantID, name, keyHash, keyPrefix, scopes, expiresAt, rateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}

	key := &model.APIKey{
		ID:               id,
		TenantID:         tenantID,
		Name:             name,
		KeyPrefix:        keyPrefix,
		Scopes:           scopes,
		ExpiresAt:        expiresAt,
		RateLimitPerHour: rateLimit,
		Active:           true,
	}
	// Fetch the server-generated created_at.
	err = s.db.QueryRow(ctx, "SELECT created_at FROM api_keys WHERE id = $1", id).Scan(&key.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get api key created_at: %w", err)
	}

	return &model.NewAPIKey{Key: key, RawKey: rawKey}, nil
}

// GetByID retrieves an API key by its ID, scoped to the tenant.
func (s *KeyService) GetByID(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, key_prefix, scopes, expires_at, rate_limit_per_hour, active, created_at, revoked_at
		 FROM api_keys WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyPrefix, &k.Scopes, &k.ExpiresAt, &k.RateLimitPerHour, &k.Active, &k.CreatedAt, &k.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("api key %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	return &k, nil
}

// List retrieves the tenant's API keys with cursor-based pagination.
func (s *KeyService) List(ctx context.Context, tenantID string, limit int, cursor string) ([]model.APIKey, bool, error) {
	query := `SELECT id, tenant_id, name, key_prefix, scopes, expires_at, rate_limit_per_hour, active, created_at, revoked_at
	          FROM api_keys WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyPrefix, &k.Scopes, &k.ExpiresAt, &k.RateLimitPerHour, &k.Active, &k.CreatedAt, &k.RevokedAt); err != nil {
			return nil, false, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate api keys: %w", err)
	}

	hasMore := len(keys) > limit
	if hasMore {
		keys = keys[:limit]
	}
	return keys, hasMore, nil
}

// Revoke deactivates an API key. Revoked records are retained for
// audit. Revoking an already-revoked key is a no-op success.
func (s *KeyService) Revoke(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET active = false, revoked_at = now() WHERE id = $1 AND tenant_id = $2 AND revoked_at IS NULL`,
		id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Already revoked or unknown; only the latter is an error.
		if _, err := s.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}
