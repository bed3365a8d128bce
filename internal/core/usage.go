package core

import (
	"context"
	"fmt"

	"github.com/probuild/gateway/internal/model"
	"github.com/probuild/gateway/internal/platform"
)

// UsageService appends and aggregates per-request usage records. Counts
// are taken at the store so replicated gateway instances share them.
type UsageService struct {
	db DB
}

// NewUsageService creates a new UsageService.
func NewUsageService(db DB) *UsageService {
	return &UsageService{db: db}
}

// Record appends one usage row. Called for accepted and rejected
// requests alike.
func (s *UsageService) Record(ctx context.Context, rec *model.UsageRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO usage_records (id, key_hash, endpoint, method, caller_ip, user_agent, response_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		platform.NewID(), rec.KeyHash, rec.Endpoint, rec.Method, rec.CallerIP, rec.UserAgent, rec.ResponseStatus,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// CountLastHour returns how many requests the key digest has made in
// the trailing hour. Used to enforce the per-key hourly ceiling.
func (s *UsageService) CountLastHour(ctx context.Context, keyHash string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM usage_records WHERE key_hash = $1 AND created_at > now() - interval '1 hour'`,
		keyHash,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return n, nil
}

// UsageFilter narrows ListByTenant results.
type UsageFilter struct {
	Method string
	Status int
}

// ListByTenant retrieves usage records for keys belonging to the
// tenant, with cursor-based pagination.
func (s *UsageService) ListByTenant(ctx context.Context, tenantID string, f UsageFilter, limit int, cursor string) ([]model.UsageRecord, bool, error) {
	query := `SELECT u.id, u.key_hash, u.endpoint, u.method, u.caller_ip, u.user_agent, u.response_status, u.created_at
	          FROM usage_records u
	          JOIN api_keys k ON k.key_hash = u.key_hash
	          WHERE k.tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if f.Method != "" {
		query += fmt.Sprintf(` AND u.method = $%d`, argIdx)
		args = append(args, f.Method)
		argIdx++
	}
	if f.Status != 0 {
		query += fmt.Sprintf(` AND u.response_status = $%d`, argIdx)
		args = append(args, f.Status)
		argIdx++
	}
	if cursor != "" {
		query += fmt.Sprintf(` AND u.id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY u.id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list usage records: %w", err)
	}
	defer rows.Close()

	var recs []model.UsageRecord
	for rows.Next() {
		var u model.UsageRecord
		if err := rows.Scan(&u.ID, &u.KeyHash, &u.Endpoint, &u.Method, &u.CallerIP, &u.UserAgent, &u.ResponseStatus, &u.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan usage record: %w", err)
		}
		recs = append(recs, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate usage records: %w", err)
	}

	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}
	return recs, hasMore, nil
}
