package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/probuild/gateway/internal/model"
	"github.com/probuild/gateway/internal/platform"
)

// DefaultWebhookTimeoutSeconds applies when an endpoint is registered
// without an explicit per-call timeout.
const DefaultWebhookTimeoutSeconds = 10

// MaxDeliveryBodyBytes caps how much of a receiver's response body is
// retained in the delivery log.
const MaxDeliveryBodyBytes = 4096

// WebhookService manages webhook endpoints and their append-only
// delivery log. Counter updates and log inserts happen in a single
// transaction so the two can never diverge.
type WebhookService struct {
	db DB
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(db DB) *WebhookService {
	return &WebhookService{db: db}
}

// Create registers a delivery endpoint for the tenant. The shared
// signing secret is generated here and returned on the model exactly
// once; list and get responses never include it.
func (s *WebhookService) Create(ctx context.Context, tenantID, url string, events []string, timeoutSeconds int) (*model.WebhookEndpoint, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", ErrValidation)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: at least one event type is required", ErrValidation)
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultWebhookTimeoutSeconds
	}

	id := platform.NewID()
	secret := platform.NewSecret(32)

	_, err := s.db.Exec(ctx,
		`INSERT INTO webhook_endpoints (id, tenant_id, url, secret, events, timeout_seconds, active, failure_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, 0, now(), now())`,
		id, tenantID, url, secret, events, timeoutSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("insert webhook endpoint: %w", err)
	}

	ep := &model.WebhookEndpoint{
		ID:             id,
		TenantID:       tenantID,
		URL:            url,
		Secret:         secret,
		Events:         events,
		TimeoutSeconds: timeoutSeconds,
		Active:         true,
	}
	err = s.db.QueryRow(ctx, "SELECT created_at, updated_at FROM webhook_endpoints WHERE id = $1", id).
		Scan(&ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get webhook endpoint timestamps: %w", err)
	}

	return ep, nil
}

// Endpoint retrieves an endpoint by ID, scoped to the tenant. The
// loaded model includes the signing secret for the dispatcher's use.
func (s *WebhookService) Endpoint(ctx context.Context, tenantID, id string) (*model.WebhookEndpoint, error) {
	var ep model.WebhookEndpoint
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, url, secret, events, timeout_seconds, active, failure_count, last_success_at, last_failure_at, created_at, updated_at
		 FROM webhook_endpoints WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Events, &ep.TimeoutSeconds, &ep.Active,
		&ep.FailureCount, &ep.LastSuccessAt, &ep.LastFailureAt, &ep.CreatedAt, &ep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("webhook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook endpoint %s: %w", id, err)
	}
	return &ep, nil
}

// List retrieves the tenant's endpoints with cursor-based pagination.
func (s *WebhookService) List(ctx context.Context, tenantID string, limit int, cursor string) ([]model.WebhookEndpoint, bool, error) {
	query := `SELECT id, tenant_id, url, secret, events, timeout_seconds, active, failure_count, last_success_at, last_failure_at, created_at, updated_at
	          FROM webhook_endpoints WHERE tenant_id = $1`
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
		return nil, false, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var eps []model.WebhookEndpoint
	for rows.Next() {
		var ep model.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &ep.Events, &ep.TimeoutSeconds, &ep.Active,
			&ep.FailureCount, &ep.LastSuccessAt, &ep.LastFailureAt, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
			return nil, false, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		eps = append(eps, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate webhook endpoints: %w", err)
	}

	hasMore := len(eps) > limit
	if hasMore {
		eps = eps[:limit]
	}
	return eps, hasMore, nil
}

// Update modifies the endpoint's target, subscriptions, timeout, and
// active flag. The signing secret is immutable; rotating it means
// replacing the endpoint.
func (s *WebhookService) Update(ctx context.Context, tenantID, id, url string, events []string, timeoutSeconds int, active bool) (*model.WebhookEndpoint, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultWebhookTimeoutSeconds
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_endpoints SET url = $1, events = $2, timeout_seconds = $3, active = $4, updated_at = now()
		 WHERE id = $5 AND tenant_id = $6`,
		url, events, timeoutSeconds, active, id, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("update webhook endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("webhook %s: %w", id, ErrNotFound)
	}
	return s.Endpoint(ctx, tenantID, id)
}

// Delete removes an endpoint and, via the FK cascade, its delivery log.
func (s *WebhookService) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM webhook_endpoints WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete webhook endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordDelivery appends the delivery row and applies the matching
// endpoint counter update in one transaction: success resets
// failure_count and stamps last_success_at, failure increments the
// counter and stamps last_failure_at.
func (s *WebhookService) RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = platform.NewID()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delivery tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO webhook_deliveries (id, endpoint_id, event_type, status, response_status, response_body, error, attempted_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.EndpointID, d.EventType, d.Status, d.ResponseStatus, d.ResponseBody, d.Error, d.AttemptedAt, d.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}

	if d.Status == model.DeliverySuccess {
		_, err = tx.Exec(ctx,
			`UPDATE webhook_endpoints SET failure_count = 0, last_success_at = now() WHERE id = $1`,
			d.EndpointID,
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE webhook_endpoints SET failure_count = failure_count + 1, last_failure_at = now() WHERE id = $1`,
			d.EndpointID,
		)
	}
	if err != nil {
		return fmt.Errorf("update endpoint counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delivery tx: %w", err)
	}
	return nil
}

// ListDeliveries retrieves the endpoint's delivery log with
// cursor-based pagination.
func (s *WebhookService) ListDeliveries(ctx context.Context, tenantID, endpointID string, limit int, cursor string) ([]model.WebhookDelivery, bool, error) {
	// Tenant check first so a foreign endpoint ID reads as not found.
	if _, err := s.Endpoint(ctx, tenantID, endpointID); err != nil {
		return nil, false, err
	}

	query := `SELECT id, endpoint_id, event_type, status, response_status, response_body, error, attempted_at, completed_at
	          FROM webhook_deliveries WHERE endpoint_id = $1`
	args := []any{endpointID}
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
		return nil, false, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var ds []model.WebhookDelivery
	for rows.Next() {
		var d model.WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EndpointID, &d.EventType, &d.Status, &d.ResponseStatus, &d.ResponseBody, &d.Error, &d.AttemptedAt, &d.CompletedAt); err != nil {
			return nil, false, fmt.Errorf("scan delivery: %w", err)
		}
		ds = append(ds, d)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate deliveries: %w", err)
	}

	hasMore := len(ds) > limit
	if hasMore {
		ds = ds[:limit]
	}
	return ds, hasMore, nil
}
