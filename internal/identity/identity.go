// Package identity is the gateway's contract with the platform
// identity service: verify a caller token, get back tenant and role.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrUnauthenticated is returned when the identity service rejects the
// presented token.
var ErrUnauthenticated = errors.New("identity: token not recognized")

// RoleAdmin is the role required for key and webhook management.
const RoleAdmin = "admin"

// Caller is the verified identity behind a bearer token.
type Caller struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the caller administers their tenant.
func (c *Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Verifier resolves bearer tokens to callers.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

// Client is an HTTP Verifier against the platform identity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates an identity service client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify resolves the token via POST /v1/verify. A 401 from the
// identity service maps to ErrUnauthenticated; anything else
// unexpected is surfaced as an error for the caller to treat as
// internal.
func (c *Client) Verify(ctx context.Context, token string) (*Caller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: verify call: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthenticated
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity: unexpected status %d: %s", resp.StatusCode, body)
	}

	var caller Caller
	if err := json.NewDecoder(resp.Body).Decode(&caller); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	if caller.TenantID == "" {
		return nil, fmt.Errorf("identity: response missing tenant_id")
	}
	return &caller, nil
}
