// Package records is the gateway's contract with the platform record
// service. Records are opaque JSON; the gateway only enforces that
// every call carries a tenant filter.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Collections exposed through the gateway.
const (
	CollectionProjects  = "projects"
	CollectionEstimates = "estimates"
	CollectionInvoices  = "invoices"
)

// ErrMissingTenant is returned when a call is attempted without a
// tenant id. No request leaves the gateway unscoped.
var ErrMissingTenant = errors.New("records: tenant id is required")

// Store reads and writes business records on behalf of a tenant.
type Store interface {
	List(ctx context.Context, tenantID, collection string) ([]json.RawMessage, error)
	Create(ctx context.Context, tenantID, collection string, body json.RawMessage) (json.RawMessage, error)
}

// Client is an HTTP Store against the platform record service.
type Client struct {
	baseURL    string
	serviceKey string
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

// NewClient creates a record service client authenticated with the
// gateway's service key.
func NewClient(baseURL, serviceKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List retrieves the tenant's records in the collection.
func (c *Client) List(ctx context.Context, tenantID, collection string) ([]json.RawMessage, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	endpoint := fmt.Sprintf("%s/v1/%s?tenant_id=%s", c.baseURL, collection, tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("records: build request: %w", err)
	}
	c.setHeaders(req, tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records: list %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(collection, resp)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("records: decode %s list: %w", collection, err)
	}
	return items, nil
}

// Create writes one record into the tenant's collection and returns the
// stored representation.
func (c *Client) Create(ctx context.Context, tenantID, collection string, body json.RawMessage) (json.RawMessage, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	endpoint := fmt.Sprintf("%s/v1/%s", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("records: build request: %w", err)
	}
	c.setHeaders(req, tenantID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("records: create %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(collection, resp)
	}

	stored, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("records: read %s response: %w", collection, err)
	}
	return stored, nil
}

func (c *Client) setHeaders(req *http.Request, tenantID string) {
	req.Header.Set("X-Service-Key", c.serviceKey)
	req.Header.Set("X-Tenant-ID", tenantID)
}

func unexpectedStatus(collection string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("records: %s call returned status %d: %s", collection, resp.StatusCode, body)
}
