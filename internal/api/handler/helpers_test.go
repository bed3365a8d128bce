package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	mw "github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/identity"
)

const validID = "test-id-1"

// newRequest creates a new HTTP request with a JSON-encoded body.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// newRequestRaw creates a new HTTP request with a raw string body.
func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam adds a chi URL parameter to the request context.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withAdminCaller injects a verified tenant-admin caller.
func withAdminCaller(r *http.Request) *http.Request {
	caller := &identity.Caller{TenantID: "test-tenant-1", UserID: "test-user-1", Role: identity.RoleAdmin}
	return r.WithContext(mw.WithCaller(r.Context(), caller))
}

// withKeyIdentity injects an authorized API key identity.
func withKeyIdentity(r *http.Request, scopes ...string) *http.Request {
	ident := &mw.KeyIdentity{
		KeyID:    "test-key-1",
		KeyHash:  "test-digest-1",
		TenantID: "test-tenant-1",
		Scopes:   scopes,
	}
	return r.WithContext(mw.WithKeyIdentity(r.Context(), ident))
}

// decodeErrorResponse parses the JSON error response body into a map.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}

// stubDB implements core.DB with per-query callbacks.
type stubDB struct {
	queryRow func(sql string, args []any) pgx.Row
	query    func(sql string, args []any) (pgx.Rows, error)
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
}

func (db *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.exec == nil {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	return db.exec(sql, args)
}

func (db *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if db.query == nil {
		return nil, errors.New("unexpected Query")
	}
	return db.query(sql, args)
}

func (db *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return db.queryRow(sql, args)
}

func (db *stubDB) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("unexpected Begin")
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

// stubRows implements pgx.Rows over a list of scan functions, one per row.
type stubRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
}

func newStubRows(scanFuncs ...func(dest ...any) error) *stubRows {
	return &stubRows{scanFuncs: scanFuncs}
}

func (m *stubRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *stubRows) Scan(dest ...any) error {
	fn := m.scanFuncs[m.callIndex]
	m.callIndex++
	return fn(dest...)
}

func (m *stubRows) Err() error                                   { return nil }
func (m *stubRows) Close()                                       {}
func (m *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *stubRows) RawValues() [][]byte                          { return nil }
func (m *stubRows) Values() ([]any, error)                       { return nil, nil }
func (m *stubRows) Conn() *pgx.Conn                              { return nil }
