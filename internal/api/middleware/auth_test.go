package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probuild/gateway/internal/core"
)

// keyLookupDB answers the key lookup with the given scopes and rate
// limit, and the hourly count query with used.
func keyLookupDB(scopes []string, rateLimit, used int) *stubDB {
	return &stubDB{
		queryRow: func(sql string, _ []any) pgx.Row {
			if strings.Contains(sql, "count(*)") {
				return stubRow{scan: func(dest ...any) error {
					*(dest[0].(*int)) = used
					return nil
				}}
			}
			return stubRow{scan: func(dest ...any) error {
				*(dest[0].(*string)) = "test-key-1"
				*(dest[1].(*string)) = "test-tenant-1"
				*(dest[2].(*[]string)) = scopes
				*(dest[3].(**time.Time)) = nil
				*(dest[4].(*int)) = rateLimit
				*(dest[5].(*bool)) = true
				return nil
			}}
		},
	}
}

func TestKeyAuth_MissingKey(t *testing.T) {
	// The header check precedes any DB lookup, so a nil DB is safe here.
	handler := KeyAuth(core.NewAuthService(nil), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "missing API key", body["error"])
}

func TestKeyAuth_UnknownKey(t *testing.T) {
	db := &stubDB{queryRow: func(_ string, _ []any) pgx.Row {
		return stubRow{scan: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	handler := KeyAuth(core.NewAuthService(db), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-API-Key", "pbk_unknown")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid API key", body["error"])
}

func TestKeyAuth_Success(t *testing.T) {
	db := keyLookupDB([]string{"projects:read"}, 1000, 10)

	var got *KeyIdentity
	handler := KeyAuth(core.NewAuthService(db), core.NewUsageService(db))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetKeyIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-API-Key", "pbk_valid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "test-tenant-1", got.TenantID)
	assert.Equal(t, core.HashKey("pbk_valid"), got.KeyHash)
	assert.Equal(t, []string{"projects:read"}, got.Scopes)
}

func TestKeyAuth_RateLimited(t *testing.T) {
	// Ceiling 100, already used 100.
	db := keyLookupDB([]string{"projects:read"}, 100, 100)

	handler := KeyAuth(core.NewAuthService(db), core.NewUsageService(db))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/api/projects", nil)
	req.Header.Set("X-API-Key", "pbk_busy")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
}

func TestKeyAuth_ReportsKeyHashOnRejection(t *testing.T) {
	db := &stubDB{queryRow: func(_ string, _ []any) pgx.Row {
		return stubRow{scan: func(_ ...any) error { return pgx.ErrNoRows }}
	}}
	handler := KeyAuth(core.NewAuthService(db), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	info := &usageInfo{}
	ctx := context.WithValue(context.Background(), usageInfoKey, info)
	req := httptest.NewRequest("GET", "/api/projects", nil).WithContext(ctx)
	req.Header.Set("X-API-Key", "pbk_unknown")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// The rejected key's digest is still attributable to the recorder.
	assert.Equal(t, core.HashKey("pbk_unknown"), info.keyHash)
}

func TestGetKeyIdentity_Absent(t *testing.T) {
	assert.Nil(t, GetKeyIdentity(context.Background()))
}
