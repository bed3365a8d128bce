package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probuild/gateway/internal/core"
)

func usageRow(id string, status int) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = "digest-1"
		*(dest[2].(*string)) = "/api/projects"
		*(dest[3].(*string)) = "GET"
		*(dest[4].(*string)) = "203.0.113.7"
		*(dest[5].(*string)) = "probuild-cli/1.0"
		*(dest[6].(*int)) = status
		*(dest[7].(*time.Time)) = time.Now()
		return nil
	}
}

func TestUsageList_Success(t *testing.T) {
	db := &stubDB{query: func(_ string, args []any) (pgx.Rows, error) {
		return newStubRows(usageRow("usage-1", 200), usageRow("usage-2", 401)), nil
	}}
	h := NewUsage(core.NewUsageService(db))
	rec := httptest.NewRecorder()

	h.List(rec, withAdminCaller(newRequest(http.MethodGet, "/api/v1/usage", nil)))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items   []map[string]any `json:"items"`
		HasMore bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	assert.False(t, body.HasMore)
	assert.Equal(t, float64(401), body.Items[1]["response_status"])
}

func TestUsageList_StatusFilter(t *testing.T) {
	var gotArgs []any
	db := &stubDB{query: func(_ string, args []any) (pgx.Rows, error) {
		gotArgs = args
		return newStubRows(), nil
	}}
	h := NewUsage(core.NewUsageService(db))
	rec := httptest.NewRecorder()

	h.List(rec, withAdminCaller(newRequest(http.MethodGet, "/api/v1/usage?method=POST&status=429", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	// tenant, method, status, limit+1
	require.Len(t, gotArgs, 4)
	assert.Equal(t, "POST", gotArgs[1])
	assert.Equal(t, 429, gotArgs[2])
}
