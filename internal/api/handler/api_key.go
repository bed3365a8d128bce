package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/api/request"
	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/core"
)

// APIKey handles key issuance, validation, and management endpoints.
type APIKey struct {
	keys *core.KeyService
	auth *core.AuthService
}

// NewAPIKey creates a new APIKey handler.
func NewAPIKey(keys *core.KeyService, auth *core.AuthService) *APIKey {
	return &APIKey{keys: keys, auth: auth}
}

// Validate checks the X-API-Key header and reports the key's identity
// and limits. Unknown, expired, and revoked keys all read the same.
func (h *APIKey) Validate(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("X-API-Key")
	if key != "" {
		middleware.SetUsageKeyHash(r.Context(), core.HashKey(key))
	}

	ac, err := h.auth.Authorize(r.Context(), key)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":       true,
		"tenant_id":   ac.TenantID,
		"permissions": ac.Scopes,
		"rate_limit":  ac.RateLimitPerHour,
	})
}

// Create issues a new API key for the caller's tenant. The raw key is
// returned once in the response and never again.
func (h *APIKey) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	var req request.CreateAPIKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	nk, err := h.keys.Issue(r.Context(), caller.TenantID, req.KeyName, req.Permissions, req.ExpiresAt, req.RateLimitPerHour)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	// Build the response with the raw key included (shown only once).
	resp := map[string]any{
		"id":                  nk.Key.ID,
		"key_name":            nk.Key.Name,
		"key":                 nk.RawKey,
		"key_prefix":          nk.Key.KeyPrefix,
		"permissions":         nk.Key.Scopes,
		"expires_at":          nk.Key.ExpiresAt,
		"rate_limit_per_hour": nk.Key.RateLimitPerHour,
		"created_at":          nk.Key.CreatedAt,
	}
	response.WriteJSON(w, http.StatusCreated, resp)
}

// List lists the tenant's API keys with cursor-based pagination. Only
// digests and prefixes are stored, so no secret can appear here.
func (h *APIKey) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	pg := request.ParsePagination(r)

	keys, hasMore, err := h.keys.List(r.Context(), caller.TenantID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(keys) > 0 {
		nextCursor = keys[len(keys)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, keys, nextCursor, hasMore)
}

// Get retrieves an API key by ID.
func (h *APIKey) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.keys.GetByID(r.Context(), caller.TenantID, id)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, key)
}

// Revoke deactivates an API key. The record is retained for audit and
// revoking twice is a no-op success.
func (h *APIKey) Revoke(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.keys.Revoke(r.Context(), caller.TenantID, id); err != nil {
		response.WriteCoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
