package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/records"
)

// maxRecordBodyBytes caps inbound record payloads.
const maxRecordBodyBytes = 1 << 20

// Resource proxies one record collection through the gateway. Every
// store call is scoped by the tenant id from the authorized key; store
// failures surface as a generic internal error with the detail logged
// server-side.
type Resource struct {
	store      records.Store
	collection string
}

// NewResource creates a handler for one record collection.
func NewResource(store records.Store, collection string) *Resource {
	return &Resource{store: store, collection: collection}
}

// List returns the tenant's records in the collection.
func (h *Resource) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetKeyIdentity(r.Context())

	items, err := h.store.List(r.Context(), identity.TenantID, h.collection)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("collection", h.collection).
			Msg("record store list failed")
		response.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if items == nil {
		items = []json.RawMessage{}
	}
	response.WriteJSON(w, http.StatusOK, items)
}

// Create writes one record into the tenant's collection.
func (h *Resource) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetKeyIdentity(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRecordBodyBytes))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if !json.Valid(body) {
		response.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	stored, err := h.store.Create(r.Context(), identity.TenantID, h.collection, body)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("collection", h.collection).
			Msg("record store create failed")
		response.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response.WriteJSON(w, http.StatusCreated, json.RawMessage(stored))
}
