package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/api/request"
	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/core"
	"github.com/probuild/gateway/internal/webhook"
)

// Webhook handles endpoint management and manual dispatch endpoints.
type Webhook struct {
	svc  *core.WebhookService
	disp *webhook.Dispatcher
}

// NewWebhook creates a new Webhook handler.
func NewWebhook(svc *core.WebhookService, disp *webhook.Dispatcher) *Webhook {
	return &Webhook{svc: svc, disp: disp}
}

// Trigger performs one delivery attempt and reports its terminal
// outcome. A failed delivery is a structured success=false result, not
// an error status; retries are the job of an external scheduler reading
// the delivery log.
func (h *Webhook) Trigger(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	var req request.TriggerWebhook
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.disp.Dispatch(r.Context(), caller.TenantID, req.WebhookID, req.EventType, req.Payload)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeDispatchResult(w, res)
}

// Test delivers the reserved synthetic event through the exact
// production dispatch path.
func (h *Webhook) Test(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	var req request.TestWebhook
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.disp.Test(r.Context(), caller.TenantID, req.WebhookID)
	if err != nil {
		writeDispatchError(w, err)
		return
	}

	writeDispatchResult(w, res)
}

func writeDispatchResult(w http.ResponseWriter, res *webhook.Result) {
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success":            res.Success,
		"status":             res.Status,
		"processing_time_ms": res.Duration.Milliseconds(),
	})
}

func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhook.ErrUnsupportedEvent), errors.Is(err, webhook.ErrInactive):
		response.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		response.WriteCoreError(w, err)
	}
}

// Create registers a new endpoint. The signing secret is included in
// this response only; subsequent reads never return it.
func (h *Webhook) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	var req request.CreateWebhook
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.Create(r.Context(), caller.TenantID, req.URL, req.Events, req.TimeoutSeconds)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	resp := map[string]any{
		"id":              ep.ID,
		"url":             ep.URL,
		"secret":          ep.Secret,
		"events":          ep.Events,
		"timeout_seconds": ep.TimeoutSeconds,
		"active":          ep.Active,
		"created_at":      ep.CreatedAt,
	}
	response.WriteJSON(w, http.StatusCreated, resp)
}

// List lists the tenant's endpoints with cursor-based pagination.
func (h *Webhook) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	pg := request.ParsePagination(r)

	eps, hasMore, err := h.svc.List(r.Context(), caller.TenantID, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(eps) > 0 {
		nextCursor = eps[len(eps)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, eps, nextCursor, hasMore)
}

// Get retrieves an endpoint by ID.
func (h *Webhook) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.Endpoint(r.Context(), caller.TenantID, id)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, ep)
}

// Update edits an endpoint's target, subscriptions, timeout, and
// active flag.
func (h *Webhook) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateWebhook
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.Update(r.Context(), caller.TenantID, id, req.URL, req.Events, req.TimeoutSeconds, req.Active)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, ep)
}

// Delete removes an endpoint and its delivery log.
func (h *Webhook) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), caller.TenantID, id); err != nil {
		response.WriteCoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Deliveries lists the endpoint's delivery log.
func (h *Webhook) Deliveries(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())

	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	pg := request.ParsePagination(r)
	ds, hasMore, err := h.svc.ListDeliveries(r.Context(), caller.TenantID, id, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(ds) > 0 {
		nextCursor = ds[len(ds)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, ds, nextCursor, hasMore)
}
