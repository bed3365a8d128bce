package handler

import (
	"net/http"
	"strconv"

	"github.com/probuild/gateway/internal/api/middleware"
	"github.com/probuild/gateway/internal/api/request"
	"github.com/probuild/gateway/internal/api/response"
	"github.com/probuild/gateway/internal/core"
)

// Usage exposes the tenant's usage records for rate accounting review
// and forensics.
type Usage struct {
	svc *core.UsageService
}

// NewUsage creates a new Usage handler.
func NewUsage(svc *core.UsageService) *Usage {
	return &Usage{svc: svc}
}

// List returns a paginated list of usage records for keys belonging to
// the caller's tenant. Supports method and status filters.
func (h *Usage) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	pg := request.ParsePagination(r)

	filter := core.UsageFilter{
		Method: r.URL.Query().Get("method"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if status, err := strconv.Atoi(s); err == nil {
			filter.Status = status
		}
	}

	recs, hasMore, err := h.svc.ListByTenant(r.Context(), caller.TenantID, filter, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteCoreError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(recs) > 0 {
		nextCursor = recs[len(recs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, recs, nextCursor, hasMore)
}
