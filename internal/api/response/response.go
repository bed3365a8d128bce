// Package response writes the gateway's JSON response shapes.
package response

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON encodes v to the response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a {"error": message} body. The message is the
// caller-facing text; details stay in the server log.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Error: message})
}

// PaginatedResponse wraps a list page with its cursor metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes one page of a cursor-paginated listing.
// NextCursor is the ID of the last item on the page.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
