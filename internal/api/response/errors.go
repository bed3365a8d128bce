package response

import (
	"errors"
	"net/http"

	"github.com/probuild/gateway/internal/core"
)

// WriteCoreError maps the gateway error taxonomy to HTTP statuses.
// Anything outside the taxonomy is an unexpected store failure: the
// caller gets a generic message and the detail stays server-side.
func WriteCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrMissingCredential):
		WriteError(w, http.StatusUnauthorized, core.ErrMissingCredential.Error())
	case errors.Is(err, core.ErrInvalidCredential):
		WriteError(w, http.StatusUnauthorized, core.ErrInvalidCredential.Error())
	case errors.Is(err, core.ErrForbidden):
		WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrRateLimited):
		WriteError(w, http.StatusTooManyRequests, core.ErrRateLimited.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
