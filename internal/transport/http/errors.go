package http

import (
	"errors"
	"net/http"

	"arith-live-service/internal/domain"
)

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// classify maps domain errors to an HTTP status and a stable machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotJoinable):
		return http.StatusConflict, "not_joinable"
	case errors.Is(err, domain.ErrNotActive):
		return http.StatusConflict, "not_active"
	case errors.Is(err, domain.ErrDuplicateAnswer):
		return http.StatusConflict, "duplicate_answer"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func newErrorPayload(err error) errorPayload {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return errorPayload{Message: msg, Code: code}
}

// IdentityFunc extracts the opaque external identity of a caller, if any.
type IdentityFunc func(r *http.Request) string

// HeaderIdentity reads the external identity from a request header.
func HeaderIdentity(header string) IdentityFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}
