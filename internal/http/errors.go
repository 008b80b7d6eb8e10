package http

import (
	"errors"
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/storage"
)

var validationErrors = []error{
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrEmptyCategory,
	core.ErrEmptyPaymentMethod,
	core.ErrInvalidPaymentDay,
	ledger.ErrInvalidHorizon,
	errBadKind,
}

// errorStatus maps store and domain errors to HTTP status codes. An unknown
// account is a missing resource on reads but invalid input on writes, so the
// caller picks its status.
func errorStatus(err error, unknownAccount int) int {
	switch {
	case errors.Is(err, core.ErrUnknownAccount):
		return unknownAccount
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateAccount), errors.Is(err, storage.ErrAccountInUse):
		return http.StatusConflict
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// wantsJSON reports whether the client should get JSON rather than HTML.
func wantsJSON(r *http.Request, p *RequestBodyParser) bool {
	if p != nil && p.IsJSON() {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// fail writes err with the given status. Server errors are logged with
// detail and reported to the client generically.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, status int, err error) {
	logger := log.FromContext(r.Context())
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err)
		message = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldPath, r.URL.Path, log.FieldError, err)
	}

	if wantsJSON(r, p) {
		JSONError(status, message).Write(w)
		return
	}
	ErrorResponse(status, message).Write(w)
}

// joinedErrors flattens an errors.Join result.
func joinedErrors(err error) []error {
	if err == nil {
		return nil
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}
