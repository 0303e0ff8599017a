// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the matching pipeline over REST: document uploads, job
// lifecycle, match queries and admin recomputes, keeping HTTP concerns out
// of the usecase layer.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Raw backend
// errors never leak: unknown errors collapse to a generic 500 envelope.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		code = http.StatusUnsupportedMediaType
		codeStr = "UNSUPPORTED_FORMAT"
	case errors.Is(err, domain.ErrEmptyDocument):
		code = http.StatusUnprocessableEntity
		codeStr = "EMPTY_DOCUMENT"
	case errors.Is(err, domain.ErrBackendUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "BACKEND_UNAVAILABLE"
	case errors.Is(err, domain.ErrScoring), errors.Is(err, domain.ErrParseFailure):
		code = http.StatusServiceUnavailable
		codeStr = "SCORING_FAILED"
	default:
		msg = "internal error"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: msg, Details: details}})
}
