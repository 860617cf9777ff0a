package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/roach88/beatlab/internal/blob"
	"github.com/roach88/beatlab/internal/generate"
	"github.com/roach88/beatlab/internal/store"
)

// Error codes in the {error:{code,message}} envelope.
const (
	CodeBadRequest       = "bad_request"
	CodeInvalidJSON      = "invalid_json"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeConflict         = "conflict"
	CodeGone             = "gone"
	CodeValidation       = "validation_failed"
	CodeTooLarge         = "payload_too_large"
	CodeInvalidAudio     = "invalid_audio"
	CodeAIUnavailable    = "ai_unavailable"
	CodeUpstream         = "upstream_error"
	CodeStorage          = "storage_error"
	CodeInternal         = "internal"
)

// Error is an HTTP error with a stable code. Handlers return it and the
// router renders it as the JSON envelope.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is the error response body.
type Envelope struct {
	Error *Error `json:"error"`
}

func newError(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

func badRequest(format string, args ...any) *Error {
	return newError(http.StatusBadRequest, CodeBadRequest, format, args...)
}

// asError maps domain errors onto HTTP errors. Anything unrecognised is an
// internal error whose cause is logged but not exposed.
func asError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var genErr *generate.Error
	if errors.As(err, &genErr) {
		if genErr.Code == generate.CodeInvalidRequest {
			return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: genErr.Message, Err: err}
		}
		return &Error{Status: http.StatusBadGateway, Code: CodeUpstream, Message: genErr.Message, Err: err}
	}
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return &Error{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: "request body too large", Err: err}
	case errors.Is(err, store.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found", Err: err}
	case errors.Is(err, store.ErrExpired):
		return &Error{Status: http.StatusGone, Code: CodeGone, Message: "share expired", Err: err}
	case errors.Is(err, blob.ErrExpired):
		return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "signed url expired", Err: err}
	case errors.Is(err, blob.ErrBadSignature):
		return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: "invalid signature", Err: err}
	case errors.Is(err, blob.ErrInvalidKey):
		return &Error{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: "invalid object key", Err: err}
	}
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, e *Error) {
	writeJSON(w, e.Status, Envelope{Error: e})
}
