// Package http is the JSON API in front of the ledger.
//
// This file implements the builder used by every handler to write
// responses, and the mapping from ledger error kinds to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/editor"
	"kakeibo/internal/store"
)

// Error codes carried in error bodies.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidCredentials = "invalid_credentials"
	CodeValidationFailed   = "validation_failed"
	CodeNotFound           = "not_found"
	CodeRemoteError        = "remote_error"
	CodeInvalidTransition  = "invalid_transition"
	CodeEmailTaken         = "email_taken"
	CodeNotReady           = "not_ready"
	CodeInternal           = "internal_error"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode  int
	headers     map[string]string
	body        any
	raw         []byte
	contentType string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the body, encoded on Write.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	b.raw = nil
	return b
}

// Bytes sets a pre-encoded body.
func (b *ResponseBuilder) Bytes(contentType string, content []byte) *ResponseBuilder {
	b.raw = content
	b.contentType = contentType
	b.body = nil
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.raw != nil {
		w.Header().Set("Content-Type", b.contentType)
		w.WriteHeader(b.statusCode)
		_, _ = w.Write(b.raw)
		return
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, CodeValidationFailed, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, message)
}

// ErrorFor maps an error returned by the ledger, the editor or the session
// provider to its response. Store failures carry their message through;
// unknown errors become a 500 without detail.
func ErrorFor(err error) *ResponseBuilder {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorResponse(http.StatusUnauthorized, CodeInvalidCredentials, err.Error())
	case errors.Is(err, core.ErrUnauthenticated):
		return ErrorResponse(http.StatusUnauthorized, CodeUnauthenticated, err.Error())
	case errors.Is(err, core.ErrValidationFailed):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, editor.ErrInvalidTransition):
		return ErrorResponse(http.StatusConflict, CodeInvalidTransition, err.Error())
	case errors.Is(err, store.ErrEmailTaken):
		return ErrorResponse(http.StatusConflict, CodeEmailTaken, err.Error())
	case core.IsRemote(err):
		var re *core.RemoteError
		errors.As(err, &re)
		return ErrorResponse(http.StatusBadGateway, CodeRemoteError, re.Error())
	default:
		return InternalServerError("internal error")
	}
}
