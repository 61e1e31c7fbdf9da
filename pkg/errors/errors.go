// Package errors defines the sentinel errors shared by the services, maps
// them to HTTP status codes and writes the JSON error body every endpoint
// answers with.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
)

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrInputTooLarge            = errors.New("input too large")
	ErrKnowledgeBaseUnavailable = errors.New("knowledge base unavailable")
	ErrReloadInProgress         = errors.New("knowledge base reload already in progress")
	ErrCacheUnavailable         = errors.New("cache unavailable")
	ErrRateLimited              = errors.New("rate limit exceeded")
	ErrInternal                 = errors.New("internal error")
	ErrTimeout                  = errors.New("operation timed out")
)

// AppError carries a sentinel, a client-facing message and the HTTP status to
// respond with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err to a status code. An AppError's own status wins.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrReloadInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrKnowledgeBaseUnavailable), errors.Is(err, ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

var codes = []struct {
	sentinel error
	code     string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrInputTooLarge, "input_too_large"},
	{ErrKnowledgeBaseUnavailable, "kb_unavailable"},
	{ErrReloadInProgress, "reload_in_progress"},
	{ErrCacheUnavailable, "cache_unavailable"},
	{ErrRateLimited, "rate_limited"},
	{ErrTimeout, "timeout"},
	{context.DeadlineExceeded, "timeout"},
}

// Code returns a stable machine-readable name for err's sentinel.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return c.code
		}
	}
	return "internal"
}

// Body is the JSON error payload.
type Body struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Write responds with err's status code and Body. Messages of unclassified
// 500 errors are replaced so internals do not leak to clients.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatusCode(err)
	body := Body{
		Error: Message(err),
		Code:  Code(err),
	}
	if status == http.StatusInternalServerError && body.Code == "internal" {
		body.Error = "internal error"
	}
	if r != nil {
		body.RequestID = logger.RequestID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
