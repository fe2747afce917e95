package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error is the structured error type for reelvibe.
// It carries enough context for logging, retry decisions and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_202_CATALOG_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: ...}) works.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error. Category, severity and the retryable flag
// are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error, reusing its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// CatalogUnavailable reports that the catalog store could not serve a query.
// Catalog failures are never masked: results without metadata are misleading.
func CatalogUnavailable(op string, cause error) *Error {
	return New(ErrCodeCatalogUnavailable, "catalog "+op+" failed", cause).
		WithSuggestion("check that the catalog database exists and is readable (reelvibe catalog info)")
}

// EmbeddingFailed reports that the query embedding could not be computed.
func EmbeddingFailed(cause error) *Error {
	return New(ErrCodeEmbeddingFailed, "query embedding failed", cause).
		WithSuggestion("start the embedding service or run with --offline")
}

// Upstream classifies a failed call to an external service. Deadline
// expiry maps to a timeout, anything else to network unavailable.
func Upstream(service string, cause error) *Error {
	if stderrors.Is(cause, context.DeadlineExceeded) {
		return New(ErrCodeUpstreamTimeout, service+" timed out", cause).
			WithDetail("service", service)
	}
	return New(ErrCodeNetworkUnavailable, service+" unreachable", cause).
		WithDetail("service", service)
}

// UpstreamStatus reports a non-2xx response. Only 429 and 5xx are retryable.
func UpstreamStatus(service string, status int, body string) *Error {
	e := New(ErrCodeUpstreamStatus, fmt.Sprintf("%s returned status %d", service, status), nil).
		WithDetail("service", service)
	if len(body) > 200 {
		body = body[:200]
	}
	if body != "" {
		e.WithDetail("body", body)
	}
	e.Retryable = status == http.StatusTooManyRequests || status >= 500
	return e
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable code anywhere in its chain.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" when err is not an *Error.
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
