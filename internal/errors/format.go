package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// FormatForUser returns a message suitable for end users, with the
// suggestion appended when present.
func FormatForUser(err error) string {
	e, ok := As(err)
	if !ok {
		return err.Error()
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Suggestion)
	}
	return e.Message
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	e, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v\n", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  Hint: %s\n", e.Suggestion)
	}
	fmt.Fprintf(&b, "  Code: %s\n", e.Code)
	return b.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   Category          `json:"category"`
	Retryable  bool              `json:"retryable"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// FormatJSON renders an error as a JSON object for tool and API responses.
func FormatJSON(err error) ([]byte, error) {
	e, ok := As(err)
	if !ok {
		e = New(ErrCodeInternal, err.Error(), err)
	}
	return json.Marshal(jsonError{
		Code:       e.Code,
		Message:    e.Message,
		Category:   e.Category,
		Retryable:  e.Retryable,
		Suggestion: e.Suggestion,
		Details:    e.Details,
	})
}

// FormatForLog returns slog attributes describing err.
func FormatForLog(err error) []slog.Attr {
	e, ok := As(err)
	if !ok {
		return []slog.Attr{slog.String("error", err.Error())}
	}

	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("error", e.Message),
		slog.String("category", string(e.Category)),
		slog.Bool("retryable", e.Retryable),
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, e.Details[k]))
	}
	return attrs
}
