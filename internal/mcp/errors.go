// Package mcp exposes the search engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeCatalogNotFound indicates the catalog is missing or corrupt.
	ErrCodeCatalogNotFound = -32001

	// ErrCodeEmbeddingFailed indicates the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or an upstream failed.
	ErrCodeTimeout = -32003

	// ErrCodeMovieNotFound indicates an unknown catalog ID.
	ErrCodeMovieNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if e, ok := rverrors.As(err); ok {
		return mapStructured(e)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func mapStructured(e *rverrors.Error) *MCPError {
	message := e.Message
	if e.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", e.Message, e.Suggestion)
	}

	switch e.Code {
	case rverrors.ErrCodeMovieNotFound:
		return &MCPError{Code: ErrCodeMovieNotFound, Message: message}
	case rverrors.ErrCodeCatalogNotFound, rverrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeCatalogNotFound, Message: message}
	case rverrors.ErrCodeEmbeddingFailed:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	}

	switch e.Category {
	case rverrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case rverrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
