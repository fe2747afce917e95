package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"movie not found", rverrors.New(rverrors.ErrCodeMovieNotFound, "movie not found", nil), ErrCodeMovieNotFound},
		{"corrupt index", rverrors.New(rverrors.ErrCodeCorruptIndex, "corrupt", nil), ErrCodeCatalogNotFound},
		{"embedding", rverrors.EmbeddingFailed(errors.New("boom")), ErrCodeEmbeddingFailed},
		{"upstream network", rverrors.Upstream("ollama", errors.New("refused")), ErrCodeTimeout},
		{"validation", rverrors.ValidationError("bad id", nil), ErrCodeInvalidParams},
		{"wrapped structured", fmt.Errorf("search: %w", rverrors.New(rverrors.ErrCodeMovieNotFound, "gone", nil)), ErrCodeMovieNotFound},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"plain", errors.New("mystery"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("nope"), ErrCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := rverrors.New(rverrors.ErrCodeCorruptIndex, "catalog failed integrity check", nil).
		WithSuggestion("re-import the catalog")

	got := MapError(err)

	assert.Contains(t, got.Message, "integrity check")
	assert.Contains(t, got.Message, "re-import the catalog")
}
