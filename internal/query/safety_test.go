package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

func TestModerationChecker_Flagged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/moderations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req moderationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "bad words", req.Input)

		_, _ = w.Write([]byte(`{"results":[{"flagged":true,"categories":{"violence":true,"hate":true,"sexual":false}}]}`))
	}))
	defer srv.Close()

	m, err := NewModerationChecker(ModerationConfig{BaseURL: srv.URL + "/", APIKey: "sk-test"})
	require.NoError(t, err)

	v, err := m.Check(context.Background(), "bad words")
	require.NoError(t, err)
	assert.True(t, v.Flagged)
	assert.Equal(t, []string{"hate", "violence"}, v.Categories)
}

func TestModerationChecker_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewModerationChecker(ModerationConfig{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	_, err = m.Check(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, rverrors.ErrCodeUpstreamStatus, rverrors.GetCode(err))
}

func TestNewModerationChecker_RequiresKey(t *testing.T) {
	_, err := NewModerationChecker(ModerationConfig{BaseURL: "http://x"})
	assert.Equal(t, rverrors.ErrCodeMissingAPIKey, rverrors.GetCode(err))
}
