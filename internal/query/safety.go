package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

// Verdict is the outcome of a safety check.
type Verdict struct {
	Flagged    bool
	Categories []string
}

// SafetyChecker screens raw query text.
type SafetyChecker interface {
	Check(ctx context.Context, text string) (Verdict, error)
}

// NoopChecker passes everything.
type NoopChecker struct{}

// Check implements SafetyChecker.
func (NoopChecker) Check(context.Context, string) (Verdict, error) {
	return Verdict{}, nil
}

// ModerationConfig configures a ModerationChecker.
type ModerationConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// ModerationChecker calls an OpenAI-compatible /v1/moderations endpoint.
type ModerationChecker struct {
	cfg    ModerationConfig
	client *http.Client
}

// NewModerationChecker creates a checker. The HTTP client has no timeout
// of its own; the classifier bounds each call through the context.
func NewModerationChecker(cfg ModerationConfig) (*ModerationChecker, error) {
	if cfg.BaseURL == "" {
		return nil, rverrors.ConfigError("moderation base URL is required", nil)
	}
	if cfg.APIKey == "" {
		return nil, rverrors.New(rverrors.ErrCodeMissingAPIKey, "moderation API key is required", nil)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &ModerationChecker{
		cfg: cfg,
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		}},
	}, nil
}

type moderationRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// Check implements SafetyChecker.
func (m *ModerationChecker) Check(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(moderationRequest{Model: m.cfg.Model, Input: text})
	if err != nil {
		return Verdict{}, fmt.Errorf("marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("create moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return Verdict{}, rverrors.Upstream("moderation", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Verdict{}, rverrors.UpstreamStatus("moderation", resp.StatusCode, string(msg))
	}

	var out moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("decode moderation response: %w", err)
	}
	if len(out.Results) == 0 {
		return Verdict{}, fmt.Errorf("moderation response has no results")
	}

	r := out.Results[0]
	v := Verdict{Flagged: r.Flagged}
	for name, hit := range r.Categories {
		if hit {
			v.Categories = append(v.Categories, name)
		}
	}
	sort.Strings(v.Categories)
	return v, nil
}
