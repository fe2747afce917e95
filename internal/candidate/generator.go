package candidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/reelvibe/internal/config"
	rverrors "github.com/Aman-CERP/reelvibe/internal/errors"
)

// Generator returns raw model text for a normalized query.
type Generator interface {
	Generate(ctx context.Context, normalized string) (string, error)
	Name() string
}

// Completer answers a free-form prompt with plain text. Both HTTP
// generators implement it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorConfig configures the HTTP generators.
type GeneratorConfig struct {
	Host   string
	Model  string
	APIKey string
	// Temperature is sent as-is; 0.3 keeps answers stable but not frozen.
	Temperature float64
}

func newHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	// Deadlines come from the request context.
	return &http.Client{Transport: transport}
}

func postJSON(ctx context.Context, client *http.Client, service, url, apiKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return rverrors.Upstream(service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return rverrors.UpstreamStatus(service, resp.StatusCode, string(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return rverrors.New(rverrors.ErrCodeGenerationFailed, "decode "+service+" response", err)
	}
	return nil
}

// OllamaGenerator calls Ollama's /api/generate in JSON mode.
type OllamaGenerator struct {
	cfg    GeneratorConfig
	client *http.Client
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaGenerator creates a generator for a local Ollama server.
func NewOllamaGenerator(cfg GeneratorConfig) (*OllamaGenerator, error) {
	if cfg.Model == "" {
		return nil, rverrors.ConfigError("generator model is required", nil)
	}
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	return &OllamaGenerator{cfg: cfg, client: newHTTPClient()}, nil
}

// Name implements Generator.
func (g *OllamaGenerator) Name() string { return "ollama:" + g.cfg.Model }

// Generate implements Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, normalized string) (string, error) {
	return g.generate(ctx, SystemPrompt(), normalized, "json")
}

// Complete implements Completer.
func (g *OllamaGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	return g.generate(ctx, system, prompt, "")
}

func (g *OllamaGenerator) generate(ctx context.Context, system, prompt, format string) (string, error) {
	req := ollamaGenerateRequest{
		Model:   g.cfg.Model,
		System:  system,
		Prompt:  prompt,
		Format:  format,
		Stream:  false,
		Options: map[string]any{"temperature": g.cfg.Temperature},
	}
	var resp ollamaGenerateResponse
	if err := postJSON(ctx, g.client, "generator", g.cfg.Host+"/api/generate", "", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ChatGenerator calls an OpenAI-compatible /v1/chat/completions endpoint
// such as OpenRouter.
type ChatGenerator struct {
	cfg    GeneratorConfig
	client *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewChatGenerator creates a chat-completions generator. Host is the API
// base and may or may not end in /v1.
func NewChatGenerator(cfg GeneratorConfig) (*ChatGenerator, error) {
	if cfg.Model == "" {
		return nil, rverrors.ConfigError("generator model is required", nil)
	}
	if cfg.APIKey == "" {
		return nil, rverrors.New(rverrors.ErrCodeMissingAPIKey, "chat generator needs an API key", nil).
			WithSuggestion("set the key named by generator.api_key_env in the environment or .env")
	}
	if cfg.Host == "" {
		cfg.Host = "https://openrouter.ai/api"
	}
	cfg.Host = strings.TrimSuffix(strings.TrimRight(cfg.Host, "/"), "/v1")
	return &ChatGenerator{cfg: cfg, client: newHTTPClient()}, nil
}

// Name implements Generator.
func (g *ChatGenerator) Name() string { return "chat:" + g.cfg.Model }

// Generate implements Generator.
func (g *ChatGenerator) Generate(ctx context.Context, normalized string) (string, error) {
	return g.chat(ctx, SystemPrompt(), normalized, map[string]string{"type": "json_object"})
}

// Complete implements Completer.
func (g *ChatGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	return g.chat(ctx, system, prompt, nil)
}

func (g *ChatGenerator) chat(ctx context.Context, system, prompt string, format map[string]string) (string, error) {
	req := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: format,
		Temperature:    g.cfg.Temperature,
	}
	var resp chatResponse
	if err := postJSON(ctx, g.client, "generator", g.cfg.Host+"/v1/chat/completions", g.cfg.APIKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", rverrors.New(rverrors.ErrCodeGenerationFailed, "chat response has no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// NewGenerator builds the configured generator.
func NewGenerator(cfg config.GeneratorConfig) (Generator, error) {
	gc := GeneratorConfig{
		Host:        cfg.Host,
		Model:       cfg.Model,
		APIKey:      config.APIKey(cfg.APIKeyEnv),
		Temperature: 0.3,
	}
	switch cfg.Provider {
	case "", "ollama":
		g, err := NewOllamaGenerator(gc)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "chat":
		g, err := NewChatGenerator(gc)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, rverrors.ConfigError("unknown generator provider: "+cfg.Provider, nil)
	}
}
