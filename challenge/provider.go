/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package challenge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Seednode/truthordare/domain"
	"github.com/tidwall/gjson"
)

// Request is what a Provider is asked to write.
type Request struct {
	Kind     domain.Kind
	Mode     domain.Mode
	Tier     domain.Tier
	Guidance string
}

// Provider is an external text generation service.
type Provider interface {
	// Available reports whether the provider is configured well enough to try.
	Available() bool
	Complete(ctx context.Context, req Request) (string, error)
}

var ErrUnavailable = errors.New("provider unavailable")

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel    = "gemini-2.5-flash"
)

// GeminiConfig configures the Gemini generateContent endpoint.
type GeminiConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

type GeminiProvider struct {
	cfg GeminiConfig
}

func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = defaultGeminiEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	return &GeminiProvider{cfg: cfg}
}

func (g *GeminiProvider) Available() bool {
	return g != nil && strings.TrimSpace(g.cfg.APIKey) != ""
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
}

var promptSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"prompt": map[string]any{"type": "string"},
	},
	"required": []string{"prompt"},
}

func (g *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	if !g.Available() {
		return "", ErrUnavailable
	}

	guidance := strings.TrimSpace(req.Guidance)
	if guidance == "" {
		return "", errors.New("guidance is required")
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: guidance}}}},
		GenerationConfig: map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   promptSchema,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	endpoint := strings.TrimSuffix(strings.TrimSpace(g.cfg.Endpoint), "/") +
		"/models/" + url.PathEscape(strings.TrimSpace(g.cfg.Model)) + ":generateContent"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", strings.TrimSpace(g.cfg.APIKey))

	res, err := g.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := raw
		if len(msg) > 4096 {
			msg = msg[:4096]
		}
		return "", fmt.Errorf("generate request status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	if !gjson.ValidBytes(raw) {
		return "", errors.New("generate response is not valid json")
	}

	inner := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !inner.Exists() || inner.Type != gjson.String {
		return "", errors.New("generate response missing candidate text")
	}

	if !gjson.Valid(inner.Str) {
		return "", errors.New("candidate text is not valid json")
	}

	prompt := gjson.Get(inner.Str, "prompt")
	if prompt.Type != gjson.String || strings.TrimSpace(prompt.Str) == "" {
		return "", errors.New("candidate missing prompt field")
	}

	return strings.TrimSpace(prompt.Str), nil
}
