package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/metrics"
)

var (
	_ domain.Generator = (*Ollama)(nil)
	_ ModelChecker     = (*Ollama)(nil)
)

// Ollama generates text through the native Ollama API (/api/generate).
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates an Ollama backend client.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Kind implements domain.Generator.
func (o *Ollama) Kind() string { return KindOllama }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate sends a non-streaming completion request and returns the model's
// text with any thinking tags stripped.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	start := time.Now()
	resp, err := o.post(ctx, "/api/generate", body)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "error").Inc()
		return "", fmt.Errorf("ollama generate: %v: %w", err, domain.ErrBackendUnreachable)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "error").Inc()
		return "", fmt.Errorf("ollama read response: %v: %w", err, domain.ErrBackendUnreachable)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "error").Inc()
		return "", statusError(KindOllama, resp.StatusCode, data)
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "error").Inc()
		return "", fmt.Errorf("ollama decode response: %v: %w", err, domain.ErrBackendRejected)
	}
	if out.Error != "" {
		metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "error").Inc()
		if isMissingModel(out.Error) {
			return "", fmt.Errorf("ollama: %s: %w", out.Error, domain.ErrModelNotLoaded)
		}
		return "", fmt.Errorf("ollama: %s: %w", out.Error, domain.ErrBackendRejected)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(KindOllama, o.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(KindOllama, o.model).
		Observe(time.Since(start).Seconds())

	return StripThinkingTags(out.Response), nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckModel verifies the configured model is pulled, via /api/tags.
// Tag names match loosely: "codellama:7b" satisfies a configured "codellama".
func (o *Ollama) CheckModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama tags: %v: %w", err, domain.ErrBackendUnreachable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags: status %d: %w", resp.StatusCode, domain.ErrBackendUnreachable)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama decode tags: %v: %w", err, domain.ErrBackendUnreachable)
	}

	for _, m := range tags.Models {
		if m.Name == o.model || strings.HasPrefix(m.Name, o.model+":") {
			return nil
		}
	}
	return fmt.Errorf("model %q not pulled: %w", o.model, domain.ErrModelNotLoaded)
}

func (o *Ollama) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return o.client.Do(req)
}

// statusError maps an HTTP status onto the typed backend errors: 5xx is
// transient, a 404 naming a missing model means no model is loaded, any other
// 4xx means the request itself was rejected.
func statusError(kind string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200]
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%s: status %d: %s: %w", kind, status, detail, domain.ErrBackendUnreachable)
	}
	if status == http.StatusNotFound && isMissingModel(detail) {
		return fmt.Errorf("%s: status %d: %s: %w", kind, status, detail, domain.ErrModelNotLoaded)
	}
	return fmt.Errorf("%s: status %d: %s: %w", kind, status, detail, domain.ErrBackendRejected)
}

// isMissingModel recognizes Ollama's missing-model rejection, e.g.
// `model "x" not found, try pulling it first`.
func isMissingModel(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not found") && strings.Contains(m, "model")
}
