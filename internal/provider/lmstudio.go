package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/metrics"
)

var (
	_ domain.Generator = (*LMStudio)(nil)
	_ ModelChecker     = (*LMStudio)(nil)
)

// LMStudio generates text through LM Studio's OpenAI-compatible API.
type LMStudio struct {
	client *openai.Client
	model  string
}

// NewLMStudio creates an LM Studio backend client. baseURL is the server
// root (e.g. http://localhost:1234); the /v1 suffix is added if missing.
func NewLMStudio(baseURL, model string, timeout time.Duration) *LMStudio {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}

	// LM Studio ignores the key but the client requires one.
	cfg := openai.DefaultConfig("lm-studio")
	cfg.BaseURL = base
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &LMStudio{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Kind implements domain.Generator.
func (l *LMStudio) Kind() string { return KindLMStudio }

// Generate sends a chat completion request with the whole prompt as a single
// user message and returns the reply text with thinking tags stripped.
func (l *LMStudio) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(KindLMStudio, l.model, "error").Inc()
		return "", wrapGenerateError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(KindLMStudio, l.model, "error").Inc()
		return "", fmt.Errorf("lmstudio: empty choices: %w", domain.ErrBackendRejected)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(KindLMStudio, l.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(KindLMStudio, l.model).
		Observe(time.Since(start).Seconds())

	return StripThinkingTags(resp.Choices[0].Message.Content), nil
}

// CheckModel verifies a model is loaded. LM Studio reports an empty model
// list when nothing is loaded in the UI.
func (l *LMStudio) CheckModel(ctx context.Context) error {
	models, err := l.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("lmstudio list models: %v: %w", err, domain.ErrBackendUnreachable)
	}
	if len(models.Models) == 0 {
		return fmt.Errorf("no model loaded in LM Studio: %w", domain.ErrModelNotLoaded)
	}
	return nil
}

// wrapGenerateError maps go-openai failures onto the typed backend errors.
// A 404 is LM Studio rejecting the model name (or nothing loaded at all),
// other 4xx statuses are rejections, everything else is transient.
func wrapGenerateError(err error) error {
	status := 0

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("lmstudio: %v: %w", err, domain.ErrModelNotLoaded)
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return fmt.Errorf("lmstudio: %v: %w", err, domain.ErrBackendRejected)
	}
	return fmt.Errorf("lmstudio: %v: %w", err, domain.ErrBackendUnreachable)
}
