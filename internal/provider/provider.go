// Package provider implements the text-generation backends. Both speak HTTP
// to a local inference server: Ollama through its native API, LM Studio
// through its OpenAI-compatible one.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Backend kinds accepted by New.
const (
	KindOllama   = "ollama"
	KindLMStudio = "lmstudio"
)

// Config holds the generation backend settings.
type Config struct {
	Kind       string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// New builds a generator for the configured backend, wrapped with retry.
func New(cfg *Config) (domain.Generator, error) {
	var inner domain.Generator
	switch cfg.Kind {
	case KindOllama:
		inner = NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case KindLMStudio:
		inner = NewLMStudio(cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown provider kind %q: %w", cfg.Kind, domain.ErrInvalidConfig)
	}
	return NewRetry(inner, cfg.MaxRetries, cfg.RetryDelay), nil
}

// ModelChecker is implemented by backends that can verify the configured
// model is present on the server.
type ModelChecker interface {
	CheckModel(ctx context.Context) error
}
