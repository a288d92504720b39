package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/metrics"
)

var _ domain.Generator = (*Retry)(nil)

// Retry wraps a generator with bounded retries and a fixed delay between
// attempts. Only transient failures are retried: rejected requests
// (ErrBackendRejected) and a missing model fail immediately.
type Retry struct {
	inner      domain.Generator
	maxRetries int
	delay      time.Duration
}

// NewRetry wraps a generator. maxRetries is the number of additional
// attempts after the first; 0 disables retrying.
func NewRetry(inner domain.Generator, maxRetries int, delay time.Duration) *Retry {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retry{inner: inner, maxRetries: maxRetries, delay: delay}
}

// Kind returns the wrapped backend's kind.
func (r *Retry) Kind() string { return r.inner.Kind() }

// CheckModel delegates to the wrapped backend when it supports the check.
func (r *Retry) CheckModel(ctx context.Context) error {
	if mc, ok := r.inner.(ModelChecker); ok {
		return mc.CheckModel(ctx)
	}
	return nil
}

// Generate delegates to the inner generator, retrying transient failures.
// When all attempts fail the last error is returned, wrapped so that
// errors.Is(err, domain.ErrBackendUnreachable) holds.
func (r *Retry) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.GenerationRetriesTotal.WithLabelValues(r.inner.Kind()).Inc()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.delay):
			}
		}

		text, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable(err) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if errors.Is(lastErr, domain.ErrBackendUnreachable) {
		return "", fmt.Errorf("after %d attempts: %w", r.maxRetries+1, lastErr)
	}
	return "", fmt.Errorf("after %d attempts: %v: %w", r.maxRetries+1, lastErr, domain.ErrBackendUnreachable)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrBackendRejected) || errors.Is(err, domain.ErrModelNotLoaded) {
		return false
	}
	return true
}
