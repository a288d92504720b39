// Package ask orchestrates the answer pipeline: classify the question,
// retrieve context, build the prompt and generate a reply.
package ask

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codebridge-ai/codebridge/internal/classify"
	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/prompt"
)

// contextLines around a compiler diagnostic's location.
const contextLines = 5

// Service answers questions grounded in the indexed documentation.
type Service struct {
	retriever Retriever
	builder   PromptBuilder
	generator Generator
	logger    *zap.Logger
}

// New creates an ask service.
func New(retriever Retriever, builder PromptBuilder, generator Generator, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		builder:   builder,
		generator: generator,
		logger:    logger,
	}
}

// Ask runs the full pipeline for a question. Retrieval coming back empty is
// not an error: the model still answers, just without documentation context.
func (s *Service) Ask(ctx context.Context, question string) (domain.Answer, error) {
	traceID := uuid.NewString()
	log := s.logger.With(zap.String("trace_id", traceID))

	kind := classify.Classify(question)
	log.Debug("Question classified", zap.String("kind", string(kind)))

	results, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		log.Debug("No context retrieved, answering without grounding")
	}

	rendered, err := s.builder.Build(prompt.Preamble(kind), question, results)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("build prompt: %w", err)
	}

	text, err := s.generator.Generate(ctx, rendered)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}

	log.Info("Question answered",
		zap.String("kind", string(kind)),
		zap.Int("context_chunks", len(chunks)),
		zap.String("backend", s.generator.Kind()))

	return domain.Answer{Text: text, Chunks: chunks, TraceID: traceID}, nil
}

// Diagnose answers a raw compiler error. The error text is parsed for a
// source location; when the referenced file is readable the surrounding code
// is folded into the question so the model sees both the error and the code.
func (s *Service) Diagnose(ctx context.Context, errorText string) (domain.Answer, error) {
	diag, structured := classify.ParseDiagnostic(errorText)

	question := "Compiler error: " + diag.Raw
	if structured {
		if _, err := os.Stat(diag.Path); err == nil {
			code, err := classify.ExtractCodeContext(diag.Path, diag.Line, contextLines)
			if err != nil {
				s.logger.Warn("Could not read source around diagnostic",
					zap.String("path", diag.Path), zap.Error(err))
			} else if code != "" {
				question = fmt.Sprintf(
					"Compiler error: %s\n\nCode around %s:%d:\n%s",
					diag.Raw, diag.File, diag.Line, code)
			}
		}
	}

	return s.Ask(ctx, question)
}
