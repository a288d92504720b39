package ask

import (
	"context"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Retriever finds context chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error)
}

// PromptBuilder renders the final model prompt.
type PromptBuilder interface {
	Build(preamble, question string, results []domain.RetrievalResult) (string, error)
}

// Generator produces the answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Kind() string
}
