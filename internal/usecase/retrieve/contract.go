package retrieve

import (
	"context"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// IndexReader performs similarity search.
type IndexReader interface {
	Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
}
