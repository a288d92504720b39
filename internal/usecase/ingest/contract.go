package ingest

import (
	"context"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Chunker splits a document into windows.
type Chunker interface {
	Chunk(doc domain.Document) []domain.Chunk
}

// Embedder vectorizes a single text. Batching is negotiated through
// domain.BatchEmbed, so implementations with a native batch endpoint are
// used as such and the rest fall back to per-text calls.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// IndexWriter stores vectorized chunks.
type IndexWriter interface {
	Add(ctx context.Context, entries []domain.IndexEntry) error
	RemoveBySource(ctx context.Context, sourceDocID string) error
}
