// Package index defines the vector index contract shared by the on-disk and
// Redis-backed implementations.
package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Index stores (vector, chunk) entries and answers nearest-neighbor queries by
// cosine similarity. Every vector in one index has the same dimension, fixed by
// the first entry added (or the persisted state on reload).
type Index interface {
	// Add appends entries. The whole batch is validated against the
	// established dimension before any entry is written, so a mismatch never
	// corrupts existing entries.
	Add(ctx context.Context, entries []domain.IndexEntry) error
	// Query returns up to topK entries ranked by cosine similarity, highest
	// first, ties broken by chunk id. topK must be positive.
	Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievalResult, error)
	// RemoveBySource removes all entries originating from the given document,
	// enabling idempotent re-ingestion.
	RemoveBySource(ctx context.Context, sourceDocID string) error
	Count(ctx context.Context) (int, error)
	// Save persists the current state. A no-op for backends that are durable
	// per write.
	Save(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Cosine computes cosine similarity between two vectors of equal dimension.
// Zero vectors have undefined similarity and score 0.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores entries against the query vector and returns the topK best,
// sorted by descending score with ties broken by ascending chunk id so results
// are deterministic.
func Rank(entries []domain.IndexEntry, vector []float32, topK int) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, domain.RetrievalResult{
			Chunk: e.Chunk,
			Score: Cosine(e.Vector, vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// ValidateBatch checks that every entry in the batch carries a vector of the
// expected dimension. dim 0 means the index is still empty; the first entry's
// dimension is returned as the new established dimension.
func ValidateBatch(entries []domain.IndexEntry, dim int) (int, error) {
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return dim, fmt.Errorf("%w: entry %s has an empty vector", domain.ErrDimensionMismatch, e.Chunk.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
			continue
		}
		if len(e.Vector) != dim {
			return dim, fmt.Errorf("%w: entry %s has dimension %d, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), dim)
		}
	}
	return dim, nil
}
