// Package retrieve finds the chunks most relevant to a query.
package retrieve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/metrics"
)

// overfetchFactor asks the index for extra candidates so score filtering and
// overlap dedup still leave topK results to choose from.
const overfetchFactor = 3

// Service retrieves context chunks for a query.
type Service struct {
	embed    Embedder
	index    IndexReader
	topK     int
	minScore float64
	logger   *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, index IndexReader, topK int, minScore float64, logger *zap.Logger) (*Service, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d: %w", topK, domain.ErrInvalidConfig)
	}
	if minScore < -1 || minScore > 1 {
		return nil, fmt.Errorf("minScore must be in [-1, 1], got %v: %w", minScore, domain.ErrInvalidConfig)
	}
	return &Service{
		embed:    embed,
		index:    index,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}, nil
}

// Retrieve embeds the query and returns up to topK chunks ordered by
// descending score. Chunks below minScore are dropped, and of two
// overlapping chunks from the same document only the higher-scored one is
// kept. When the score filter would discard everything, the single best
// candidate is returned instead so the caller always has some grounding
// while the index is non-empty.
func (s *Service) Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error) {
	result, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.index.Query(ctx, result.Embedding, s.topK*overfetchFactor)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if len(candidates) == 0 {
		metrics.RetrievalChunksReturned.Observe(0)
		return nil, nil
	}

	kept := s.filter(candidates)
	if len(kept) == 0 {
		// Weak matches beat no grounding at all.
		kept = candidates[:1]
		s.logger.Debug("All candidates below min score, falling back to best match",
			zap.Float64("best_score", candidates[0].Score),
			zap.Float64("min_score", s.minScore))
	}
	if len(kept) > s.topK {
		kept = kept[:s.topK]
	}

	metrics.RetrievalChunksReturned.Observe(float64(len(kept)))
	return kept, nil
}

// filter drops candidates below minScore and candidates overlapping an
// already-kept higher-scored chunk. Candidates arrive sorted by descending
// score, so keeping first-seen keeps the better of any overlapping pair.
func (s *Service) filter(candidates []domain.RetrievalResult) []domain.RetrievalResult {
	var kept []domain.RetrievalResult
	for _, c := range candidates {
		if c.Score < s.minScore {
			continue
		}
		overlapping := false
		for _, k := range kept {
			if c.Chunk.Overlaps(k.Chunk) {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, c)
		}
	}
	return kept
}
