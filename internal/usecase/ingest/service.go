// Package ingest turns documents into indexed vector entries.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/metrics"
)

// DocResult is the per-document ingestion outcome.
type DocResult struct {
	DocID  string
	Chunks int
	Err    error
}

// Report aggregates an ingestion run. Results keep the input document order.
type Report struct {
	Results []DocResult
}

// Indexed returns the total number of chunks stored.
func (r Report) Indexed() int {
	n := 0
	for _, res := range r.Results {
		n += res.Chunks
	}
	return n
}

// Failed returns the results of documents that could not be ingested.
func (r Report) Failed() []DocResult {
	var failed []DocResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Service ingests documents: old entries for the document are removed, the
// text is chunked, the chunks are embedded and stored.
type Service struct {
	chunker Chunker
	embed   Embedder
	index   IndexWriter
	workers int
	logger  *zap.Logger
}

// New creates an ingest service. workers bounds concurrent document
// processing; values below 1 are treated as 1.
func New(chunker Chunker, embed Embedder, index IndexWriter, workers int, logger *zap.Logger) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		chunker: chunker,
		embed:   embed,
		index:   index,
		workers: workers,
		logger:  logger,
	}
}

// IngestAll processes all documents over the worker pool. A failing document
// is reported and skipped; the rest still get indexed.
func (s *Service) IngestAll(ctx context.Context, docs []domain.Document) Report {
	results := make([]DocResult, len(docs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i := range docs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = s.ingestOne(ctx, docs[i])
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("Document ingestion failed",
				zap.String("doc_id", res.DocID), zap.Error(res.Err))
			continue
		}
		metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
	}

	return Report{Results: results}
}

// Ingest processes a single document.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) DocResult {
	res := s.ingestOne(ctx, doc)
	if res.Err != nil {
		metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
	}
	return res
}

func (s *Service) ingestOne(ctx context.Context, doc domain.Document) DocResult {
	res := DocResult{DocID: doc.ID}

	if err := s.index.RemoveBySource(ctx, doc.ID); err != nil {
		res.Err = fmt.Errorf("remove stale entries: %w", err)
		return res
	}

	chunks := s.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return res
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	batch, err := domain.BatchEmbed(ctx, s.embed, texts)
	if err != nil {
		res.Err = fmt.Errorf("embed chunks: %w", err)
		return res
	}
	if len(batch.Embeddings) != len(chunks) {
		res.Err = fmt.Errorf("embedder returned %d vectors for %d chunks",
			len(batch.Embeddings), len(chunks))
		return res
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = domain.IndexEntry{Chunk: chunks[i], Vector: batch.Embeddings[i]}
	}

	if err := s.index.Add(ctx, entries); err != nil {
		res.Err = fmt.Errorf("index chunks: %w", err)
		return res
	}

	res.Chunks = len(chunks)
	s.logger.Debug("Document ingested",
		zap.String("doc_id", doc.ID), zap.Int("chunks", len(chunks)))
	return res
}
