// Package file implements the vector index as an in-memory brute-force store
// persisted to a JSON file on disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/index"
)

// Compile-time check: Store implements index.Index.
var _ index.Index = (*Store)(nil)

// Store keeps all entries in memory and persists them as JSON. Reads may run
// concurrently; writes take the exclusive lock.
type Store struct {
	mu      sync.RWMutex
	path    string
	dim     int
	entries []domain.IndexEntry
	byID    map[string]int
	dirty   bool
}

type persistedEntry struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	SourceDocID  string    `json:"source_doc_id"`
	SourceOffset int       `json:"source_offset"`
	Length       int       `json:"length"`
	Vector       []float32 `json:"vector"`
}

type persistedIndex struct {
	Dimension int              `json:"dimension"`
	Entries   []persistedEntry `json:"entries"`
}

// Open creates a store backed by the given file, loading any previously
// persisted entries. A missing file yields an empty index.
func Open(path string) (*Store, error) {
	s := &Store{path: path, byID: make(map[string]int)}

	data, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var p persistedIndex
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}

	s.dim = p.Dimension
	s.entries = make([]domain.IndexEntry, len(p.Entries))
	for i, e := range p.Entries {
		s.entries[i] = domain.IndexEntry{
			Chunk: domain.Chunk{
				ID:           e.ID,
				Text:         e.Text,
				SourceDocID:  e.SourceDocID,
				SourceOffset: e.SourceOffset,
				Length:       e.Length,
			},
			Vector: e.Vector,
		}
		s.byID[e.ID] = i
	}
	return s, nil
}

// Add appends entries after validating the whole batch against the
// established dimension. An entry with an already-indexed id replaces the old
// one.
func (s *Store) Add(_ context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := index.ValidateBatch(entries, s.dim)
	if err != nil {
		return err
	}
	s.dim = dim

	for _, e := range entries {
		if i, ok := s.byID[e.Chunk.ID]; ok {
			s.entries[i] = e
			continue
		}
		s.byID[e.Chunk.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.dirty = true
	return nil
}

// Query ranks all entries by cosine similarity against the query vector.
func (s *Store) Query(_ context.Context, vector []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidConfig, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index has %d",
			domain.ErrDimensionMismatch, len(vector), s.dim)
	}
	return index.Rank(s.entries, vector, topK), nil
}

// RemoveBySource drops every entry originating from the given document.
func (s *Store) RemoveBySource(_ context.Context, sourceDocID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Chunk.SourceDocID != sourceDocID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(s.entries) {
		return nil
	}

	s.entries = kept
	s.byID = make(map[string]int, len(kept))
	for i, e := range kept {
		s.byID[e.Chunk.ID] = i
	}
	s.dirty = true
	return nil
}

// Count returns the number of indexed entries.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Save writes the index to disk atomically (temp file + rename). Reloading the
// written file reconstructs identical entries.
func (s *Store) Save(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	p := persistedIndex{Dimension: s.dim, Entries: make([]persistedEntry, len(s.entries))}
	for i, e := range s.entries {
		p.Entries[i] = persistedEntry{
			ID:           e.Chunk.ID,
			Text:         e.Chunk.Text,
			SourceDocID:  e.Chunk.SourceDocID,
			SourceOffset: e.Chunk.SourceOffset,
			Length:       e.Chunk.Length,
			Vector:       e.Vector,
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace index file: %w", err)
	}

	s.dirty = false
	return nil
}

// Ping always succeeds: the store has no external dependency.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close persists any unsaved state.
func (s *Store) Close() error {
	return s.Save(context.Background())
}
