// Package redis implements the vector index on a Redis-compatible store: one
// hash per entry, brute-force cosine ranking client-side. Suited to the local
// corpus sizes this tool indexes; durability comes from the server, so Save is
// a no-op.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/codebridge-ai/codebridge/internal/db"
	"github.com/codebridge-ai/codebridge/internal/domain"
	"github.com/codebridge-ai/codebridge/internal/index"
)

// Compile-time check: Store implements index.Index.
var _ index.Index = (*Store)(nil)

const (
	fieldText   = "text"
	fieldSource = "source"
	fieldOffset = "offset"
	fieldLength = "length"
	fieldVector = "vector"
)

// Store is a Redis-backed vector index.
type Store struct {
	store  db.Store
	prefix string
}

// New creates a Redis-backed index with the given key prefix.
func New(store db.Store, keyPrefix string) *Store {
	return &Store{store: store, prefix: keyPrefix}
}

func (s *Store) entryKey(chunkID string) string { return s.prefix + "entry:" + chunkID }
func (s *Store) dimKey() string                 { return s.prefix + "dim" }

// Add validates the whole batch against the established dimension, then writes
// all hashes in one pipelined round-trip.
func (s *Store) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}

	newDim, err := index.ValidateBatch(entries, dim)
	if err != nil {
		return err
	}
	if dim == 0 {
		if err := s.store.Set(ctx, s.dimKey(), []byte(strconv.Itoa(newDim))); err != nil {
			return fmt.Errorf("store dimension: %w", err)
		}
	}

	items := make([]db.HashSetItem, len(entries))
	for i, e := range entries {
		items[i] = db.HashSetItem{
			Key: s.entryKey(e.Chunk.ID),
			Fields: map[string]string{
				fieldText:   e.Chunk.Text,
				fieldSource: e.Chunk.SourceDocID,
				fieldOffset: strconv.Itoa(e.Chunk.SourceOffset),
				fieldLength: strconv.Itoa(e.Chunk.Length),
				fieldVector: string(vectorToBytes(e.Vector)),
			},
		}
	}
	if err := s.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store entries: %w", err)
	}
	return nil
}

// Query loads all entries and ranks them by cosine similarity.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidConfig, topK)
	}

	entries, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index has %d",
			domain.ErrDimensionMismatch, len(vector), dim)
	}

	return index.Rank(entries, vector, topK), nil
}

// RemoveBySource deletes every entry hash belonging to the document.
func (s *Store) RemoveBySource(ctx context.Context, sourceDocID string) error {
	entries, err := s.loadAll(ctx)
	if err != nil {
		return err
	}

	var doomed []string
	for _, e := range entries {
		if e.Chunk.SourceDocID == sourceDocID {
			doomed = append(doomed, s.entryKey(e.Chunk.ID))
		}
	}
	if err := s.store.DelMulti(ctx, doomed); err != nil {
		return fmt.Errorf("remove entries for %s: %w", sourceDocID, err)
	}
	return nil
}

// Count returns the number of indexed entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"entry:*")
	if err != nil {
		return 0, fmt.Errorf("scan entries: %w", err)
	}
	return len(keys), nil
}

// Save is a no-op: every write is already durable on the server.
func (s *Store) Save(_ context.Context) error { return nil }

// Ping checks server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.store.Ping(ctx) //nolint:wrapcheck // thin delegation
}

// Close releases the underlying client.
func (s *Store) Close() error {
	s.store.Close()
	return nil
}

// WaitForReady blocks until the server answers pings.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return s.store.WaitForReady(ctx, timeout) //nolint:wrapcheck // thin delegation
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	data, err := s.store.Get(ctx, s.dimKey())
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load dimension: %w", err)
	}
	dim, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parse dimension %q: %w", data, err)
	}
	return dim, nil
}

func (s *Store) loadAll(ctx context.Context) ([]domain.IndexEntry, error) {
	keys, err := s.store.Scan(ctx, s.prefix+"entry:*")
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := s.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	entries := make([]domain.IndexEntry, 0, len(hashes))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue // deleted between scan and fetch
		}
		e, err := entryFromFields(keys[i][len(s.prefix+"entry:"):], fields)
		if err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", keys[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func entryFromFields(chunkID string, fields map[string]string) (domain.IndexEntry, error) {
	offset, err := strconv.Atoi(fields[fieldOffset])
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("parse offset: %w", err)
	}
	length, err := strconv.Atoi(fields[fieldLength])
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("parse length: %w", err)
	}
	vec, err := bytesToVector([]byte(fields[fieldVector]))
	if err != nil {
		return domain.IndexEntry{}, err
	}
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:           chunkID,
			Text:         fields[fieldText],
			SourceDocID:  fields[fieldSource],
			SourceOffset: offset,
			Length:       length,
		},
		Vector: vec,
	}, nil
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector payload: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
