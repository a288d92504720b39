package file

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

func entry(id, doc string, offset int, text string, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:           id,
			Text:         text,
			SourceDocID:  doc,
			SourceOffset: offset,
			Length:       len([]rune(text)),
		},
		Vector: vec,
	}
}

func TestAdd_EstablishesAndEnforcesDimension(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Add(ctx, []domain.IndexEntry{entry("a#0", "a", 0, "x", 1, 0, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = s.Add(ctx, []domain.IndexEntry{
		entry("b#0", "b", 0, "y", 0, 1, 0),
		entry("b#5", "b", 5, "z", 0, 1), // wrong dimension: whole batch rejected
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("mismatched batch must not be partially applied, count = %d", n)
	}
}

func TestQuery_OrderingAndTopK(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "index.json"))
	ctx := context.Background()

	_ = s.Add(ctx, []domain.IndexEntry{
		entry("d#0", "d", 0, "exact", 1, 0),
		entry("d#10", "d", 10, "close", 0.9, 0.1),
		entry("d#20", "d", 20, "far", 0, 1),
	})

	results, err := s.Query(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "d#0" {
		t.Errorf("expected best match d#0, got %s", results[0].Chunk.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores not descending")
	}
}

func TestQuery_InvalidTopK(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "index.json"))
	for _, k := range []int{0, -1} {
		if _, err := s.Query(context.Background(), []float32{1}, k); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("topK=%d: expected ErrInvalidConfig, got %v", k, err)
		}
	}
}

func TestQuery_EmptyIndexReturnsNothing(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "index.json"))
	results, err := s.Query(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRemoveBySource(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "index.json"))
	ctx := context.Background()

	_ = s.Add(ctx, []domain.IndexEntry{
		entry("a#0", "a", 0, "keep", 1, 0),
		entry("b#0", "b", 0, "drop", 0.9, 0.1),
		entry("b#10", "b", 10, "drop too", 0.8, 0.2),
	})

	if err := s.RemoveBySource(ctx, "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, _ := s.Query(ctx, []float32{1, 0}, 10)
	for _, r := range results {
		if r.Chunk.SourceDocID == "b" {
			t.Errorf("entry %s from removed source survived", r.Chunk.ID)
		}
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 remaining entry, got %d", n)
	}
}

func TestAdd_ReplacesExistingID(t *testing.T) {
	s, _ := Open(filepath.Join(t.TempDir(), "index.json"))
	ctx := context.Background()

	_ = s.Add(ctx, []domain.IndexEntry{entry("a#0", "a", 0, "old", 1, 0)})
	_ = s.Add(ctx, []domain.IndexEntry{entry("a#0", "a", 0, "new", 0, 1)})

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected 1 entry after replacement, got %d", n)
	}
	results, _ := s.Query(ctx, []float32{0, 1}, 1)
	if results[0].Chunk.Text != "new" {
		t.Errorf("expected replaced text, got %q", results[0].Chunk.Text)
	}
}

func TestSaveAndReload_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()

	s, _ := Open(path)
	want := []domain.IndexEntry{
		entry("doc#0", "doc", 0, "The capital of France is Paris.", 0.1, -0.25, 0.997),
		entry("doc#15", "doc", 15, "France is Paris. More text.", 0.5, 0.5, 0.5),
		entry("önë#0", "önë", 0, "ünïcôdé chunk 🚀", -1, 0, 1),
	}
	if err := s.Add(ctx, want); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if n, _ := reloaded.Count(ctx); n != len(want) {
		t.Fatalf("expected %d entries after reload, got %d", len(want), n)
	}
	for _, e := range want {
		results, err := reloaded.Query(ctx, e.Vector, 1)
		if err != nil {
			t.Fatal(err)
		}
		got := results[0]
		if got.Chunk != e.Chunk {
			t.Errorf("chunk mismatch after reload:\ngot:  %+v\nwant: %+v", got.Chunk, e.Chunk)
		}
	}

	// vectors must round-trip exactly
	results, _ := reloaded.Query(ctx, want[0].Vector, 1)
	if results[0].Score < 0.9999999 {
		t.Errorf("vector did not round-trip exactly, self-similarity %v", results[0].Score)
	}
	reloaded.mu.RLock()
	defer reloaded.mu.RUnlock()
	for i := range want {
		j, ok := reloaded.byID[want[i].Chunk.ID]
		if !ok {
			t.Fatalf("entry %s missing after reload", want[i].Chunk.ID)
		}
		if !reflect.DeepEqual(reloaded.entries[j].Vector, want[i].Vector) {
			t.Errorf("vector for %s changed across save/load", want[i].Chunk.ID)
		}
	}
}

func TestClose_PersistsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()

	s, _ := Open(path)
	_ = s.Add(ctx, []domain.IndexEntry{entry("a#0", "a", 0, "x", 1, 0)})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := reloaded.Count(ctx); n != 1 {
		t.Fatalf("expected entry persisted on close, count = %d", n)
	}
}
