package domain

import "fmt"

// Document is a single unit of reference material supplied by a loader.
// Text is assumed to be UTF-8; the core never interprets the source format.
type Document struct {
	ID   string
	Text string
}

// Chunk is a bounded contiguous slice of a source document, the unit of
// retrieval. Offsets and lengths are measured in runes so that chunk
// boundaries never split a multi-byte character.
type Chunk struct {
	ID           string
	Text         string
	SourceDocID  string
	SourceOffset int
	Length       int
}

// ChunkID derives the deterministic chunk identifier from its source document
// and starting offset. Re-ingesting an unchanged document therefore produces
// identical ids.
func ChunkID(sourceDocID string, sourceOffset int) string {
	return fmt.Sprintf("%s#%d", sourceDocID, sourceOffset)
}

// Overlaps reports whether two chunks cover intersecting rune ranges of the
// same source document.
func (c Chunk) Overlaps(other Chunk) bool {
	if c.SourceDocID != other.SourceDocID {
		return false
	}
	return c.SourceOffset < other.SourceOffset+other.Length &&
		other.SourceOffset < c.SourceOffset+c.Length
}

// IndexEntry pairs a chunk with its embedding vector. Entries are owned by the
// vector index: created during ingestion, never mutated, removed only by
// RemoveBySource or a full re-index.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// RetrievalResult is a chunk scored against a query vector. Score is cosine
// similarity in [-1, 1].
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}

// Answer is the outcome of one question: the generated text plus the chunks
// that were fed into the prompt, for citation.
type Answer struct {
	Text    string
	Chunks  []Chunk
	TraceID string
}
