// Package chunker splits reference documents into overlapping fixed-size
// windows, the unit of embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Chunker produces overlapping rune windows over a document. Splitting is a
// pure function of (document, windowSize, overlap): the same input always
// yields a byte-identical chunk sequence.
type Chunker struct {
	windowSize int
	overlap    int
}

// New creates a Chunker. windowSize is the window length in runes, overlap the
// number of runes shared between consecutive windows.
func New(windowSize, overlap int) (*Chunker, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d",
			domain.ErrInvalidConfig, windowSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d",
			domain.ErrInvalidConfig, overlap)
	}
	if overlap >= windowSize {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than window size (%d)",
			domain.ErrInvalidConfig, overlap, windowSize)
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}, nil
}

// WindowSize returns the configured window length in runes.
func (c *Chunker) WindowSize() int { return c.windowSize }

// Chunk splits the document into windows of windowSize runes advancing by
// windowSize-overlap. SourceOffset is the starting rune position in the
// original text, so concatenating chunk texts with the leading overlap of each
// subsequent chunk removed reconstructs the document exactly.
// Empty and whitespace-only documents yield no chunks.
func (c *Chunker) Chunk(doc domain.Document) []domain.Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	runes := []rune(doc.Text)
	stride := c.windowSize - c.overlap

	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += stride {
		end := start + c.windowSize
		if end > len(runes) {
			end = len(runes)
		}
		text := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			ID:           domain.ChunkID(doc.ID, start),
			Text:         text,
			SourceDocID:  doc.ID,
			SourceOffset: start,
			Length:       end - start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
