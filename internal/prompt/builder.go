// Package prompt assembles the final model prompt from a system preamble,
// retrieved context chunks and the user's question, under a character budget.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

const (
	contextHeader  = "\n\nHere is the relevant context:\n"
	questionHeader = "\n\nQuestion: "
)

// Builder renders prompts bounded by a rune budget. Chunks are included
// whole or not at all, never truncated mid-chunk.
type Builder struct {
	budget int
}

// New creates a builder. budget is the maximum prompt length in runes.
func New(budget int) (*Builder, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("prompt budget must be positive, got %d: %w",
			budget, domain.ErrInvalidConfig)
	}
	return &Builder{budget: budget}, nil
}

// Build renders the prompt. The preamble and the verbatim question are always
// included; context chunks are added in the given order (highest score first)
// until one would push the prompt over budget, where assembly stops. If even
// the scaffolding without any chunks exceeds the budget, Build fails with
// ErrInvalidConfig.
func (b *Builder) Build(preamble, question string, results []domain.RetrievalResult) (string, error) {
	base := utf8.RuneCountInString(preamble) +
		utf8.RuneCountInString(questionHeader) +
		utf8.RuneCountInString(question)
	if base > b.budget {
		return "", fmt.Errorf("prompt budget %d too small for question of %d runes: %w",
			b.budget, base, domain.ErrInvalidConfig)
	}

	var blocks []string
	used := base
	if len(results) > 0 {
		used += utf8.RuneCountInString(contextHeader)
	}
	for i, r := range results {
		block := fmt.Sprintf("\n--- Context %d (Source: %s) ---\n%s\n",
			i+1, r.Chunk.SourceDocID, r.Chunk.Text)
		n := utf8.RuneCountInString(block)
		if used+n > b.budget {
			break
		}
		blocks = append(blocks, block)
		used += n
	}

	var sb strings.Builder
	sb.WriteString(preamble)
	if len(blocks) > 0 {
		sb.WriteString(contextHeader)
		for _, block := range blocks {
			sb.WriteString(block)
		}
	}
	sb.WriteString(questionHeader)
	sb.WriteString(question)
	return sb.String(), nil
}
