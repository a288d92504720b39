package prompt

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/codebridge-ai/codebridge/internal/classify"
	"github.com/codebridge-ai/codebridge/internal/domain"
)

func result(source, text string, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		Chunk: domain.Chunk{
			ID:          domain.ChunkID(source, 0),
			Text:        text,
			SourceDocID: source,
		},
		Score: score,
	}
}

func TestNew_InvalidBudget(t *testing.T) {
	for _, budget := range []int{0, -1} {
		if _, err := New(budget); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("New(%d): err = %v, want ErrInvalidConfig", budget, err)
		}
	}
}

func TestBuild_IncludesQuestionVerbatim(t *testing.T) {
	b, err := New(8000)
	if err != nil {
		t.Fatal(err)
	}

	question := "How do I unwrap an Optional safely?"
	prompt, err := b.Build(generalPreamble, question, []domain.RetrievalResult{
		result("optionals.md", "Use if let or guard let to unwrap.", 0.9),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !strings.Contains(prompt, question) {
		t.Error("prompt must contain the question verbatim")
	}
	if !strings.HasPrefix(prompt, generalPreamble) {
		t.Error("prompt must start with the preamble")
	}
	if !strings.Contains(prompt, "--- Context 1 (Source: optionals.md) ---") {
		t.Error("prompt must label context with its source")
	}
	if !strings.Contains(prompt, "Use if let or guard let to unwrap.") {
		t.Error("prompt must contain the chunk text")
	}
}

func TestBuild_NoChunks(t *testing.T) {
	b, _ := New(8000)

	prompt, err := b.Build(generalPreamble, "what is a slice?", nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(prompt, "relevant context") {
		t.Error("no context header expected without chunks")
	}
	if !strings.Contains(prompt, "Question: what is a slice?") {
		t.Error("question missing")
	}
}

func TestBuild_NeverExceedsBudget(t *testing.T) {
	preamble := "P"
	question := "Q"
	big := strings.Repeat("x", 300)

	results := []domain.RetrievalResult{
		result("a", big, 0.9),
		result("b", big, 0.8),
		result("c", big, 0.7),
	}

	for _, budget := range []int{50, 400, 700, 2000} {
		b, err := New(budget)
		if err != nil {
			t.Fatal(err)
		}
		prompt, err := b.Build(preamble, question, results)
		if err != nil {
			t.Fatalf("budget %d: %v", budget, err)
		}
		if n := utf8.RuneCountInString(prompt); n > budget {
			t.Errorf("budget %d: prompt is %d runes", budget, n)
		}
		if !strings.Contains(prompt, question) {
			t.Errorf("budget %d: question dropped", budget)
		}
	}
}

func TestBuild_ChunksAddedWholeHighestFirst(t *testing.T) {
	// Budget fits scaffolding plus roughly one block.
	b, _ := New(130)

	results := []domain.RetrievalResult{
		result("best", strings.Repeat("a", 40), 0.9),
		result("next", strings.Repeat("b", 40), 0.5),
	}

	prompt, err := b.Build("P", "Q", results)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, "Source: best") {
		t.Error("highest-scored chunk must be included first")
	}
	if strings.Contains(prompt, "Source: next") {
		t.Error("second chunk should not fit")
	}
	if strings.Count(prompt, strings.Repeat("a", 40)) != 1 {
		t.Error("chunk must appear whole, untruncated")
	}
}

func TestBuild_ScaffoldingOverBudget(t *testing.T) {
	b, _ := New(10)

	_, err := b.Build(generalPreamble, "why?", nil)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestBuild_UnicodeBudgetIsRunes(t *testing.T) {
	b, _ := New(200)

	prompt, err := b.Build("П", "Вопрос: 日本語?", []domain.RetrievalResult{
		result("doc", "текст 🎯", 0.9),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := utf8.RuneCountInString(prompt); n > 200 {
		t.Errorf("prompt is %d runes", n)
	}
	if !strings.Contains(prompt, "Вопрос: 日本語?") {
		t.Error("unicode question dropped")
	}
}

func TestPreamble(t *testing.T) {
	tests := []struct {
		kind classify.Kind
		want string
	}{
		{classify.KindError, "debugging and error resolution"},
		{classify.KindCode, "clean, efficient, and modern Swift code"},
		{classify.KindGeneral, "helpful coding assistant"},
		{classify.Kind("bogus"), "helpful coding assistant"},
	}
	for _, tt := range tests {
		if got := Preamble(tt.kind); !strings.Contains(got, tt.want) {
			t.Errorf("Preamble(%v) missing %q", tt.kind, tt.want)
		}
	}
}
