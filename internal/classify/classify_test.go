package classify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Kind
	}{
		{"Cannot find 'userName' in scope", KindError},
		{"fatal error: unexpectedly found nil while unwrapping", KindError},
		{"Value of type 'String' has no member 'count2'", KindError},
		{"Thread 1: Fatal error: Index out of range", KindError},
		{"my build failed to build after updating", KindError},
		{"how do I use @State in SwiftUI?", KindCode},
		{"best way to persist with Core Data", KindCode},
		{"struct ContentView: View layout question", KindCode},
		{"what is dependency injection?", KindGeneral},
		{"", KindGeneral},
		// Error patterns take precedence over code patterns.
		{"swift error: cannot convert value", KindError},
	}

	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestParseDiagnostic(t *testing.T) {
	d, ok := ParseDiagnostic("Sources/App/ContentView.swift:42:17: error: cannot find 'userName' in scope")
	if !ok {
		t.Fatal("expected a structured match")
	}
	if d.File != "ContentView.swift" {
		t.Errorf("File = %q", d.File)
	}
	if d.Path != "Sources/App/ContentView.swift" {
		t.Errorf("Path = %q", d.Path)
	}
	if d.Line != 42 || d.Column != 17 {
		t.Errorf("Line:Column = %d:%d, want 42:17", d.Line, d.Column)
	}
	if d.Severity != "error" {
		t.Errorf("Severity = %q", d.Severity)
	}
	if d.Message != "cannot find 'userName' in scope" {
		t.Errorf("Message = %q", d.Message)
	}
}

func TestParseDiagnostic_Warning(t *testing.T) {
	d, ok := ParseDiagnostic("main.swift:3:5: warning: variable 'x' was never used")
	if !ok {
		t.Fatal("expected a structured match")
	}
	if d.Severity != "warning" {
		t.Errorf("Severity = %q", d.Severity)
	}
}

func TestParseDiagnostic_Unstructured(t *testing.T) {
	raw := "  linker command failed with exit code 1  "
	d, ok := ParseDiagnostic(raw)
	if ok {
		t.Fatal("expected no structured match")
	}
	if d.Message != "linker command failed with exit code 1" {
		t.Errorf("Message = %q", d.Message)
	}
	if d.Severity != "error" {
		t.Errorf("Severity = %q, want error fallback", d.Severity)
	}
	if d.Raw != raw {
		t.Errorf("Raw = %q", d.Raw)
	}
}

func TestExtractCodeContext(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 20; i++ {
		sb.WriteString("line")
		sb.WriteByte(byte('0' + i/10))
		sb.WriteByte(byte('0' + i%10))
		sb.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "src.swift")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ExtractCodeContext(path, 10, 2)
	if err != nil {
		t.Fatalf("ExtractCodeContext: %v", err)
	}
	want := "line08\nline09\nline10\nline11\nline12"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}

	// Near the start the window clamps to the file.
	got, err = ExtractCodeContext(path, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "line01") || strings.Count(got, "\n") != 3 {
		t.Errorf("clamped context = %q", got)
	}
}

func TestExtractCodeContext_MissingFile(t *testing.T) {
	if _, err := ExtractCodeContext(filepath.Join(t.TempDir(), "nope.swift"), 1, 2); err == nil {
		t.Fatal("expected error for missing file")
	}
}
