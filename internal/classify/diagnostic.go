package classify

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is a parsed compiler message.
type Diagnostic struct {
	File     string // base name
	Path     string // as printed by the compiler
	Line     int
	Column   int
	Severity string // "error" or "warning"
	Message  string
	Raw      string
}

// Compiler output format: path:line:column: severity: message
var diagnosticRE = regexp.MustCompile(`([\w/.\-]+):(\d+):(\d+): (error|warning): (.*)`)

// ParseDiagnostic extracts structured fields from raw compiler output. When
// the text does not match the location format, the whole text becomes the
// message and ok is false.
func ParseDiagnostic(text string) (Diagnostic, bool) {
	m := diagnosticRE.FindStringSubmatch(text)
	if m == nil {
		return Diagnostic{
			Severity: "error",
			Message:  strings.TrimSpace(text),
			Raw:      text,
		}, false
	}

	line, _ := strconv.Atoi(m[2])
	col, _ := strconv.Atoi(m[3])
	return Diagnostic{
		File:     filepath.Base(m[1]),
		Path:     m[1],
		Line:     line,
		Column:   col,
		Severity: m[4],
		Message:  m[5],
		Raw:      text,
	}, true
}

// ExtractCodeContext returns the source lines around line (1-based), with
// contextLines lines on each side.
func ExtractCodeContext(path string, line, contextLines int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}

	start := line - contextLines - 1
	if start < 0 {
		start = 0
	}
	end := line + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(lines[start:end], "\n"), nil
}
