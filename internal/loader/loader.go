// Package loader reads the documentation corpus from disk.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Extensions recognized as documentation.
var docExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// LoadDocuments walks root and returns one document per .txt/.md file,
// sorted by ID. The document ID is the path relative to root with
// forward slashes.
func LoadDocuments(root string) ([]domain.Document, error) {
	var docs []domain.Document

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories (".git" and friends) are skipped entirely.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !docExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}

		docs = append(docs, domain.Document{
			ID:   filepath.ToSlash(rel),
			Text: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk docs dir %s: %w", root, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
