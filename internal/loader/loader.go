// Package loader turns file paths into document parts with text and metadata.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bitunfold/docquery/internal/models"
)

// Loader reads source files and produces document parts ready for indexing.
type Loader struct{}

// New returns a new Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the file at path and returns its document parts. Each part gets
// a generated ID and source metadata. Files whose extracted text is empty or
// whitespace-only yield zero parts (not an error). Returns an error if the
// file cannot be read or its format cannot be parsed.
func (l *Loader) Load(path string) ([]models.DocumentPart, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", abs)
	}

	ext := strings.ToLower(filepath.Ext(abs))
	text, err := extractText(abs, ext)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	part := models.DocumentPart{
		ID:   uuid.New().String(),
		Text: text,
		Metadata: map[string]string{
			"source_path": abs,
			"file_name":   filepath.Base(abs),
			"format":      strings.TrimPrefix(ext, "."),
		},
	}
	return []models.DocumentPart{part}, nil
}

func extractText(path, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".odt", ".rtf":
		return extractCat(path)
	case ".xlsx":
		return extractExcel(path)
	default:
		// Unknown extensions are treated as plain text.
		return extractPlain(path)
	}
}
