package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor linearizes a binary document into plain text. Format-specific
// parsing (PDF, DOCX, XLSX) is delegated to whatever implementation is
// injected; the pipeline only consumes the extracted text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// PlainTextExtractor handles the formats that are already text.
type PlainTextExtractor struct{}

func (PlainTextExtractor) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("no local extractor for %s files", filepath.Ext(path))
	}
}
