// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/kaiwa/internal/models"
)

// Func extracts text from the raw bytes of one document.
type Func func(content []byte) (string, error)

// Extractor dispatches on the file extension. Unknown extensions are read as
// plain text.
type Extractor struct {
	formats map[string]Func
}

// NewExtractor returns an Extractor for every built-in format.
func NewExtractor() *Extractor {
	return &Extractor{formats: map[string]Func{
		".pdf":  extractPDF,
		".docx": extractDOCX,
		".pptx": extractPPTX,
		".xlsx": extractExcel,
		".odt":  extractWithCat,
		".rtf":  extractWithCat,
		".odp":  extractOpenDocument,
		".ods":  extractOpenDocument,
		".txt":  extractPlain,
		".md":   extractPlain,
		".rst":  extractPlain,
	}}
}

// Register adds or replaces the extractor for ext (".csv", ".html", ...).
func (e *Extractor) Register(ext string, fn Func) {
	e.formats[normalizeExt(ext)] = fn
}

// Supported returns the registered extensions in sorted order.
func (e *Extractor) Supported() []string {
	out := make([]string, 0, len(e.formats))
	for ext := range e.formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and extracts its text.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content. ext may be given with or without
// the leading dot and in any case. A document that cannot be parsed in its
// declared format is a validation error.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	ext = normalizeExt(ext)
	fn, ok := e.formats[ext]
	if !ok {
		fn = extractPlain
	}
	text, err := fn(content)
	if err != nil {
		return "", fmt.Errorf("%w: %s document: %v", models.ErrValidation, strings.TrimPrefix(ext, "."), err)
	}
	return text, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
