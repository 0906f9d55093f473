// Package extract turns uploaded files into plain text for indexing.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// Result carries the extracted text plus the flags the upload response
// reports back to the client.
type Result struct {
	DisplayFilename string
	Text            string
	OCRUsed         bool
	PageCount       int
	OCRTruncated    bool
}

// Options control extraction of scanned documents. They are accepted for
// every file type and ignored where they do not apply.
type Options struct {
	OCREnabled  bool
	OCRMaxPages int
}

type Extractor interface {
	// Extract reads the file at path. Files the extractor cannot handle
	// report ErrUnsupportedType.
	Extract(path string, opts Options) (*Result, error)
}

// TextExtractor handles plain-text formats. PDF and word-processor files
// need an extractor with a real parser behind this same interface.
type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(path string, _ Options) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return &Result{
		DisplayFilename: filepath.Base(path),
		Text:            string(data),
		PageCount:       1,
	}, nil
}
