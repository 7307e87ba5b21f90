// Package ingest extracts plain text from uploaded resume documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format is the declared type of an uploaded document.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// PageSeparator joins the text of consecutive pages so words on a page
// boundary never fuse.
const PageSeparator = "\n\n"

var (
	// ErrUnsupportedFormat means the bytes cannot be parsed as the declared format.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument means extraction produced no non-whitespace text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// Extractor pulls plain text out of one document format. Implementations
// only read text; nothing embedded in the document is executed.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Ingestor dispatches documents to the extractor for their declared format.
type Ingestor struct {
	extractors map[Format]Extractor
}

// New creates an Ingestor for PDF and DOCX documents.
func New() *Ingestor {
	return NewWithExtractors(map[Format]Extractor{
		FormatPDF:  PDFExtractor{},
		FormatDOCX: DOCXExtractor{},
	})
}

// NewWithExtractors creates an Ingestor with custom extractors for testing
func NewWithExtractors(extractors map[Format]Extractor) *Ingestor {
	return &Ingestor{extractors: extractors}
}

// Extract returns the text of data parsed as format.
func (in *Ingestor) Extract(ctx context.Context, data []byte, format Format) (string, error) {
	ex, ok := in.extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := ex.Extract(ctx, data)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// FormatFromUpload infers the declared format from an uploaded file's name,
// falling back to its content type.
func FormatFromUpload(filename, contentType string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch mt {
	case "application/pdf":
		return FormatPDF, true
	case docxMIME:
		return FormatDOCX, true
	}
	return "", false
}
