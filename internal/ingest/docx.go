package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"

	"github.com/nguyenthenguyen/docx"
)

var zipMagic = []byte("PK\x03\x04")

var (
	paragraphEndRE = regexp.MustCompile(`</w:p>`)
	lineBreakRE    = regexp.MustCompile(`<w:(?:br|cr)\b[^>]*/>`)
	tabRE          = regexp.MustCompile(`<w:tab\b[^>]*/>`)
	tagRE          = regexp.MustCompile(`<[^>]*>`)
)

// DOCXExtractor reads the body text of an Office Open XML document.
type DOCXExtractor struct{}

// Extract implements Extractor.
func (DOCXExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(data, zipMagic) {
		return "", fmt.Errorf("%w: missing DOCX header", ErrUnsupportedFormat)
	}

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer doc.Close()

	return docxText(doc.Editable().GetContent()), nil
}

// docxText turns document XML into text with one paragraph per block.
func docxText(content string) string {
	s := paragraphEndRE.ReplaceAllString(content, PageSeparator)
	s = lineBreakRE.ReplaceAllString(s, "\n")
	s = tabRE.ReplaceAllString(s, " ")
	s = tagRE.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}
