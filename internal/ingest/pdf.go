package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

var pdfMagic = []byte("%PDF-")

// PDFExtractor reads the text layer of a PDF, page by page in reading order.
type PDFExtractor struct{}

// Extract implements Extractor.
func (PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf("%w: missing PDF header", ErrUnsupportedFormat)
	}

	// The parser panics on some malformed object graphs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: malformed PDF: %v", ErrUnsupportedFormat, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !reader.Trailer().Key("Encrypt").IsNull() {
		return "", fmt.Errorf("%w: encrypted PDF", ErrUnsupportedFormat)
	}

	logger := zerolog.Ctx(ctx)
	total := reader.NumPage()
	pages := make([]string, 0, total)
	skipped := 0
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			logger.Debug().Err(err).Int("page", i).Msg("skipping unreadable page")
			continue
		}
		pages = append(pages, pageText)
	}

	logger.Debug().Int("pages", total).Int("skipped", skipped).Msg("pdf text extracted")
	return strings.Join(pages, PageSeparator), nil
}
