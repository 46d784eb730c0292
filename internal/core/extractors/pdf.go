package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

// ConvertFunc is the docconv converter signature: body text and metadata.
type ConvertFunc func(r io.Reader) (string, map[string]string, error)

// PDFExtractor reads page text in page order and chunks the concatenation.
type PDFExtractor struct {
	splitter *textsplitter.Splitter
	convert  ConvertFunc
}

// NewPDFExtractor uses docconv, which shells out to poppler's pdftotext.
func NewPDFExtractor(splitter *textsplitter.Splitter) *PDFExtractor {
	return &PDFExtractor{splitter: splitter, convert: docconv.ConvertPDF}
}

// WithConverter replaces the PDF text backend.
func (e *PDFExtractor) WithConverter(fn ConvertFunc) *PDFExtractor {
	e.convert = fn
	return e
}

func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := e.convert(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf: %v", core.ErrExtractionFailed, err)
	}
	return e.splitter.Split(joinPages(body)), nil
}

// joinPages keeps the converter's page order. Pages are form-feed separated
// when the backend emits page breaks.
func joinPages(body string) string {
	pages := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\f")
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
