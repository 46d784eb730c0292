package extractors

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

// DocxExtractor reads paragraph text in document order.
type DocxExtractor struct {
	splitter *textsplitter.Splitter
	convert  ConvertFunc
}

func NewDocxExtractor(splitter *textsplitter.Splitter) *DocxExtractor {
	return &DocxExtractor{splitter: splitter, convert: docconv.ConvertDocx}
}

// WithConverter replaces the DOCX text backend.
func (e *DocxExtractor) WithConverter(fn ConvertFunc) *DocxExtractor {
	e.convert = fn
	return e
}

func (e *DocxExtractor) Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := e.convert(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: docx: %v", core.ErrExtractionFailed, err)
	}
	return e.splitter.Split(joinParagraphs(body)), nil
}

// joinParagraphs drops blank lines and separates paragraphs with one empty line.
func joinParagraphs(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n\n")
}
