package extractors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor chunks plain text and markdown as-is.
type TextExtractor struct {
	splitter *textsplitter.Splitter
}

func NewTextExtractor(splitter *textsplitter.Splitter) *TextExtractor {
	return &TextExtractor{splitter: splitter}
}

func (e *TextExtractor) Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.splitter.Split(normalizeText(raw)), nil
}

// CSVExtractor chunks delimited text directly, without per-row structuring.
type CSVExtractor struct {
	splitter *textsplitter.Splitter
}

func NewCSVExtractor(splitter *textsplitter.Splitter) *CSVExtractor {
	return &CSVExtractor{splitter: splitter}
}

func (e *CSVExtractor) Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.splitter.Split(normalizeText(raw)), nil
}

// JSONExtractor re-indents the document before chunking so keys and values
// land on their own lines.
type JSONExtractor struct {
	splitter *textsplitter.Splitter
}

func NewJSONExtractor(splitter *textsplitter.Splitter) *JSONExtractor {
	return &JSONExtractor{splitter: splitter}
}

func (e *JSONExtractor) Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", core.ErrExtractionFailed, err)
	}
	return e.splitter.Split(buf.String()), nil
}

func normalizeText(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	s := strings.ToValidUTF8(string(raw), "�")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}
