package extractors

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
	"github.com/markdave123-py/ragdesk/internal/core/tokenizer"
)

func newSplitter(t *testing.T, size, overlap int) *textsplitter.Splitter {
	t.Helper()
	tk, err := tokenizer.New()
	require.NoError(t, err)
	s, err := textsplitter.New(tk, size, overlap)
	require.NoError(t, err)
	return s
}

func joined(chunks []textsplitter.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text[c.OverlapBytes:])
	}
	return b.String()
}

func staticConverter(body string, err error) ConvertFunc {
	return func(r io.Reader) (string, map[string]string, error) {
		_, _ = io.ReadAll(r)
		return body, nil, err
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(newSplitter(t, 100, 10))
	for _, ext := range []string{"txt", "md", "markdown", "csv", "json", "pdf", "docx", ".PDF", " Txt "} {
		_, ok := r.Lookup(ext)
		assert.True(t, ok, ext)
	}
	_, ok := r.Lookup("exe")
	assert.False(t, ok)
}

func TestRegistryExtractUnsupported(t *testing.T) {
	r := NewRegistry(newSplitter(t, 100, 10))
	_, err := r.Extract(context.Background(), "exe", []byte("MZ"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestExt(t *testing.T) {
	assert.Equal(t, "pdf", Ext("Report.Final.PDF"))
	assert.Equal(t, "txt", Ext("/tmp/notes.txt"))
	assert.Equal(t, "", Ext("README"))
}

func TestTextExtractorNormalizes(t *testing.T) {
	e := NewTextExtractor(newSplitter(t, 100, 10))
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("line one\r\nline two\r\n")...)

	chunks, err := e.Extract(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "line one\nline two", chunks[0].Text)
}

func TestTextExtractorEmpty(t *testing.T) {
	e := NewTextExtractor(newSplitter(t, 100, 10))
	chunks, err := e.Extract(context.Background(), []byte("  \n\t "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCSVExtractorKeepsRowsInOrder(t *testing.T) {
	e := NewCSVExtractor(newSplitter(t, 20, 2))
	var b strings.Builder
	b.WriteString("id,name,city\n")
	for i := 0; i < 30; i++ {
		b.WriteString("1,alice,paris\n")
	}

	chunks, err := e.Extract(context.Background(), []byte(b.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "id,name,city"))
	assert.Equal(t, strings.TrimSpace(b.String()), joined(chunks))
}

func TestJSONExtractorIndents(t *testing.T) {
	e := NewJSONExtractor(newSplitter(t, 200, 10))
	chunks, err := e.Extract(context.Background(), []byte(`{"title":"Q3","items":[1,2]}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "{\n  \"title\": \"Q3\",\n  \"items\": [\n    1,\n    2\n  ]\n}", chunks[0].Text)
}

func TestJSONExtractorInvalid(t *testing.T) {
	e := NewJSONExtractor(newSplitter(t, 200, 10))
	_, err := e.Extract(context.Background(), []byte(`{"title":`))
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestPDFExtractorKeepsPageOrder(t *testing.T) {
	e := NewPDFExtractor(newSplitter(t, 200, 10)).
		WithConverter(staticConverter("page one text\n\f  \fpage two text\r\n\fpage three text", nil))

	chunks, err := e.Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "page one text\n\npage two text\n\npage three text", chunks[0].Text)
}

func TestPDFExtractorConverterError(t *testing.T) {
	e := NewPDFExtractor(newSplitter(t, 200, 10)).
		WithConverter(staticConverter("", errors.New("pdftotext: not found")))

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4"))
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestDocxExtractorParagraphs(t *testing.T) {
	e := NewDocxExtractor(newSplitter(t, 200, 10)).
		WithConverter(staticConverter("Heading\n\n  First paragraph.  \n\n\nSecond paragraph.\n", nil))

	chunks, err := e.Extract(context.Background(), []byte("PK"))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Heading\n\nFirst paragraph.\n\nSecond paragraph.", chunks[0].Text)
}

func TestExtractorsHonorCancelledContext(t *testing.T) {
	r := NewRegistry(newSplitter(t, 100, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, ext := range []string{"txt", "csv", "json", "pdf", "docx"} {
		_, err := r.Extract(ctx, ext, []byte("{}"))
		assert.ErrorIs(t, err, context.Canceled, ext)
	}
}
