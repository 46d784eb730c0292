// Package extractors holds the built-in, format-specific text extractors.
package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

// Registry maps lower-case extensions (without the dot) to extractors.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]core.FormatExtractor
}

// NewRegistry registers the built-in extractors, all sharing splitter.
func NewRegistry(splitter *textsplitter.Splitter) *Registry {
	r := &Registry{byExt: map[string]core.FormatExtractor{}}
	text := NewTextExtractor(splitter)
	r.Register("txt", text)
	r.Register("md", text)
	r.Register("markdown", text)
	r.Register("csv", NewCSVExtractor(splitter))
	r.Register("json", NewJSONExtractor(splitter))
	r.Register("pdf", NewPDFExtractor(splitter))
	r.Register("docx", NewDocxExtractor(splitter))
	return r
}

func (r *Registry) Register(ext string, e core.FormatExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[normalizeExt(ext)] = e
}

func (r *Registry) Lookup(ext string) (core.FormatExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byExt[normalizeExt(ext)]
	return e, ok
}

// Extract dispatches raw to the extractor registered for ext.
func (r *Registry) Extract(ctx context.Context, ext string, raw []byte) ([]textsplitter.Chunk, error) {
	e, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
	return e.Extract(ctx, raw)
}

// Ext returns the normalized extension of a file name.
func Ext(name string) string {
	return normalizeExt(filepath.Ext(name))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
