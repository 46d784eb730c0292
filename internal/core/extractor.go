package core

import (
	"context"

	"github.com/markdave123-py/ragdesk/internal/core/textsplitter"
)

// FormatExtractor turns raw file bytes of one format into ordered chunks.
type FormatExtractor interface {
	Extract(ctx context.Context, raw []byte) ([]textsplitter.Chunk, error)
}

// DocumentService is the preferred extraction path for rich formats.
// Every error it returns is recoverable: the caller falls back to a FormatExtractor.
type DocumentService interface {
	Supports(ext string) bool
	Extract(ctx context.Context, raw []byte, formatHint, apiKey string) ([]textsplitter.Chunk, error)
}
