package core

import "errors"

// Failure kinds of an ingestion run. Callers match them with errors.Is.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrNotSupported       = errors.New("not supported")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrEmbeddingFailed    = errors.New("embedding failed")
	ErrStorage            = errors.New("storage error")
)
