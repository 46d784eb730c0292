package ingestion_engine

import (
	"fmt"
	"time"

	"github.com/markdave123-py/ragdesk/internal/core/embedding"
)

// IngestConfig tunes a run.
//
// ExtractTimeout: bound on the document-service call before falling back.
// EmbedTimeout:   bound on the single embedding call of a run.
// DocServiceKey:  server-wide document-service key, used when the user has none.
// Embedding:      server-wide credentials user settings fall back to.
type IngestConfig struct {
	ExtractTimeout time.Duration
	EmbedTimeout   time.Duration
	DocServiceKey  string
	Embedding      embedding.Defaults
}

// Request asks for one file to be (re-)ingested on behalf of UserID.
type Request struct {
	FileID   string `json:"file_id"`
	UserID   string `json:"-"`
	Provider string `json:"embedding_provider"`
}

// State is a step of an ingestion run.
type State string

const (
	StateValidating         State = "validating"
	StateExtractingPrimary  State = "extracting_primary"
	StateExtractingFallback State = "extracting_fallback"
	StateEmbedding          State = "embedding"
	StatePersisting         State = "persisting"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// Path records which extractor produced the chunks.
type Path string

const (
	// PathPrimary: the document service.
	PathPrimary Path = "primary"
	// PathFallback: the document service failed and a local extractor took over.
	PathFallback Path = "fallback"
	// PathLocal: no document service was configured for the file.
	PathLocal Path = "local"
)

// Result is returned by a successful run.
type Result struct {
	FileID         string  `json:"file_id"`
	ChunkCount     int     `json:"chunk_count"`
	TokenTotal     int     `json:"token_total"`
	Provider       string  `json:"provider"`
	Path           Path    `json:"path"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
	States         []State `json:"states"`
}

// Failure is the error of a failed run. Err wraps one of the core sentinel errors.
type Failure struct {
	State State
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ingestion failed while %s: %v", f.State, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
