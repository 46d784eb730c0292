package ingestion_engine

import "context"

// Ingestor runs one ingestion synchronously.
type Ingestor interface {
	Ingest(ctx context.Context, req Request) (*Result, error)
}

// Enqueuer schedules an ingestion in the background.
type Enqueuer interface {
	Enqueue(req Request) error
}

var (
	_ Ingestor = (*DocumentIngestor)(nil)
	_ Enqueuer = (*Queue)(nil)
)
