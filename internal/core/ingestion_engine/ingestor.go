package ingestion_engine

import "context"

// Ingestor is what the HTTP layer needs from the pipeline.
type Ingestor interface {
	Start(ctx context.Context)
	Enqueue(ctx context.Context, job Job) error
}

var _ Ingestor = (*DocumentIngestor)(nil)
