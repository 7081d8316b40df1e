package ports

import (
	"context"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

// FileIngestor is the inbound contract for the file upload pipeline. The
// report is always non-nil so callers can render partial progress.
type FileIngestor interface {
	ProcessFile(ctx context.Context, upload domain.FileUpload) (*domain.FileJobReport, error)
}

// FeedIngestor is the inbound contract for the RSS batch pipeline.
type FeedIngestor interface {
	ProcessFeed(ctx context.Context, url string) (*domain.FeedJobReport, error)
}

// JobReader is the inbound read model for durable job records.
type JobReader interface {
	GetJob(ctx context.Context, id string) (*domain.IngestionJob, error)
}
