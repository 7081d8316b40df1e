package ports

import (
	"context"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

// Chunker splits oversized documents into reassemblable pieces.
type Chunker interface {
	NeedsChunking(size int64) bool
	SplitFile(data []byte, filename string) (*domain.ChunkSet, error)
}

// ContentStore persists one object on the content-addressed storage network.
type ContentStore interface {
	Put(ctx context.Context, data []byte, metadata map[string]string) (domain.StorageReceipt, error)
}

// StructuredExtractor turns text into a knowledge graph through one
// schema-constrained generation call.
type StructuredExtractor interface {
	Extract(ctx context.Context, content string) (domain.KnowledgeGraph, error)
}

// QueryGenerator compiles a graph into ordered idempotent write statements.
type QueryGenerator interface {
	Generate(entities []domain.Entity, relationships []domain.Relationship, sourceID string) []domain.CypherQuery
}

// GraphExecutor runs statements in submission order, stopping at the first
// failure. Results for already committed statements are returned with the error.
type GraphExecutor interface {
	Execute(ctx context.Context, queries []domain.CypherQuery) ([]domain.QueryExecutionResult, error)
}

// FeedFetcher downloads and parses an RSS/Atom feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Feed, error)
}

// JobStore persists job state after every step transition.
type JobStore interface {
	SaveJob(ctx context.Context, job *domain.IngestionJob) error
	GetJob(ctx context.Context, id string) (*domain.IngestionJob, error)
}

// EventPublisher announces finished jobs.
type EventPublisher interface {
	PublishJobFinished(ctx context.Context, event domain.JobEvent) error
}

// PipelineObserver records step outcomes for metrics.
type PipelineObserver interface {
	ObserveStep(kind domain.JobKind, step domain.StepName, status domain.StepStatus, duration time.Duration)
	ObserveGraphWrite(kind domain.JobKind, statements int, total domain.QueryExecutionResult)
	ObserveJob(kind domain.JobKind, success bool, duration time.Duration)
}

// TextDecoder turns an uploaded file into extraction input.
type TextDecoder interface {
	Decode(doc domain.RawDocument) (string, error)
}
