package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

const eventPublishTimeout = 5 * time.Second

// PipelineDeps are the process-scoped collaborators shared by both job
// shapes. Events and Observer may be nil.
type PipelineDeps struct {
	Uploader  *ContentUploader
	Extractor ports.StructuredExtractor
	Generator ports.QueryGenerator
	Graph     ports.GraphExecutor
	Jobs      ports.JobStore
	Events    ports.EventPublisher
	Observer  ports.PipelineObserver

	// ExtractionMaxAttempts bounds re-asking the model after a schema violation.
	ExtractionMaxAttempts int

	now func() time.Time
}

func (d PipelineDeps) tracker(kind domain.JobKind, source string) *stepTracker {
	return newStepTracker(kind, source, d.Jobs, d.Observer, d.now)
}

type extraction struct {
	graph    domain.KnowledgeGraph
	attempts int
}

// extract asks for a graph and validates it. Schema violations are retried
// up to ExtractionMaxAttempts; any other error is returned at once.
func (d PipelineDeps) extract(ctx context.Context, content string) (extraction, error) {
	maxAttempts := d.ExtractionMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return extraction{attempts: attempt - 1}, err
		}
		graph, err := d.Extractor.Extract(ctx, content)
		if err == nil {
			err = graph.Validate()
		}
		if err == nil {
			return extraction{graph: graph, attempts: attempt}, nil
		}
		if !domain.IsKind(err, domain.ErrExtractionSchema) {
			return extraction{attempts: attempt}, extractionError(err)
		}
		lastErr = err
		slog.Warn("extraction_schema_violation",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)
	}
	return extraction{attempts: maxAttempts}, lastErr
}

// extractionError keeps the provider's kind and types the rest as
// ErrExtraction. Cancellation stays untyped.
func extractionError(err error) error {
	if domain.HasKind(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("extract graph: %w", err)
	}
	return domain.WrapError(domain.ErrExtraction, "extract graph", err)
}

type graphWrite struct {
	queries []domain.CypherQuery
	results []domain.QueryExecutionResult
	total   domain.QueryExecutionResult
}

func (w graphWrite) stepData() map[string]any {
	return map[string]any{
		"queriesExecuted":      len(w.results),
		"recordsAffected":      w.total.RecordsAffected,
		"nodesCreated":         w.total.NodesCreated,
		"relationshipsCreated": w.total.RelationshipsCreated,
		"propertiesSet":        w.total.PropertiesSet,
	}
}

// execute runs queries and reports what committed, also on failure.
func (d PipelineDeps) execute(ctx context.Context, kind domain.JobKind, queries []domain.CypherQuery) (graphWrite, error) {
	w := graphWrite{queries: queries}
	if len(queries) == 0 {
		return w, nil
	}
	results, err := d.Graph.Execute(ctx, queries)
	w.results = results
	w.total = domain.SumExecutionResults(results)
	if d.Observer != nil {
		d.Observer.ObserveGraphWrite(kind, len(results), w.total)
	}
	if err != nil {
		if !domain.IsKind(err, domain.ErrGraphWrite) && !errors.Is(err, context.Canceled) {
			err = domain.WrapError(domain.ErrGraphWrite, "execute queries", err)
		}
		return w, err
	}
	return w, nil
}

// publish announces the finished job. Failures are logged only.
func (d PipelineDeps) publish(ctx context.Context, event domain.JobEvent) {
	if d.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := d.Events.PublishJobFinished(pubCtx, event); err != nil {
		slog.Warn("job_event_publish_failed", "job_id", event.JobID, "error", err)
	}
}

func (d PipelineDeps) clock() time.Time {
	if d.now != nil {
		return d.now().UTC()
	}
	return time.Now().UTC()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
