package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

// stepTracker owns the step list of one job. Steps are appended in the
// order they run and mutated in place; a failed step ends the job.
type stepTracker struct {
	job      *domain.IngestionJob
	store    ports.JobStore
	observer ports.PipelineObserver
	now      func() time.Time

	jobStart  time.Time
	stepStart time.Time
}

func newStepTracker(kind domain.JobKind, source string, store ports.JobStore, observer ports.PipelineObserver, now func() time.Time) *stepTracker {
	if now == nil {
		now = time.Now
	}
	if observer == nil {
		observer = noopObserver{}
	}
	started := now().UTC()
	return &stepTracker{
		job: &domain.IngestionJob{
			ID:        uuid.NewString(),
			Kind:      kind,
			Source:    source,
			Steps:     []domain.ProcessingStep{},
			CreatedAt: started,
			UpdatedAt: started,
		},
		store:    store,
		observer: observer,
		now:      now,
		jobStart: started,
	}
}

func (t *stepTracker) jobID() string {
	return t.job.ID
}

// begin appends step as pending and moves it to in_progress.
func (t *stepTracker) begin(ctx context.Context, step domain.StepName) {
	t.job.Steps = append(t.job.Steps, domain.ProcessingStep{Step: step, Status: domain.StepPending})
	t.persist(ctx)
	t.stepStart = t.now()
	t.transition(ctx, domain.StepInProgress, "", nil)
}

func (t *stepTracker) complete(ctx context.Context, message string, data any) {
	t.transition(ctx, domain.StepCompleted, message, data)
}

func (t *stepTracker) skip(ctx context.Context, message string, data any) {
	t.transition(ctx, domain.StepSkipped, message, data)
}

func (t *stepTracker) fail(ctx context.Context, err error, data any) {
	t.transition(ctx, domain.StepError, err.Error(), data)
}

func (t *stepTracker) transition(ctx context.Context, status domain.StepStatus, message string, data any) {
	if len(t.job.Steps) == 0 {
		return
	}
	current := &t.job.Steps[len(t.job.Steps)-1]
	current.Status = status
	current.Message = message
	current.Data = data

	attrs := []any{
		"job_id", t.job.ID,
		"kind", t.job.Kind,
		"step", current.Step,
		"status", status,
	}
	if status != domain.StepInProgress {
		elapsed := t.now().Sub(t.stepStart)
		attrs = append(attrs, "duration_ms", elapsed.Milliseconds())
		t.observer.ObserveStep(t.job.Kind, current.Step, status, elapsed)
	}
	if status == domain.StepError {
		slog.Error("pipeline_step", append(attrs, "error", message)...)
	} else {
		slog.Info("pipeline_step", attrs...)
	}
	t.persist(ctx)
}

// finish marks the job terminal and returns a copy of its steps.
func (t *stepTracker) finish(ctx context.Context, success bool, err error, summary any) []domain.ProcessingStep {
	t.job.Success = success
	t.job.Finished = true
	t.job.Summary = summary
	if err != nil {
		t.job.Error = err.Error()
	}
	t.persist(ctx)
	t.observer.ObserveJob(t.job.Kind, success, t.now().Sub(t.jobStart))

	steps := make([]domain.ProcessingStep, len(t.job.Steps))
	copy(steps, t.job.Steps)
	return steps
}

// persist never fails the job; the record is an observation of it.
func (t *stepTracker) persist(ctx context.Context) {
	if t.store == nil {
		return
	}
	t.job.UpdatedAt = t.now().UTC()
	if err := t.store.SaveJob(context.WithoutCancel(ctx), t.job); err != nil {
		slog.Warn("job_save_failed", "job_id", t.job.ID, "error", err)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveStep(domain.JobKind, domain.StepName, domain.StepStatus, time.Duration) {}
func (noopObserver) ObserveGraphWrite(domain.JobKind, int, domain.QueryExecutionResult)            {}
func (noopObserver) ObserveJob(domain.JobKind, bool, time.Duration)                                {}
