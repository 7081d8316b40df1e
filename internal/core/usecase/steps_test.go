package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type recordingJobStore struct {
	statuses []domain.StepStatus
	err      error
}

func (s *recordingJobStore) SaveJob(_ context.Context, job *domain.IngestionJob) error {
	if n := len(job.Steps); n > 0 {
		s.statuses = append(s.statuses, job.Steps[n-1].Status)
	}
	return s.err
}

func (s *recordingJobStore) GetJob(context.Context, string) (*domain.IngestionJob, error) {
	return nil, errors.New("not implemented")
}

func TestStepTrackerPersistsEveryTransition(t *testing.T) {
	store := &recordingJobStore{}
	observer := &observerFake{}
	clock := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	tracker := newStepTracker(domain.JobKindFile, "a.md", store, observer, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	tracker.begin(context.Background(), domain.StepUpload)
	tracker.complete(context.Background(), "ok", nil)
	tracker.begin(context.Background(), domain.StepParse)
	tracker.fail(context.Background(), errors.New("boom"), nil)
	steps := tracker.finish(context.Background(), false, errors.New("boom"), nil)

	want := []domain.StepStatus{
		domain.StepPending, domain.StepInProgress, domain.StepCompleted,
		domain.StepPending, domain.StepInProgress, domain.StepError,
		domain.StepError,
	}
	if len(store.statuses) != len(want) {
		t.Fatalf("saved statuses %v, want %v", store.statuses, want)
	}
	for i := range want {
		if store.statuses[i] != want[i] {
			t.Fatalf("saved statuses %v, want %v", store.statuses, want)
		}
	}
	if len(steps) != 2 || steps[1].Message != "boom" {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if len(observer.steps) != 2 || observer.steps[0].status != domain.StepCompleted || observer.steps[1].status != domain.StepError {
		t.Fatalf("only terminal transitions are observed: %+v", observer.steps)
	}
	if tracker.job.Error != "boom" || !tracker.job.Finished {
		t.Fatalf("job not finalized: %+v", tracker.job)
	}
}

func TestStepTrackerIgnoresStoreFailures(t *testing.T) {
	store := &recordingJobStore{err: errors.New("db down")}
	tracker := newStepTracker(domain.JobKindRSS, "u", store, nil, nil)

	tracker.begin(context.Background(), domain.StepFetchRSS)
	tracker.complete(context.Background(), "", nil)
	steps := tracker.finish(context.Background(), true, nil, nil)
	if len(steps) != 1 || steps[0].Status != domain.StepCompleted {
		t.Fatalf("unexpected steps %+v", steps)
	}
}

func TestJobQueryRequiresID(t *testing.T) {
	if _, err := NewJobQuery(&recordingJobStore{}).GetJob(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
