package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func TestJobStoreSnapshots(t *testing.T) {
	store := NewJobStore()
	job := &domain.IngestionJob{
		ID:      "job-1",
		Kind:    domain.JobKindFile,
		Steps:   []domain.ProcessingStep{{Step: domain.StepUpload, Status: domain.StepInProgress}},
		Summary: map[string]int{"entitiesCount": 2},
	}
	if err := store.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}
	job.Steps[0].Status = domain.StepCompleted

	got, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Steps[0].Status != domain.StepInProgress {
		t.Fatalf("stored job changed after save: %+v", got.Steps)
	}
	if string(got.Summary.(json.RawMessage)) != `{"entitiesCount":2}` {
		t.Fatalf("unexpected summary %v", got.Summary)
	}
}

func TestJobStoreNotFound(t *testing.T) {
	if _, err := NewJobStore().GetJob(context.Background(), "nope"); !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
