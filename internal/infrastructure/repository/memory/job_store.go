// Package memory keeps job records in process memory when no database is
// configured. Records are lost on restart.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type JobStore struct {
	mu   sync.RWMutex
	jobs map[string][]byte
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string][]byte)}
}

// SaveJob stores a JSON snapshot so later mutations of job by the caller
// never leak into stored state.
func (s *JobStore) SaveJob(_ context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save job", errors.New("job id is required"))
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	s.mu.Lock()
	s.jobs[job.ID] = raw
	s.mu.Unlock()
	return nil
}

func (s *JobStore) GetJob(_ context.Context, id string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	raw, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("job %s", id))
	}

	var snapshot struct {
		domain.IngestionJob
		Summary json.RawMessage `json:"summary,omitempty"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	job := snapshot.IngestionJob
	job.Summary = nil
	if len(snapshot.Summary) > 0 {
		job.Summary = snapshot.Summary
	}
	return &job, nil
}
