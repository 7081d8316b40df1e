package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

type JobQuery struct {
	store ports.JobStore
}

func NewJobQuery(store ports.JobStore) *JobQuery {
	return &JobQuery{store: store}
}

func (q *JobQuery) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get job", errors.New("job id is required"))
	}
	return q.store.GetJob(ctx, id)
}
