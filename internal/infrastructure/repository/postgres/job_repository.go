package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	steps JSONB NOT NULL DEFAULT '[]'::jsonb,
	success BOOLEAN NOT NULL DEFAULT FALSE,
	finished BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	summary JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_created_at ON ingestion_jobs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_unfinished ON ingestion_jobs(finished) WHERE NOT finished;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveJob upserts the whole record; steps and summary are replaced.
func (r *JobRepository) SaveJob(ctx context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save job", errors.New("job id is required"))
	}
	steps := job.Steps
	if steps == nil {
		steps = []domain.ProcessingStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	var summaryJSON []byte
	if job.Summary != nil {
		summaryJSON, err = json.Marshal(job.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ingestion_jobs (
	id, kind, source, steps, success, finished, error_message, summary, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
	steps = EXCLUDED.steps,
	success = EXCLUDED.success,
	finished = EXCLUDED.finished,
	error_message = EXCLUDED.error_message,
	summary = EXCLUDED.summary,
	updated_at = EXCLUDED.updated_at
`,
		job.ID, string(job.Kind), job.Source, stepsJSON, job.Success, job.Finished, job.Error,
		summaryJSON, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*domain.IngestionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, kind, source, steps, success, finished, error_message, summary, created_at, updated_at
FROM ingestion_jobs
WHERE id = $1
`, id)

	var job domain.IngestionJob
	var kind string
	var stepsRaw, summaryRaw []byte

	err := row.Scan(
		&job.ID, &kind, &job.Source, &stepsRaw, &job.Success, &job.Finished, &job.Error,
		&summaryRaw, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("job %s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal(stepsRaw, &job.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(summaryRaw) > 0 {
		job.Summary = json.RawMessage(summaryRaw)
	}
	job.Kind = domain.JobKind(kind)
	return &job, nil
}
