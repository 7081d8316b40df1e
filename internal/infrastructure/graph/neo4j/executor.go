package neo4j

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

// statementRunner is the slice of a session the executor needs.
type statementRunner interface {
	Run(ctx context.Context, cypher string) (domain.QueryExecutionResult, error)
	Close(ctx context.Context) error
}

type sessionOpener func(ctx context.Context) statementRunner

type Executor struct {
	open     sessionOpener
	executor *resilience.Executor
}

func NewExecutor(driver neo4j.DriverWithContext, database string, executor *resilience.Executor) *Executor {
	return &Executor{
		open: func(ctx context.Context) statementRunner {
			return &driverSession{session: driver.NewSession(ctx, neo4j.SessionConfig{
				AccessMode:   neo4j.AccessModeWrite,
				DatabaseName: database,
			})}
		},
		executor: executor,
	}
}

// Execute runs queries on one session in submission order. Each statement
// commits on its own; the first failure stops the batch and the counters of
// already committed statements are returned alongside the error.
func (e *Executor) Execute(ctx context.Context, queries []domain.CypherQuery) ([]domain.QueryExecutionResult, error) {
	results := make([]domain.QueryExecutionResult, 0, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	session := e.open(ctx)
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("neo4j_session_close_failed", "error", err)
		}
	}()

	for i, query := range queries {
		result, err := resilience.Call(ctx, e.executor, resilience.OperationNeo4jRun, func(callCtx context.Context) (domain.QueryExecutionResult, error) {
			return session.Run(callCtx, query.Query)
		}, classifyNeo4jError)
		if err != nil {
			slog.Error("graph_statement_failed",
				"index", i,
				"total", len(queries),
				"description", query.Description,
				"committed", len(results),
				"error", err,
			)
			op := fmt.Sprintf("execute statement %d/%d (%s)", i+1, len(queries), query.Description)
			return results, domain.WrapError(domain.ErrGraphWrite, op, wrapTemporaryIfNeeded(err))
		}
		results = append(results, result)
	}
	return results, nil
}

type driverSession struct {
	session neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string) (domain.QueryExecutionResult, error) {
	result, err := s.session.Run(ctx, cypher, nil)
	if err != nil {
		return domain.QueryExecutionResult{}, fmt.Errorf("neo4j run: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return domain.QueryExecutionResult{}, fmt.Errorf("neo4j collect: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return domain.QueryExecutionResult{}, fmt.Errorf("neo4j consume: %w", err)
	}

	counters := summary.Counters()
	return domain.QueryExecutionResult{
		RecordsAffected:      len(records),
		NodesCreated:         counters.NodesCreated(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		PropertiesSet:        counters.PropertiesSet(),
	}, nil
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}
