package neo4j

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type fakeSession struct {
	failAt int
	ran    []string
	closed int
}

func (f *fakeSession) Run(_ context.Context, cypher string) (domain.QueryExecutionResult, error) {
	if len(f.ran) == f.failAt {
		f.ran = append(f.ran, cypher)
		return domain.QueryExecutionResult{}, errors.New("syntax error")
	}
	f.ran = append(f.ran, cypher)
	return domain.QueryExecutionResult{RecordsAffected: 1, NodesCreated: 1, PropertiesSet: 2}, nil
}

func (f *fakeSession) Close(context.Context) error {
	f.closed++
	return nil
}

func newFakeExecutor(session *fakeSession) (*Executor, *int) {
	opened := 0
	return &Executor{
		open: func(context.Context) statementRunner {
			opened++
			return session
		},
	}, &opened
}

func queries(n int) []domain.CypherQuery {
	out := make([]domain.CypherQuery, n)
	for i := range out {
		out[i] = domain.CypherQuery{Query: "MERGE (e:`Entity` {id: 'x'})", Description: "q"}
	}
	return out
}

func TestExecuteUsesOneSessionAndPreservesOrder(t *testing.T) {
	session := &fakeSession{failAt: -1}
	exec, opened := newFakeExecutor(session)

	results, err := exec.Execute(context.Background(), queries(3))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if *opened != 1 || session.closed != 1 {
		t.Fatalf("expected one session opened and closed, got opened=%d closed=%d", *opened, session.closed)
	}
	if total := domain.SumExecutionResults(results); total.NodesCreated != 3 {
		t.Fatalf("unexpected totals %+v", total)
	}
}

func TestExecuteStopsAtFirstFailureAndKeepsCommitted(t *testing.T) {
	session := &fakeSession{failAt: 1}
	exec, _ := newFakeExecutor(session)

	results, err := exec.Execute(context.Background(), queries(4))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrGraphWrite) {
		t.Fatalf("expected ErrGraphWrite, got %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected results of the one committed statement, got %d", len(results))
	}
	if len(session.ran) != 2 {
		t.Fatalf("statements after the failure must not run, ran %d", len(session.ran))
	}
	if session.closed != 1 {
		t.Fatalf("session must be closed on the failure path")
	}
}

func TestExecuteEmptyBatchOpensNoSession(t *testing.T) {
	session := &fakeSession{failAt: -1}
	exec, opened := newFakeExecutor(session)

	results, err := exec.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 0 || *opened != 0 {
		t.Fatalf("expected no work for empty batch, opened=%d", *opened)
	}
}
