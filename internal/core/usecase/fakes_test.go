package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/chunking"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/cypher"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/repository/memory"
)

type putCall struct {
	data []byte
	meta map[string]string
}

type storeFake struct {
	calls  []putCall
	failAt int
	err    error
}

func (f *storeFake) Put(_ context.Context, data []byte, meta map[string]string) (domain.StorageReceipt, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, putCall{data: data, meta: meta})
	if f.err != nil && idx == f.failAt {
		return domain.StorageReceipt{}, f.err
	}
	return domain.StorageReceipt{
		PieceCID: fmt.Sprintf("bafkreipiece%03d", idx),
		Size:     int64(len(data)),
	}, nil
}

type extractResult struct {
	graph domain.KnowledgeGraph
	err   error
}

type extractorFake struct {
	results  []extractResult
	calls    int
	contents []string
}

func (f *extractorFake) Extract(_ context.Context, content string) (domain.KnowledgeGraph, error) {
	f.contents = append(f.contents, content)
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	if idx < 0 {
		return domain.KnowledgeGraph{}, nil
	}
	return f.results[idx].graph, f.results[idx].err
}

type graphFake struct {
	executed []domain.CypherQuery
	failAt   int
	err      error
}

func (f *graphFake) Execute(_ context.Context, queries []domain.CypherQuery) ([]domain.QueryExecutionResult, error) {
	results := make([]domain.QueryExecutionResult, 0, len(queries))
	for i, q := range queries {
		if f.err != nil && i == f.failAt {
			return results, f.err
		}
		f.executed = append(f.executed, q)
		r := domain.QueryExecutionResult{RecordsAffected: 1, PropertiesSet: 2}
		if strings.HasPrefix(q.Query, "MERGE (e:") {
			r.NodesCreated = 1
		} else {
			r.RelationshipsCreated = 1
		}
		results = append(results, r)
	}
	return results, nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.JobEvent
	err    error
}

func (f *eventsFake) PublishJobFinished(_ context.Context, event domain.JobEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type observedStep struct {
	step   domain.StepName
	status domain.StepStatus
}

type observerFake struct {
	steps      []observedStep
	statements int
	jobs       []bool
}

func (f *observerFake) ObserveStep(_ domain.JobKind, step domain.StepName, status domain.StepStatus, _ time.Duration) {
	f.steps = append(f.steps, observedStep{step: step, status: status})
}

func (f *observerFake) ObserveGraphWrite(_ domain.JobKind, statements int, _ domain.QueryExecutionResult) {
	f.statements += statements
}

func (f *observerFake) ObserveJob(_ domain.JobKind, success bool, _ time.Duration) {
	f.jobs = append(f.jobs, success)
}

type harness struct {
	store     *storeFake
	extractor *extractorFake
	graph     *graphFake
	jobs      *memory.JobStore
	events    *eventsFake
	observer  *observerFake
	deps      PipelineDeps
}

func newHarness(maxPiece int64, results ...extractResult) *harness {
	h := &harness{
		store:     &storeFake{},
		extractor: &extractorFake{results: results},
		graph:     &graphFake{},
		jobs:      memory.NewJobStore(),
		events:    &eventsFake{},
		observer:  &observerFake{},
	}
	h.deps = PipelineDeps{
		Uploader:              NewContentUploader(h.store, chunking.NewSplitter(maxPiece)),
		Extractor:             h.extractor,
		Generator:             cypher.NewGenerator(),
		Graph:                 h.graph,
		Jobs:                  h.jobs,
		Events:                h.events,
		Observer:              h.observer,
		ExtractionMaxAttempts: 2,
	}
	return h
}

func (h *harness) filePipeline() *FilePipeline {
	return NewFilePipeline(h.deps, plaintext.NewDecoder(), 0)
}

func peopleGraph() domain.KnowledgeGraph {
	return domain.KnowledgeGraph{
		Entities: []domain.Entity{
			{ID: "alice_smith", Type: "Person", Properties: map[string]any{"name": "Alice Smith"}},
			{ID: "bob_jones", Type: "Person", Properties: map[string]any{"name": "Bob Jones"}},
			{ID: "acme_corp", Type: "Organization", Properties: map[string]any{"name": "Acme Corp"}},
		},
		Relationships: []domain.Relationship{
			{From: "alice_smith", To: "acme_corp", Type: "WORKS_AT"},
			{From: "bob_jones", To: "acme_corp", Type: "FOUNDED"},
		},
	}
}

func stepNames(steps []domain.ProcessingStep) []domain.StepName {
	out := make([]domain.StepName, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Step)
	}
	return out
}
