package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func TestMiddlewareNormalizesJobPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/jobs/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/jobs/{job_id}", "404"))
	if got != 2 {
		t.Fatalf("expected 2 requests under normalized path, got %v", got)
	}
}

func TestPipelineMetricsShareRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	p := NewPipelineMetrics("api", httpMetrics.Registry())

	p.ObserveStep(domain.JobKindFile, domain.StepUpload, domain.StepCompleted, 20*time.Millisecond)
	p.ObserveGraphWrite(domain.JobKindFile, 3, domain.QueryExecutionResult{NodesCreated: 2, RelationshipsCreated: 1})
	p.ObserveJob(domain.JobKindFile, false, time.Second)

	if got := testutil.ToFloat64(p.stepTotal.WithLabelValues("api", "file", "upload", "completed")); got != 1 {
		t.Fatalf("unexpected step counter %v", got)
	}
	if got := testutil.ToFloat64(p.graphWrites.WithLabelValues("api", "file")); got != 3 {
		t.Fatalf("unexpected statements counter %v", got)
	}
	if got := testutil.ToFloat64(p.jobTotal.WithLabelValues("api", "file", "error")); got != 1 {
		t.Fatalf("unexpected job counter %v", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler status %d", rec.Code)
	}
}
