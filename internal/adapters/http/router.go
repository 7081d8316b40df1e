package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/kg-ingest/internal/config"
	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
	"github.com/kirillkom/kg-ingest/internal/observability/metrics"
)

const (
	serviceName = "api"

	// multipartOverheadBytes pads the body limit for form boundaries and headers.
	multipartOverheadBytes = 1 << 20
	maxFeedRequestBytes    = 64 << 10
)

type Router struct {
	cfg     config.Config
	files   ports.FileIngestor
	feeds   ports.FeedIngestor
	jobs    ports.JobReader
	metrics *metrics.HTTPServerMetrics

	contract    []byte
	contractErr error
}

func NewRouter(
	cfg config.Config,
	files ports.FileIngestor,
	feeds ports.FeedIngestor,
	jobs ports.JobReader,
) *Router {
	rt := &Router{
		cfg:   cfg,
		files: files,
		feeds: feeds,
		jobs:  jobs,
	}
	doc, err := LoadContract(context.Background())
	if err == nil {
		rt.contract, err = marshalContract(doc)
	}
	if err != nil {
		slog.Error("openapi_contract_invalid", "error", err)
		rt.contractErr = err
	}
	return rt
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	wait := time.Duration(rt.cfg.APIBackpressureWaitMS) * time.Millisecond
	pipeline := func(h http.HandlerFunc) http.Handler {
		return backpressureMiddleware(h, rt.cfg.APIMaxInFlight, wait)
	}

	api := http.NewServeMux()
	api.Handle("/upload-and-process", pipeline(rt.uploadAndProcess))
	api.Handle("/rss-process", pipeline(rt.rssProcess))
	api.HandleFunc("/v1/jobs/", rt.getJob)
	limited := rateLimitMiddleware(api, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.Handle("/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.contractErr != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "openapi contract unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.contract)
}

func (rt *Router) uploadAndProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	maxUpload := rt.cfg.APIMaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	// Encrypted content may be up to twice the plain limit once encoded.
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxUpload+multipartOverheadBytes)

	upload, err := readFileUpload(r)
	if err != nil {
		writeFileReport(w, rejectedFileReport(err), err)
		return
	}

	report, err := rt.files.ProcessFile(r.Context(), upload)
	if report == nil {
		report = rejectedFileReport(err)
	}
	if err != nil {
		slog.Warn("file_job_failed",
			"request_id", requestIDFromContext(r.Context()),
			"job_id", report.JobID,
			"error", err,
		)
	}
	writeFileReport(w, report, err)
}

func readFileUpload(r *http.Request) (domain.FileUpload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("content type: %w", err))
	}

	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile("file")
		if err != nil {
			return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", bodyError(err, "multipart field 'file' is required"))
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", bodyError(err, "read file"))
		}
		return domain.FileUpload{Document: domain.NewRawDocument(content, header.Filename)}, nil

	case "application/json":
		var req struct {
			EncryptedData *domain.EncryptedPayload `json:"encryptedData"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", bodyError(err, "invalid json"))
		}
		if req.EncryptedData == nil {
			return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("encryptedData is required"))
		}
		return domain.FileUpload{Encrypted: req.EncryptedData}, nil

	default:
		return domain.FileUpload{}, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("unsupported content type %q", mediaType))
	}
}

func (rt *Router) rssProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFeedRequestBytes)
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "read feed request", bodyError(err, "invalid json"))
		writeFeedReport(w, rejectedFeedReport(err), err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		err := domain.WrapError(domain.ErrInvalidInput, "read feed request", errors.New("url is required"))
		writeFeedReport(w, rejectedFeedReport(err), err)
		return
	}

	report, err := rt.feeds.ProcessFeed(r.Context(), strings.TrimSpace(req.URL))
	if report == nil {
		report = rejectedFeedReport(err)
	}
	if err != nil {
		slog.Warn("feed_job_failed",
			"request_id", requestIDFromContext(r.Context()),
			"job_id", report.JobID,
			"error", err,
		)
	}
	writeFeedReport(w, report, err)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobs.GetJob(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func rejectedFileReport(err error) *domain.FileJobReport {
	return &domain.FileJobReport{Steps: []domain.ProcessingStep{}, Error: errorMessage(err)}
}

func rejectedFeedReport(err error) *domain.FeedJobReport {
	return &domain.FeedJobReport{Steps: []domain.ProcessingStep{}, Error: errorMessage(err)}
}

func writeFileReport(w http.ResponseWriter, report *domain.FileJobReport, err error) {
	if report.Steps == nil {
		report.Steps = []domain.ProcessingStep{}
	}
	writeJSON(w, mapErrorToHTTPStatus(err), report)
}

func writeFeedReport(w http.ResponseWriter, report *domain.FeedJobReport, err error) {
	if report.Steps == nil {
		report.Steps = []domain.ProcessingStep{}
	}
	writeJSON(w, mapErrorToHTTPStatus(err), report)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
