package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

// DefaultMaxUploadBytes caps uploaded documents.
const DefaultMaxUploadBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".md":  true,
	".txt": true,
	".mdx": true,
}

type FilePipeline struct {
	deps     PipelineDeps
	decoder  ports.TextDecoder
	maxBytes int64
}

func NewFilePipeline(deps PipelineDeps, decoder ports.TextDecoder, maxBytes int64) *FilePipeline {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &FilePipeline{deps: deps, decoder: decoder, maxBytes: maxBytes}
}

// ProcessFile runs one file job. The report is always returned; err is set
// when the job did not succeed and carries the failure kind.
func (p *FilePipeline) ProcessFile(ctx context.Context, upload domain.FileUpload) (*domain.FileJobReport, error) {
	if upload.Encrypted != nil {
		return p.processEncrypted(ctx, *upload.Encrypted)
	}

	doc := upload.Document
	text, err := p.validate(doc)
	if err != nil {
		return rejectedFileReport(err), err
	}
	doc = domain.NewRawDocument(doc.Content, doc.Filename)

	tracker := p.deps.tracker(domain.JobKindFile, doc.Filename)
	summary := &domain.FileJobSummary{FileName: doc.Filename, FileSize: doc.Size}
	run := &fileRun{pipeline: p, tracker: tracker, summary: summary}

	tracker.begin(ctx, domain.StepUpload)
	result, err := p.deps.Uploader.Upload(ctx, doc, domain.UploadMetadata{
		Title:       doc.Filename,
		Description: "Document ingested into the knowledge graph",
		Type:        documentType(doc.Filename),
	})
	if err != nil {
		return run.fail(ctx, err, nil)
	}
	summary.CID = result.Receipt.PieceCID
	tracker.complete(ctx, fmt.Sprintf("Stored as %s", summary.CID), uploadData(result))

	tracker.begin(ctx, domain.StepParse)
	ex, err := p.deps.extract(ctx, text)
	if err != nil {
		return run.fail(ctx, err, map[string]any{"attempts": ex.attempts})
	}
	summary.EntitiesCount = len(ex.graph.Entities)
	summary.RelationshipsCount = len(ex.graph.Relationships)
	tracker.complete(ctx,
		fmt.Sprintf("Extracted %d entities and %d relationships", summary.EntitiesCount, summary.RelationshipsCount),
		map[string]any{
			"entitiesCount":      summary.EntitiesCount,
			"relationshipsCount": summary.RelationshipsCount,
			"attempts":           ex.attempts,
		})

	tracker.begin(ctx, domain.StepGenerateQuery)
	queries := p.deps.Generator.Generate(ex.graph.Entities, ex.graph.Relationships, summary.CID)
	tracker.complete(ctx, fmt.Sprintf("Generated %d queries", len(queries)), map[string]any{
		"queriesCount": len(queries),
	})

	tracker.begin(ctx, domain.StepExecuteQueries)
	write, err := p.deps.execute(ctx, domain.JobKindFile, queries)
	summary.QueriesExecuted = len(write.results)
	if err != nil {
		return run.fail(ctx, err, write.stepData())
	}
	tracker.complete(ctx, fmt.Sprintf("Executed %d queries", len(write.results)), write.stepData())

	return run.succeed(ctx)
}

func (p *FilePipeline) processEncrypted(ctx context.Context, payload domain.EncryptedPayload) (*domain.FileJobReport, error) {
	if err := p.validateEncrypted(payload); err != nil {
		return rejectedFileReport(err), err
	}
	envelope, err := json.Marshal(payload)
	if err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "encode encrypted payload", err)
		return rejectedFileReport(err), err
	}
	encType := payload.EncryptionType()
	doc := domain.NewRawDocument(envelope, payload.FileName)

	tracker := p.deps.tracker(domain.JobKindFile, payload.FileName)
	summary := &domain.FileJobSummary{
		FileName:       payload.FileName,
		FileSize:       payload.FileSize,
		IsEncrypted:    true,
		EncryptionType: encType,
	}
	run := &fileRun{pipeline: p, tracker: tracker, summary: summary}

	tracker.begin(ctx, domain.StepEncrypt)
	tracker.complete(ctx, "Content was encrypted by the client", map[string]any{
		"isEncrypted":    true,
		"encryptionType": encType,
	})

	tracker.begin(ctx, domain.StepUpload)
	result, err := p.deps.Uploader.Upload(ctx, doc, domain.UploadMetadata{
		Title:       payload.FileName,
		Description: "Client-side encrypted document",
		Type:        "encrypted",
	})
	if err != nil {
		return run.fail(ctx, err, nil)
	}
	summary.CID = result.Receipt.PieceCID
	tracker.complete(ctx, fmt.Sprintf("Stored as %s", summary.CID), uploadData(result))

	tracker.begin(ctx, domain.StepParse)
	tracker.skip(ctx, "Content is encrypted; extraction skipped", map[string]any{
		"entitiesCount":      0,
		"relationshipsCount": 0,
	})
	tracker.begin(ctx, domain.StepGenerateQuery)
	tracker.skip(ctx, "No graph to compile for encrypted content", nil)
	tracker.begin(ctx, domain.StepExecuteQueries)
	tracker.skip(ctx, "No queries to execute for encrypted content", nil)

	return run.succeed(ctx)
}

func (p *FilePipeline) validate(doc domain.RawDocument) (string, error) {
	if strings.TrimSpace(doc.Filename) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("filename is required"))
	}
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	if !allowedExtensions[ext] {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("unsupported file type %q, expected .md, .txt or .mdx", ext))
	}
	size := int64(len(doc.Content))
	if size == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is empty"))
	}
	if size > p.maxBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("file exceeds %d bytes", p.maxBytes))
	}
	return p.decoder.Decode(doc)
}

func (p *FilePipeline) validateEncrypted(payload domain.EncryptedPayload) error {
	switch {
	case strings.TrimSpace(payload.FileName) == "":
		return domain.WrapError(domain.ErrInvalidInput, "validate encrypted upload", errors.New("fileName is required"))
	case strings.TrimSpace(payload.EncryptedContent) == "":
		return domain.WrapError(domain.ErrInvalidInput, "validate encrypted upload", errors.New("encryptedContent is required"))
	case payload.FileSize < 0 || payload.FileSize > p.maxBytes || int64(len(payload.EncryptedContent)) > 2*p.maxBytes:
		return domain.WrapError(domain.ErrInvalidInput, "validate encrypted upload", fmt.Errorf("file exceeds %d bytes", p.maxBytes))
	}
	return nil
}

type fileRun struct {
	pipeline *FilePipeline
	tracker  *stepTracker
	summary  *domain.FileJobSummary
}

func (r *fileRun) fail(ctx context.Context, err error, data any) (*domain.FileJobReport, error) {
	r.tracker.fail(ctx, err, data)
	steps := r.tracker.finish(ctx, false, err, r.summary)
	r.pipeline.deps.publish(ctx, r.event(false, err))
	return &domain.FileJobReport{
		JobID:   r.tracker.jobID(),
		Success: false,
		Steps:   steps,
		Summary: r.summary,
		Error:   err.Error(),
	}, err
}

func (r *fileRun) succeed(ctx context.Context) (*domain.FileJobReport, error) {
	r.tracker.begin(ctx, domain.StepComplete)
	r.tracker.complete(ctx, "Processing complete", nil)
	steps := r.tracker.finish(ctx, true, nil, r.summary)
	r.pipeline.deps.publish(ctx, r.event(true, nil))
	return &domain.FileJobReport{
		JobID:   r.tracker.jobID(),
		Success: true,
		Steps:   steps,
		Summary: r.summary,
	}, nil
}

func (r *fileRun) event(success bool, err error) domain.JobEvent {
	return domain.JobEvent{
		JobID:              r.tracker.jobID(),
		Kind:               domain.JobKindFile,
		Source:             r.summary.FileName,
		Success:            success,
		CID:                r.summary.CID,
		EntitiesCount:      r.summary.EntitiesCount,
		RelationshipsCount: r.summary.RelationshipsCount,
		Error:              errorText(err),
		FinishedAt:         r.pipeline.deps.clock(),
	}
}

func rejectedFileReport(err error) *domain.FileJobReport {
	return &domain.FileJobReport{
		Success: false,
		Steps:   []domain.ProcessingStep{},
		Error:   err.Error(),
	}
}

func uploadData(result *domain.UploadResult) map[string]any {
	cids := make([]string, 0, len(result.Receipts))
	var size int64
	for _, r := range result.Receipts {
		cids = append(cids, r.PieceCID)
		size += r.Size
	}
	data := map[string]any{
		"cid":     result.Receipt.PieceCID,
		"size":    size,
		"chunked": result.Chunked,
	}
	if result.Chunked {
		data["chunks"] = len(cids)
		data["chunkCids"] = cids
	}
	return data
}

func documentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md":
		return "markdown"
	case ".mdx":
		return "mdx"
	default:
		return "text"
	}
}
