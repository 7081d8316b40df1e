// Package mcpadapter exposes the ingestion pipelines as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

type Tools struct {
	files ports.FileIngestor
	feeds ports.FeedIngestor
	jobs  ports.JobReader
}

func NewTools(files ports.FileIngestor, feeds ports.FeedIngestor, jobs ports.JobReader) *Tools {
	return &Tools{files: files, feeds: feeds, jobs: jobs}
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("ingest_rss_feed",
		mcp.WithDescription("Fetches an RSS or Atom feed, stores it on the content-addressed network and writes the extracted entities and relationships to the knowledge graph. Returns the job report with every step status."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("HTTP/HTTPS URL of the feed (e.g., https://example.com/feed.xml)"),
		),
	), t.ingestFeed)

	s.AddTool(mcp.NewTool("ingest_text",
		mcp.WithDescription("Ingests markdown or plain text as if it were an uploaded file. Returns the job report with every step status."),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("File name with a .md, .mdx or .txt extension"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Document text"),
		),
	), t.ingestText)

	s.AddTool(mcp.NewTool("get_ingestion_job",
		mcp.WithDescription("Returns the stored record of an ingestion job."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job id returned by an ingest tool"),
		),
	), t.getJob)
}

func (t *Tools) ingestFeed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil || strings.TrimSpace(url) == "" {
		return mcp.NewToolResultError("url must be a non-empty string"), nil
	}
	report, err := t.feeds.ProcessFeed(ctx, strings.TrimSpace(url))
	return reportResult(report, err)
}

func (t *Tools) ingestText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := request.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError("filename must be a string"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content must be a string"), nil
	}
	report, err := t.files.ProcessFile(ctx, domain.FileUpload{
		Document: domain.NewRawDocument([]byte(content), filename),
	})
	return reportResult(report, err)
}

func (t *Tools) getJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("job_id")
	if err != nil {
		return mcp.NewToolResultError("job_id must be a string"), nil
	}
	job, err := t.jobs.GetJob(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(job, false)
}

// reportResult returns the report for failed jobs too, flagged as an error,
// so the caller sees how far the pipeline got.
func reportResult[R any](report *R, jobErr error) (*mcp.CallToolResult, error) {
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job failed: %v", jobErr)), nil
	}
	return jsonResult(report, jobErr != nil)
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	result := mcp.NewToolResultText(string(raw))
	result.IsError = isError
	return result, nil
}
