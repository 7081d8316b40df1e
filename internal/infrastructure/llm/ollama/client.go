package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/httperr"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/llm"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		executor:   executor,
	}
}

// Extractor asks Ollama for output constrained by the extraction JSON
// schema (the "format" field of /api/generate).
type Extractor struct {
	client   *Client
	maxChars int
	schema   json.RawMessage
}

func NewExtractor(client *Client, maxChars int) (*Extractor, error) {
	schema, err := llm.SchemaJSON()
	if err != nil {
		return nil, err
	}
	return &Extractor{client: client, maxChars: maxChars, schema: schema}, nil
}

func (e *Extractor) Extract(ctx context.Context, content string) (domain.KnowledgeGraph, error) {
	content = llm.Truncate(content, e.maxChars)
	respText, err := e.client.generateStructured(ctx, llm.SystemPrompt, llm.BuildUserPrompt(content), e.schema)
	if err != nil {
		return domain.KnowledgeGraph{}, err
	}
	return llm.Decode(respText)
}

func (c *Client) generateStructured(ctx context.Context, system, prompt string, schema json.RawMessage) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"system": system,
		"prompt": prompt,
		"stream": false,
		"format": schema,
		"options": map[string]any{
			"temperature": 0,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, resilience.OperationOllamaGenerate, func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}, httperr.Classify)
	if err != nil {
		return "", httperr.Wrap(domain.ErrExtraction, "ollama generate", err)
	}
	if strings.TrimSpace(response.Response) == "" {
		return "", domain.WrapError(domain.ErrExtractionSchema, "ollama generate", fmt.Errorf("empty response from model %s", c.model))
	}
	return strings.TrimSpace(response.Response), nil
}
