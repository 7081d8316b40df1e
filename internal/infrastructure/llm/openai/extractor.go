// Package openai extracts knowledge graphs through an OpenAI compatible
// chat completions endpoint using strict JSON schema response formats.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/httperr"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/llm"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

type Extractor struct {
	client   *goopenai.Client
	model    string
	maxChars int
	schema   json.RawMessage
	executor *resilience.Executor
}

// NewExtractor builds a client for apiKey. An empty baseURL keeps the
// public OpenAI endpoint.
func NewExtractor(apiKey, baseURL, model string, maxChars int, executor *resilience.Executor) (*Extractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "openai extractor", errors.New("api key is required"))
	}
	schema, err := llm.SchemaJSON()
	if err != nil {
		return nil, err
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Extractor{
		client:   goopenai.NewClientWithConfig(cfg),
		model:    model,
		maxChars: maxChars,
		schema:   schema,
		executor: executor,
	}, nil
}

func (e *Extractor) Extract(ctx context.Context, content string) (domain.KnowledgeGraph, error) {
	req := goopenai.ChatCompletionRequest{
		Model: e.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.BuildUserPrompt(llm.Truncate(content, e.maxChars))},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   llm.SchemaName,
				Schema: e.schema,
				Strict: true,
			},
		},
	}

	resp, err := resilience.Call(ctx, e.executor, resilience.OperationOpenAIChat, func(callCtx context.Context) (goopenai.ChatCompletionResponse, error) {
		return e.client.CreateChatCompletion(callCtx, req)
	}, classifyOpenAIError)
	if err != nil {
		return domain.KnowledgeGraph{}, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.KnowledgeGraph{}, domain.WrapError(domain.ErrExtractionSchema, "openai chat completion", errors.New("no choices returned"))
	}

	msg := resp.Choices[0].Message
	if strings.TrimSpace(msg.Refusal) != "" {
		return domain.KnowledgeGraph{}, domain.WrapError(domain.ErrExtractionSchema, "openai chat completion", fmt.Errorf("model refused: %s", msg.Refusal))
	}
	if strings.TrimSpace(msg.Content) == "" {
		return domain.KnowledgeGraph{}, domain.WrapError(domain.ErrExtractionSchema, "openai chat completion", errors.New("empty completion"))
	}
	return llm.Decode(msg.Content)
}

var classifyOpenAIError = resilience.ContextAware(func(err error) resilience.ErrorClassification {
	if code, ok := statusCode(err); ok {
		if httperr.RetryableStatus(code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: code >= 500}
	}
	return httperr.Classify(err)
})

func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func wrapError(err error) error {
	return httperr.WrapClassified(domain.ErrExtraction, "openai chat completion", err, classifyOpenAIError)
}
