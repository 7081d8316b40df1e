// Package llm holds the extraction contract shared by every structured
// generation provider: the JSON schema the model is constrained to, the
// prompts, and decoding of the constrained output into a domain graph.
package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

const SchemaName = "knowledge_graph"

const SystemPrompt = `You extract a knowledge graph from documents.
Identify the people, organizations, places, products, events and concepts the text talks about and the relationships between them.
Rules:
- Every entity id is lowercase letters, digits and underscores only, derived from its name (e.g. "Ada Lovelace" -> "ada_lovelace"), and unique.
- Entity type is a singular label such as Person, Organization, Location, Product, Event or Concept.
- Relationship type is an UPPER_SNAKE_CASE verb phrase such as WORKS_AT or FOUNDED.
- Relationships may only reference ids present in entities.
- Put extra facts in properties as key/value pairs.
- If the text contains no identifiable entities, return empty arrays.`

type property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type entity struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Properties []property `json:"properties"`
}

type relationship struct {
	From       string     `json:"from"`
	To         string     `json:"to"`
	Type       string     `json:"type"`
	Properties []property `json:"properties"`
}

type graphResponse struct {
	Entities      []entity       `json:"entities"`
	Relationships []relationship `json:"relationships"`
}

// ExtractionSchema is strict-mode compatible: every object closes its
// properties and requires all of them, so free-form property maps are
// expressed as key/value arrays.
func ExtractionSchema() jsonschema.Definition {
	str := jsonschema.Definition{Type: jsonschema.String}
	properties := jsonschema.Definition{
		Type: jsonschema.Array,
		Items: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"key":   str,
				"value": str,
			},
			Required:             []string{"key", "value"},
			AdditionalProperties: false,
		},
	}

	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"entities": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"id":         {Type: jsonschema.String, Description: "lowercase_underscore identifier, unique"},
						"type":       {Type: jsonschema.String, Description: "entity type label, e.g. Person"},
						"name":       {Type: jsonschema.String, Description: "display name as written in the text"},
						"properties": properties,
					},
					Required:             []string{"id", "type", "name", "properties"},
					AdditionalProperties: false,
				},
			},
			"relationships": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"from":       {Type: jsonschema.String, Description: "source entity id"},
						"to":         {Type: jsonschema.String, Description: "target entity id"},
						"type":       {Type: jsonschema.String, Description: "UPPER_SNAKE_CASE relationship type"},
						"properties": properties,
					},
					Required:             []string{"from", "to", "type", "properties"},
					AdditionalProperties: false,
				},
			},
		},
		Required:             []string{"entities", "relationships"},
		AdditionalProperties: false,
	}
}

func BuildUserPrompt(content string) string {
	return "Extract the knowledge graph from this document:\n\n" + content
}

// Truncate cuts content to at most maxChars runes. maxChars <= 0 disables it.
func Truncate(content string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(content) <= maxChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxChars])
}

// Decode parses constrained model output. Output that does not match the
// schema is an extraction schema violation, never a best-effort graph.
func Decode(raw string) (domain.KnowledgeGraph, error) {
	var resp graphResponse
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return domain.KnowledgeGraph{}, domain.WrapError(domain.ErrExtractionSchema, "decode extraction", err)
	}

	graph := domain.KnowledgeGraph{
		Entities:      make([]domain.Entity, 0, len(resp.Entities)),
		Relationships: make([]domain.Relationship, 0, len(resp.Relationships)),
	}
	for _, e := range resp.Entities {
		props := toPropertyMap(e.Properties)
		if name := strings.TrimSpace(e.Name); name != "" {
			props["name"] = name
		}
		graph.Entities = append(graph.Entities, domain.Entity{
			ID:         strings.TrimSpace(e.ID),
			Type:       strings.TrimSpace(e.Type),
			Properties: props,
		})
	}
	for _, r := range resp.Relationships {
		rel := domain.Relationship{
			From: strings.TrimSpace(r.From),
			To:   strings.TrimSpace(r.To),
			Type: strings.TrimSpace(r.Type),
		}
		if props := toPropertyMap(r.Properties); len(props) > 0 {
			rel.Properties = props
		}
		graph.Relationships = append(graph.Relationships, rel)
	}
	return graph, nil
}

func toPropertyMap(props []property) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}
		out[key] = parseScalar(p.Value)
	}
	return out
}

// parseScalar restores numbers and booleans the schema forced into strings.
// Only canonical spellings convert, so "007" or "3.50" stay text.
func parseScalar(v string) any {
	s := strings.TrimSpace(v)
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(n, 'f', -1, 64) == s {
		return n
	}
	return s
}

// SchemaJSON returns the schema as raw JSON for providers that accept it verbatim.
func SchemaJSON() (json.RawMessage, error) {
	raw, err := json.Marshal(ExtractionSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal extraction schema: %w", err)
	}
	return raw, nil
}
