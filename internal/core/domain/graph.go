package domain

import (
	"fmt"
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var entityIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type Relationship struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// KnowledgeGraph may legitimately be empty.
type KnowledgeGraph struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

func (g KnowledgeGraph) IsEmpty() bool {
	return len(g.Entities) == 0 && len(g.Relationships) == 0
}

// ValidEntityID reports whether id follows the lowercase/underscore convention.
func ValidEntityID(id string) bool {
	return entityIDPattern.MatchString(id)
}

// Validate rejects graphs that break the extraction contract: malformed or
// colliding entity ids, untyped nodes or edges, and relationships whose
// endpoints are not among the entities.
func (g KnowledgeGraph) Validate() error {
	ids := mapset.NewThreadUnsafeSet[string]()
	for i, entity := range g.Entities {
		if !ValidEntityID(entity.ID) {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("entity[%d] id %q is not a normalized id", i, entity.ID))
		}
		if strings.TrimSpace(entity.Type) == "" {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("entity %q has no type", entity.ID))
		}
		if !ids.Add(entity.ID) {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("duplicate entity id %q", entity.ID))
		}
	}

	for i, rel := range g.Relationships {
		if strings.TrimSpace(rel.Type) == "" {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("relationship[%d] has no type", i))
		}
		if !ids.Contains(rel.From) {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("relationship[%d] references unknown entity %q", i, rel.From))
		}
		if !ids.Contains(rel.To) {
			return WrapError(ErrExtractionSchema, "validate graph", fmt.Errorf("relationship[%d] references unknown entity %q", i, rel.To))
		}
	}
	return nil
}

type CypherQuery struct {
	Query       string `json:"query"`
	Description string `json:"description"`
}

type QueryExecutionResult struct {
	RecordsAffected      int `json:"recordsAffected"`
	NodesCreated         int `json:"nodesCreated"`
	RelationshipsCreated int `json:"relationshipsCreated"`
	PropertiesSet        int `json:"propertiesSet"`
}

// SumExecutionResults folds per-statement counters into one total.
func SumExecutionResults(results []QueryExecutionResult) QueryExecutionResult {
	var total QueryExecutionResult
	for _, r := range results {
		total.RecordsAffected += r.RecordsAffected
		total.NodesCreated += r.NodesCreated
		total.RelationshipsCreated += r.RelationshipsCreated
		total.PropertiesSet += r.PropertiesSet
	}
	return total
}
