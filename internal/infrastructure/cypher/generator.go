// Package cypher compiles knowledge graphs into idempotent Neo4j statements.
//
// Every statement is a MERGE keyed on the entity's logical id, so replaying
// a generated list against a populated graph creates nothing new. Entity
// statements always precede relationship statements because the latter
// MATCH on endpoints the former create.
package cypher

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

// EntityLabel is shared by every entity node and carries the id constraint.
const EntityLabel = "Entity"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(entities []domain.Entity, relationships []domain.Relationship, sourceID string) []domain.CypherQuery {
	out := make([]domain.CypherQuery, 0, len(entities)+len(relationships))
	for _, entity := range entities {
		out = append(out, entityQuery(entity, sourceID))
	}
	for _, rel := range relationships {
		out = append(out, relationshipQuery(rel, sourceID))
	}
	return out
}

func entityQuery(entity domain.Entity, sourceID string) domain.CypherQuery {
	label := Label(entity.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE (e:%s {id: %s})", quoteIdent(EntityLabel), Literal(entity.ID))
	fmt.Fprintf(&b, " SET e:%s", quoteIdent(label))
	if props := MapLiteral(entity.Properties); props != "" {
		fmt.Fprintf(&b, ", e += %s", props)
	}
	fmt.Fprintf(&b, ", e.type = %s, e.sourceId = %s", Literal(entity.Type), Literal(sourceID))
	b.WriteString(" RETURN e.id AS id")

	return domain.CypherQuery{
		Query:       b.String(),
		Description: fmt.Sprintf("Merge %s entity %s", label, entity.ID),
	}
}

func relationshipQuery(rel domain.Relationship, sourceID string) domain.CypherQuery {
	relType := RelationshipType(rel.Type)

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (a:%s {id: %s}), (b:%s {id: %s})",
		quoteIdent(EntityLabel), Literal(rel.From),
		quoteIdent(EntityLabel), Literal(rel.To),
	)
	fmt.Fprintf(&b, " MERGE (a)-[r:%s]->(b)", quoteIdent(relType))
	b.WriteString(" SET ")
	if props := MapLiteral(rel.Properties); props != "" {
		fmt.Fprintf(&b, "r += %s, ", props)
	}
	fmt.Fprintf(&b, "r.sourceId = %s", Literal(sourceID))
	b.WriteString(" RETURN type(r) AS type")

	return domain.CypherQuery{
		Query:       b.String(),
		Description: fmt.Sprintf("Merge %s relationship %s -> %s", relType, rel.From, rel.To),
	}
}

// Label turns a free-form entity type into a node label, e.g.
// "programming language" -> "Programming_language".
func Label(entityType string) string {
	out := sanitizeIdent(entityType)
	if out == "" {
		return EntityLabel
	}
	r := []rune(out)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// RelationshipType upper-cases and sanitises a relationship type, e.g.
// "works at" -> "WORKS_AT".
func RelationshipType(relType string) string {
	out := strings.ToUpper(sanitizeIdent(relType))
	if out == "" {
		return "RELATED_TO"
	}
	return out
}

func sanitizeIdent(raw string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

func quoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// MapLiteral renders props as a Cypher map literal with sorted keys. Empty
// maps render as "". Keys that sanitise to the same identifier get numeric
// suffixes in raw key order.
func MapLiteral(props map[string]any) string {
	keys := propertyKeys(props)
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, quoteIdent(k.key)+": "+Literal(props[k.raw]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type mappedKey struct {
	raw string
	key string
}

func propertyKeys(props map[string]any) []mappedKey {
	raws := make([]string, 0, len(props))
	for k := range props {
		if propertyKey(k) != "" {
			raws = append(raws, k)
		}
	}
	sort.Strings(raws)

	used := make(map[string]bool, len(raws))
	out := make([]mappedKey, 0, len(raws))
	for _, raw := range raws {
		key := propertyKey(raw)
		for n := 2; used[key]; n++ {
			key = propertyKey(raw) + "_" + strconv.Itoa(n)
		}
		used[key] = true
		out = append(out, mappedKey{raw: raw, key: key})
	}
	return out
}

func propertyKey(k string) string {
	key := sanitizeIdent(k)
	if key == "" {
		return ""
	}
	// Reserved for identity and provenance.
	switch key {
	case "id", "sourceId", "type":
		return key + "_value"
	}
	return key
}

// Literal renders a Go value as a Cypher literal. Maps and unsupported
// values are stored as JSON strings since Neo4j properties cannot nest.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return quoteString(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "null"
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case json.Number:
		if _, err := val.Float64(); err == nil {
			return val.String()
		}
		return quoteString(val.String())
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalarLiteral(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, quoteString(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return jsonLiteral(val)
	}
}

// scalarLiteral keeps list elements primitive; Neo4j rejects nested lists.
func scalarLiteral(v any) string {
	switch v.(type) {
	case []any, []string, map[string]any:
		return jsonLiteral(v)
	default:
		return Literal(v)
	}
}

func jsonLiteral(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return quoteString(fmt.Sprint(v))
	}
	return quoteString(string(raw))
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
