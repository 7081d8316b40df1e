package neo4j

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

// Retrying a statement is safe only because generated statements are
// id-keyed merges.
var classifyNeo4jError = resilience.ContextAware(func(err error) resilience.ErrorClassification {
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if neo4j.IsNeo4jError(err) {
		// Syntax and constraint errors are the statement's fault, not the server's.
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
})

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	class := classifyNeo4jError(err)
	if class.Retryable {
		return domain.WrapError(domain.ErrTemporary, "neo4j", err)
	}
	return err
}
