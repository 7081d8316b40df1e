package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/kg-ingest/internal/infrastructure/cypher"
)

// OpenDriver builds the process-wide driver and checks that the server is reachable.
func OpenDriver(ctx context.Context, uri, username, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

// EnsureSchema installs the uniqueness constraint that makes concurrent
// merges of the same entity id converge on one node.
func EnsureSchema(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	query := fmt.Sprintf(
		"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:`%s`) REQUIRE e.id IS UNIQUE",
		cypher.EntityLabel,
	)
	_, err := neo4j.ExecuteQuery(ctx, driver, query, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(database),
	)
	if err != nil {
		return fmt.Errorf("create entity id constraint: %w", err)
	}
	return nil
}
