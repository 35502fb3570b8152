package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphmed/graphmed/helper"
)

// Querier is the graph database access used by the handlers. Every call
// runs as a single-statement transaction.
type Querier interface {
	Read(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Write(ctx context.Context, query string, params map[string]any) error
}

// Graph wraps a Neo4j driver with single-statement read and write
// transactions, schema bootstrap and vector search.
type Graph struct {
	driver neo4j.DriverWithContext
	log    *slog.Logger
}

// NewGraph connects to Neo4j and verifies connectivity.
func NewGraph(ctx context.Context, uri string, username string, password string, logger *slog.Logger) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, helper.NewError("create driver", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, helper.NewError("verify connectivity", err)
	}

	logger.Info("Connected to graph database", slog.String("uri", uri))

	return &Graph{driver: driver, log: logger}, nil
}

// Read runs a read query and returns all rows as maps.
func (g *Graph) Read(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		collected := make([]map[string]any, len(records))
		for i, record := range records {
			collected[i] = record.AsMap()
		}
		return collected, nil
	})
	if err != nil {
		return nil, helper.NewError("read query", err)
	}

	return rows.([]map[string]any), nil
}

// Write runs a write query in its own transaction.
func (g *Graph) Write(ctx context.Context, query string, params map[string]any) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		return helper.NewError("write query", err)
	}

	return nil
}

// EnsureSchema creates the uniqueness constraints, the chunk index and
// the entity vector index. All statements are idempotent.
func (g *Graph) EnsureSchema(ctx context.Context, embeddingDim int) error {
	statements := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (e:`__Entity__`) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (c:`__Community__`) REQUIRE c.id IS UNIQUE",
		"CREATE INDEX IF NOT EXISTS FOR (c:`__Chunk__`) ON (c.id)",
		fmt.Sprintf(
			"CREATE VECTOR INDEX vector IF NOT EXISTS FOR (e:`__Entity__`) ON (e.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			embeddingDim),
	}

	for _, statement := range statements {
		if err := g.Write(ctx, statement, nil); err != nil {
			return helper.NewError("ensure schema", err)
		}
	}

	g.log.Info("Checked/created constraints and indexes")

	return nil
}

// Wipe removes the entire graph in batched transactions. CALL IN
// TRANSACTIONS needs an auto-commit transaction, so this bypasses
// ExecuteWrite.
func (g *Graph) Wipe(ctx context.Context) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (n) CALL (n) {DETACH DELETE n} IN TRANSACTIONS", nil)
	if err != nil {
		return helper.NewError("wipe graph", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return helper.NewError("wipe graph", err)
	}

	g.log.Info("Wiped graph")

	return nil
}

// VectorHit is one result of a vector index search.
type VectorHit struct {
	ID          string
	Description string
	Score       float64
}

// VectorSearch returns the k nearest entities by vector similarity.
func (g *Graph) VectorSearch(ctx context.Context, index string, embedding []float32, k int) ([]VectorHit, error) {
	rows, err := g.Read(ctx, `
		CALL db.index.vector.queryNodes($index, $k, $embedding)
		YIELD node, score
		RETURN node.id AS id, node.description AS description, score`,
		map[string]any{"index": index, "k": k, "embedding": embedding})
	if err != nil {
		return nil, helper.NewError("vector search", err)
	}

	hits := make([]VectorHit, 0, len(rows))
	for _, row := range rows {
		hit := VectorHit{}
		hit.ID, _ = row["id"].(string)
		hit.Description, _ = row["description"].(string)
		hit.Score, _ = row["score"].(float64)
		hits = append(hits, hit)
	}

	return hits, nil
}

// Close closes the underlying driver.
func (g *Graph) Close(ctx context.Context) error {
	if g.driver != nil {
		return g.driver.Close(ctx)
	}
	return nil
}
