package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmed/graphmed/model"
)

func importTestChunk(t *testing.T, graph *Graph, chunkID string) {
	t.Helper()
	err := graph.Write(context.Background(),
		"MERGE (c:`__Chunk__` {id: $id}) SET c.text = 'text'",
		map[string]any{"id": chunkID})
	require.NoError(t, err)
}

func TestNewEntitiesDBHandler(t *testing.T) {
	t.Run("Invalid call NewEntitiesDBHandler with nil graph", func(t *testing.T) {
		_, err := NewEntitiesDBHandler(nil, testLogger())
		assert.Error(t, err, "Expected error when creating EntitiesDBHandler with nil graph")
		assert.Contains(t, err.Error(), "graph connection is nil", "Expected specific error message for nil graph connection")
	})
}

func TestEntitiesImportGraphDocuments(t *testing.T) {
	graph := initGraph(t)
	ctx := context.Background()

	entitiesDbHandler, err := NewEntitiesDBHandler(graph, testLogger())
	require.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")

	importTestChunk(t, graph, "chunk1")
	importTestChunk(t, graph, "chunk2")

	first := &model.GraphDocument{
		ChunkID: "chunk1",
		Nodes: []*model.Node{
			{ID: "阿司匹林", Type: "药物", Description: "抗血小板药。"},
			{ID: "缺血性脑卒中", Type: model.UnknownLabel, Description: ""},
		},
		Relationships: []*model.Relationship{
			{Source: "阿司匹林", Target: "缺血性脑卒中", Type: "用于治疗", Description: "预防复发。", Weight: 8},
		},
	}
	second := &model.GraphDocument{
		ChunkID: "chunk2",
		Nodes: []*model.Node{
			{ID: "阿司匹林", Type: "药物", Description: "常用药物。"},
			{ID: "缺血性脑卒中", Type: "疾病", Description: "最常见的脑卒中类型。"},
		},
		Relationships: []*model.Relationship{
			{Source: "阿司匹林", Target: "缺血性脑卒中", Type: "用于治疗", Description: "降低风险。", Weight: 9},
		},
	}

	err = entitiesDbHandler.ImportGraphDocuments(ctx, []*model.GraphDocument{first, second})
	require.NoError(t, err, "Expected ImportGraphDocuments to not return an error")

	t.Run("Descriptions are concatenated", func(t *testing.T) {
		rows, err := graph.Read(ctx,
			"MATCH (e:`__Entity__` {id: '阿司匹林'}) RETURN e.description AS description", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "抗血小板药。；常用药物。", rows[0]["description"])
	})

	t.Run("Concrete label replaces the placeholder", func(t *testing.T) {
		rows, err := graph.Read(ctx,
			"MATCH (e:`__Entity__` {id: '缺血性脑卒中'}) RETURN labels(e) AS labels", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		labels := rows[0]["labels"].([]any)
		assert.Contains(t, labels, "疾病")
		assert.NotContains(t, labels, model.UnknownLabel, "Expected the placeholder label to be dropped")
	})

	t.Run("Relationships keep the maximum weight", func(t *testing.T) {
		rows, err := graph.Read(ctx, `
			MATCH (:`+"`__Entity__`"+` {id: '阿司匹林'})-[r:`+"`用于治疗`"+`]->(:`+"`__Entity__`"+` {id: '缺血性脑卒中'})
			RETURN r.weight AS weight, r.description AS description`, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1, "Expected exactly one edge per (source, target, type)")
		assert.Equal(t, 9.0, rows[0]["weight"])
		assert.Contains(t, rows[0]["description"], "预防复发。")
		assert.Contains(t, rows[0]["description"], "降低风险。")
	})

	t.Run("Chunks mention their entities", func(t *testing.T) {
		rows, err := graph.Read(ctx, `
			MATCH (:`+"`__Chunk__`"+` {id: 'chunk1'})-[:MENTIONS]->(e)
			RETURN e.id AS id ORDER BY e.id`, nil)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestEntitiesEmbeddings(t *testing.T) {
	graph := initGraph(t)
	ctx := context.Background()

	err := graph.EnsureSchema(ctx, 4)
	require.NoError(t, err, "Expected EnsureSchema to not return an error")

	entitiesDbHandler, err := NewEntitiesDBHandler(graph, testLogger())
	require.NoError(t, err)

	importTestChunk(t, graph, "chunk1")
	err = entitiesDbHandler.ImportGraphDocuments(ctx, []*model.GraphDocument{{
		ChunkID: "chunk1",
		Nodes: []*model.Node{
			{ID: "脑卒中", Type: "疾病", Description: "急性脑血管疾病。"},
			{ID: "高血压", Type: "危险因素", Description: "主要危险因素。"},
		},
	}})
	require.NoError(t, err)

	t.Run("Entities start without embedding", func(t *testing.T) {
		entities, err := entitiesDbHandler.SelectEntitiesWithoutEmbedding(ctx)
		require.NoError(t, err)
		assert.Len(t, entities, 2)
	})

	t.Run("Stored embeddings are returned for dedupe", func(t *testing.T) {
		err := entitiesDbHandler.StoreEmbeddings(ctx,
			[]string{"脑卒中", "高血压"},
			[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
		require.NoError(t, err)

		remaining, err := entitiesDbHandler.SelectEntitiesWithoutEmbedding(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining, "Expected no entity to be left without embedding")

		entities, err := entitiesDbHandler.SelectEntitiesForDedupe(ctx)
		require.NoError(t, err)
		require.Len(t, entities, 2)
		for _, entity := range entities {
			assert.Len(t, entity.Embedding, 4)
			assert.Contains(t, entity.Labels, "__Entity__")
		}
	})

	t.Run("Mismatched input is rejected", func(t *testing.T) {
		err := entitiesDbHandler.StoreEmbeddings(ctx, []string{"脑卒中"}, nil)
		assert.Error(t, err)
	})
}

func TestEntitiesMergeEntities(t *testing.T) {
	graph := initGraph(t)
	ctx := context.Background()

	entitiesDbHandler, err := NewEntitiesDBHandler(graph, testLogger())
	require.NoError(t, err)

	importTestChunk(t, graph, "chunk1")
	err = entitiesDbHandler.ImportGraphDocuments(ctx, []*model.GraphDocument{{
		ChunkID: "chunk1",
		Nodes: []*model.Node{
			{ID: "缺血性脑卒中", Type: "疾病", Description: "脑梗死。"},
			{ID: "缺血性卒中", Type: "疾病", Description: "同义词。"},
			{ID: "阿司匹林", Type: "药物", Description: "抗血小板药。"},
		},
		Relationships: []*model.Relationship{
			{Source: "阿司匹林", Target: "缺血性脑卒中", Type: "用于治疗", Description: "一线治疗。", Weight: 9},
			{Source: "阿司匹林", Target: "缺血性卒中", Type: "用于治疗", Description: "预防。", Weight: 7},
		},
	}})
	require.NoError(t, err)

	err = entitiesDbHandler.MergeEntities(ctx, [][]string{{"缺血性脑卒中", "缺血性卒中"}})
	require.NoError(t, err, "Expected MergeEntities to not return an error")

	t.Run("Duplicates collapse into the first node", func(t *testing.T) {
		rows, err := graph.Read(ctx,
			"MATCH (e:`__Entity__`) WHERE e.id IN ['缺血性脑卒中', '缺血性卒中'] RETURN e.id AS id, e.description AS description", nil)
		require.NoError(t, err)
		require.Len(t, rows, 1, "Expected a single surviving node")
		assert.Equal(t, "缺血性脑卒中", rows[0]["id"])
		assert.Equal(t, "脑梗死。；同义词。", rows[0]["description"])
	})

	t.Run("Parallel relationships collapse to the maximum weight", func(t *testing.T) {
		rows, err := graph.Read(ctx, `
			MATCH (:`+"`__Entity__`"+` {id: '阿司匹林'})-[r:`+"`用于治疗`"+`]->(:`+"`__Entity__`"+` {id: '缺血性脑卒中'})
			RETURN r.weight AS weight`, nil)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 9.0, rows[0]["weight"])
	})

	t.Run("Merged nodes are flagged for re-embedding", func(t *testing.T) {
		combined, err := entitiesDbHandler.SelectCombinedEntities(ctx)
		require.NoError(t, err)
		require.Len(t, combined, 1)
		assert.Equal(t, "缺血性脑卒中", combined[0].ID)

		err = entitiesDbHandler.RemoveCombinedLabels(ctx)
		require.NoError(t, err)

		combined, err = entitiesDbHandler.SelectCombinedEntities(ctx)
		require.NoError(t, err)
		assert.Empty(t, combined)
	})

	t.Run("Entity edges are listed for the community projection", func(t *testing.T) {
		edges, err := entitiesDbHandler.SelectEntityEdges(ctx)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, "阿司匹林", edges[0].Source)
		assert.Equal(t, "缺血性脑卒中", edges[0].Target)
	})
}
