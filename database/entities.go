package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

// EntityText is an entity id with its description, used for embedding.
type EntityText struct {
	ID          string
	Description string
}

// DedupeEntity is an entity with the data the deduplicator needs.
type DedupeEntity struct {
	ID        string
	Labels    []string
	Embedding []float32
}

// EntityEdge is one directed relationship between two entities.
type EntityEdge struct {
	Source string
	Target string
}

// EntitiesDBHandlerFunctions defines the interface for entity graph
// operations.
type EntitiesDBHandlerFunctions interface {
	ImportGraphDocuments(ctx context.Context, documents []*model.GraphDocument) error
	SelectEntitiesWithoutEmbedding(ctx context.Context) ([]EntityText, error)
	StoreEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error
	SelectEntitiesForDedupe(ctx context.Context) ([]DedupeEntity, error)
	MergeEntities(ctx context.Context, groups [][]string) error
	SelectCombinedEntities(ctx context.Context) ([]EntityText, error)
	RemoveCombinedLabels(ctx context.Context) error
	SelectEntityEdges(ctx context.Context) ([]EntityEdge, error)
}

// EntitiesDBHandler writes and merges the entity layer of the graph.
type EntitiesDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewEntitiesDBHandler creates a new entities graph handler.
func NewEntitiesDBHandler(graph Querier, logger *slog.Logger) (*EntitiesDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized EntitiesDBHandler")

	return &EntitiesDBHandler{graph: graph, log: logger}, nil
}

// descriptionCoalesce joins an existing and an incoming description with a
// Chinese semicolon, keeping whichever side is non-empty.
func descriptionCoalesce(existing string, incoming string) string {
	return `
		CASE
			WHEN (` + existing + ` IS NOT NULL AND ` + existing + ` <> '')
				AND (` + incoming + ` IS NOT NULL AND ` + incoming + ` <> '')
			THEN ` + existing + ` + '；' + ` + incoming + `
			WHEN (` + existing + ` IS NOT NULL AND ` + existing + ` <> '')
			THEN ` + existing + `
			WHEN (` + incoming + ` IS NOT NULL AND ` + incoming + ` <> '')
			THEN ` + incoming + `
			ELSE ''
		END`
}

// ImportGraphDocuments merges the extracted nodes and relationships of each
// chunk into the graph and links the chunk to its entities with MENTIONS.
//
// Node descriptions are concatenated instead of replaced. The placeholder
// label 未知 never displaces a concrete label and is dropped as soon as a
// concrete label arrives.
func (h *EntitiesDBHandler) ImportGraphDocuments(ctx context.Context, documents []*model.GraphDocument) error {
	for _, document := range documents {
		if document.Empty() {
			continue
		}

		err := h.importNodes(ctx, document.Nodes)
		if err != nil {
			return helper.NewError("import nodes", err)
		}

		err = h.importRelationships(ctx, document.Relationships)
		if err != nil {
			return helper.NewError("import relationships", err)
		}

		err = h.connectMentions(ctx, document.ChunkID, document.Nodes)
		if err != nil {
			return helper.NewError("connect mentions", err)
		}
	}

	h.log.Info("Imported graph documents", slog.Int("documents", len(documents)))

	return nil
}

func (h *EntitiesDBHandler) importNodes(ctx context.Context, nodes []*model.Node) error {
	// Labels cannot be parameterized, so nodes are grouped by type and
	// every type gets its own query with a literal label.
	byType := map[string][]map[string]any{}
	for _, node := range nodes {
		nodeType := node.SanitizedLabel()
		if nodeType == "" {
			nodeType = model.UnknownLabel
		}
		byType[nodeType] = append(byType[nodeType], map[string]any{
			"id":          node.ID,
			"description": node.Description,
		})
	}

	for nodeType, data := range byType {
		query := `
			UNWIND $data AS row
			MERGE (source:` + "`__Entity__`" + ` {id: row.id})
			WITH source, row, ` + descriptionCoalesce("source.description", "row.description") + ` AS mergedDescription
			SET source.description = mergedDescription
			WITH source`
		if nodeType == model.UnknownLabel {
			// Add the placeholder label only while no concrete label exists.
			query += `
			FOREACH(x IN CASE
				WHEN size([l IN labels(source) WHERE l <> '__Entity__' AND l <> '` + model.UnknownLabel + `']) = 0
				THEN [1] ELSE [] END |
					SET source:` + "`" + model.UnknownLabel + "`" + `)`
		} else {
			query += `
			FOREACH(x IN CASE WHEN '` + model.UnknownLabel + `' IN labels(source) THEN [1] ELSE [] END |
				REMOVE source:` + "`" + model.UnknownLabel + "`" + `)
			SET source:` + "`" + nodeType + "`"
		}

		err := h.graph.Write(ctx, query, map[string]any{"data": data})
		if err != nil {
			return err
		}
	}

	return nil
}

func (h *EntitiesDBHandler) importRelationships(ctx context.Context, relationships []*model.Relationship) error {
	byType := map[string][]map[string]any{}
	for _, relationship := range relationships {
		relType := relationship.SanitizedType()
		if relType == "" {
			continue
		}
		byType[relType] = append(byType[relType], map[string]any{
			"source":      relationship.Source,
			"target":      relationship.Target,
			"description": relationship.Description,
			"weight":      relationship.Weight,
		})
	}

	for relType, data := range byType {
		query := `
			UNWIND $data AS row
			MERGE (source:` + "`__Entity__`" + ` {id: row.source})
			MERGE (target:` + "`__Entity__`" + ` {id: row.target})
			MERGE (source)-[rel:` + "`" + relType + "`" + `]->(target)
			WITH rel, row,
				CASE WHEN rel.weight IS NULL OR row.weight > rel.weight THEN row.weight ELSE rel.weight END AS mergedWeight,
				` + descriptionCoalesce("rel.description", "row.description") + ` AS mergedDescription
			SET rel.weight = mergedWeight, rel.description = mergedDescription`

		err := h.graph.Write(ctx, query, map[string]any{"data": data})
		if err != nil {
			return err
		}
	}

	return nil
}

func (h *EntitiesDBHandler) connectMentions(ctx context.Context, chunkID string, nodes []*model.Node) error {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}

	return h.graph.Write(ctx, `
		MATCH (c:`+"`__Chunk__`"+` {id: $chunk_id})
		UNWIND $ids AS id
		MATCH (e:`+"`__Entity__`"+` {id: id})
		MERGE (c)-[:MENTIONS]->(e)`,
		map[string]any{"chunk_id": chunkID, "ids": ids})
}

// SelectEntitiesWithoutEmbedding returns the entities that still need an
// embedding.
func (h *EntitiesDBHandler) SelectEntitiesWithoutEmbedding(ctx context.Context) ([]EntityText, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (e:`+"`__Entity__`"+`)
		WHERE e.embedding IS NULL
		RETURN e.id AS id, coalesce(e.description, '') AS description`, nil)
	if err != nil {
		return nil, helper.NewError("select entities without embedding", err)
	}

	return entityTexts(rows), nil
}

// StoreEmbeddings writes one embedding vector per entity id.
func (h *EntitiesDBHandler) StoreEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return helper.NewError("store embeddings", fmt.Errorf("got %v ids and %v embeddings", len(ids), len(embeddings)))
	}

	data := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		data = append(data, map[string]any{"id": id, "embedding": embeddings[i]})
	}

	err := h.graph.Write(ctx, `
		UNWIND $data AS row
		MATCH (e:`+"`__Entity__`"+` {id: row.id})
		CALL db.create.setNodeVectorProperty(e, 'embedding', row.embedding)`,
		map[string]any{"data": data})
	if err != nil {
		return helper.NewError("store embeddings", err)
	}

	return nil
}

// SelectEntitiesForDedupe returns all embedded entities with an id longer
// than one character, together with their labels.
func (h *EntitiesDBHandler) SelectEntitiesForDedupe(ctx context.Context) ([]DedupeEntity, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (e:`+"`__Entity__`"+`)
		WHERE size(e.id) > 1 AND e.id IS NOT NULL AND e.embedding IS NOT NULL
		RETURN e.id AS id, labels(e) AS labels, e.embedding AS embedding`, nil)
	if err != nil {
		return nil, helper.NewError("select entities for dedupe", err)
	}

	entities := make([]DedupeEntity, 0, len(rows))
	for _, row := range rows {
		entity := DedupeEntity{}
		entity.ID, _ = row["id"].(string)
		if labels, ok := row["labels"].([]any); ok {
			for _, label := range labels {
				if l, ok := label.(string); ok {
					entity.Labels = append(entity.Labels, l)
				}
			}
		}
		if embedding, ok := row["embedding"].([]any); ok {
			entity.Embedding = make([]float32, 0, len(embedding))
			for _, value := range embedding {
				if f, ok := value.(float64); ok {
					entity.Embedding = append(entity.Embedding, float32(f))
				}
			}
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// MergeEntities consolidates each group of duplicate ids into its first
// node. Descriptions are joined, all other properties keep the first
// node's value, and every merged node gets a temporary __Combined__ label
// for the follow-up passes.
func (h *EntitiesDBHandler) MergeEntities(ctx context.Context, groups [][]string) error {
	if len(groups) == 0 {
		return nil
	}

	err := h.graph.Write(ctx, `
		UNWIND $data AS candidates
		CALL (candidates) {
			MATCH (e:`+"`__Entity__`"+`) WHERE e.id IN candidates
			RETURN collect(e) AS nodes
		}
		WITH nodes, nodes[0] AS firstnode
		SET firstnode:`+"`__Combined__`"+`
		WITH nodes, firstnode, [n IN nodes | n.description] AS descriptions
		WITH nodes, firstnode,
			reduce(mergedDesc = '', desc IN descriptions |
				CASE
					WHEN mergedDesc <> '' AND desc IS NOT NULL AND desc <> '' THEN mergedDesc + '；' + desc
					WHEN mergedDesc <> '' THEN mergedDesc
					WHEN desc IS NOT NULL AND desc <> '' THEN desc
					ELSE ''
				END) AS combinedDescription
		SET firstnode.description = combinedDescription
		WITH nodes
		CALL apoc.refactor.mergeNodes(nodes, {properties: {`+"`.*`"+`: 'discard'}})
		YIELD node
		RETURN node`,
		map[string]any{"data": groups})
	if err != nil {
		return helper.NewError("merge entities", err)
	}

	err = h.collapseParallelRelationships(ctx)
	if err != nil {
		return helper.NewError("collapse parallel relationships", err)
	}

	h.log.Info("Merged duplicate entities", slog.Int("groups", len(groups)))

	return nil
}

// collapseParallelRelationships reduces parallel relationships of merged
// nodes to a single one per type, keeping the maximum weight and the
// joined description.
func (h *EntitiesDBHandler) collapseParallelRelationships(ctx context.Context) error {
	collapse := func(pattern string) string {
		return `
		MATCH (n:` + "`__Combined__`" + `)
		MATCH ` + pattern + `
		WITH other, n, type(r) AS relType, collect(r) AS rels
		WHERE size(rels) > 1
		CALL (rels) {
			WITH rels[0] AS firstrel,
				reduce(mergedDesc = '', r IN rels |
					CASE
						WHEN mergedDesc <> '' AND r.description IS NOT NULL AND r.description <> '' THEN mergedDesc + '；' + r.description
						WHEN mergedDesc <> '' THEN mergedDesc
						WHEN r.description IS NOT NULL AND r.description <> '' THEN r.description
						ELSE ''
					END) AS combinedDescription,
				reduce(maxWeight = 0.0, r IN rels |
					CASE WHEN r.weight IS NOT NULL AND r.weight > maxWeight THEN r.weight ELSE maxWeight END) AS maxWeight
			SET firstrel.description = combinedDescription
			SET firstrel.weight = maxWeight
			WITH rels
			UNWIND range(1, size(rels)-1) AS index
			DELETE rels[index]
		}`
	}

	err := h.graph.Write(ctx, collapse(`(n)-[r]->(other)`), nil)
	if err != nil {
		return err
	}

	return h.graph.Write(ctx, collapse(`(other)-[r]->(n)`), nil)
}

// SelectCombinedEntities returns the merged entities that need to be
// re-embedded.
func (h *EntitiesDBHandler) SelectCombinedEntities(ctx context.Context) ([]EntityText, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (e:`+"`__Combined__`"+`)
		RETURN e.id AS id, coalesce(e.description, '') AS description`, nil)
	if err != nil {
		return nil, helper.NewError("select combined entities", err)
	}

	return entityTexts(rows), nil
}

// RemoveCombinedLabels drops the temporary merge label.
func (h *EntitiesDBHandler) RemoveCombinedLabels(ctx context.Context) error {
	err := h.graph.Write(ctx, `
		MATCH (n:`+"`__Combined__`"+`)
		REMOVE n:`+"`__Combined__`", nil)
	if err != nil {
		return helper.NewError("remove combined labels", err)
	}

	return nil
}

// SelectEntityEdges returns every directed relationship between two
// entities, one row per stored edge.
func (h *EntitiesDBHandler) SelectEntityEdges(ctx context.Context) ([]EntityEdge, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (a:`+"`__Entity__`"+`)-[r]->(b:`+"`__Entity__`"+`)
		RETURN a.id AS source, b.id AS target`, nil)
	if err != nil {
		return nil, helper.NewError("select entity edges", err)
	}

	edges := make([]EntityEdge, 0, len(rows))
	for _, row := range rows {
		edge := EntityEdge{}
		edge.Source, _ = row["source"].(string)
		edge.Target, _ = row["target"].(string)
		edges = append(edges, edge)
	}

	return edges, nil
}

func entityTexts(rows []map[string]any) []EntityText {
	entities := make([]EntityText, 0, len(rows))
	for _, row := range rows {
		entity := EntityText{}
		entity.ID, _ = row["id"].(string)
		entity.Description, _ = row["description"].(string)
		entities = append(entities, entity)
	}
	return entities
}
