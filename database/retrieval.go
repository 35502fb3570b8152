package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

// ChunkRef is a chunk citation inside a local retrieval context.
type ChunkRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LocalContext is the expanded neighborhood of the entities nearest to a
// query, assembled into the four collections the answer prompt cites.
type LocalContext struct {
	Chunks        []ChunkRef `json:"Chunks"`
	Reports       []string   `json:"Reports"`
	Relationships []string   `json:"Relationships"`
	Entities      []string   `json:"Entities"`
}

// RetrievalDBHandlerFunctions defines the interface for retrieval reads.
type RetrievalDBHandlerFunctions interface {
	LocalContext(ctx context.Context, embedding []float32, options model.QueryOptions) (*LocalContext, error)
}

// RetrievalDBHandler reads query-time context from the graph.
type RetrievalDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewRetrievalDBHandler creates a new retrieval graph handler.
func NewRetrievalDBHandler(graph Querier, logger *slog.Logger) (*RetrievalDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized RetrievalDBHandler")

	return &RetrievalDBHandler{graph: graph, log: logger}, nil
}

// LocalContext finds the nearest entities on the vector index and expands
// them in the same query into mentioning chunks, community reports,
// relationships leaving and staying inside the selection, and the entity
// descriptions themselves.
func (h *RetrievalDBHandler) LocalContext(ctx context.Context, embedding []float32, options model.QueryOptions) (*LocalContext, error) {
	rows, err := h.graph.Read(ctx, `
		CALL db.index.vector.queryNodes('vector', $topEntities, $embedding)
		YIELD node
		WITH collect(node) AS nodes
		WITH
		collect {
			UNWIND nodes AS n
			MATCH (n)<-[:MENTIONS]-(c:`+"`__Chunk__`"+`)
			WITH distinct c, count(distinct n) AS freq
			RETURN {id: c.id, text: c.text} AS chunkText
			ORDER BY freq DESC
			LIMIT $topChunks
		} AS text_mapping,
		collect {
			UNWIND nodes AS n
			MATCH (n)-[:IN_COMMUNITY]->(c:`+"`__Community__`"+`)
			WHERE c.summary IS NOT NULL
			WITH distinct c, c.community_rank AS rank, c.weight AS weight
			RETURN c.summary
			ORDER BY rank DESC, weight DESC
			LIMIT $topCommunities
		} AS report_mapping,
		collect {
			UNWIND nodes AS n
			MATCH (n)-[r]-(m:`+"`__Entity__`"+`)
			WHERE NOT m IN nodes
			RETURN r.description AS descriptionText
			ORDER BY r.weight DESC
			LIMIT $topOutsideRels
		} AS outsideRels,
		collect {
			UNWIND nodes AS n
			MATCH (n)-[r]-(m:`+"`__Entity__`"+`)
			WHERE m IN nodes
			RETURN r.description AS descriptionText
			ORDER BY r.weight DESC
			LIMIT $topInsideRels
		} AS insideRels,
		collect {
			UNWIND nodes AS n
			RETURN n.description AS descriptionText
		} AS entities
		RETURN text_mapping AS chunks, report_mapping AS reports,
			outsideRels + insideRels AS rels, entities`,
		map[string]any{
			"embedding":      embedding,
			"topEntities":    options.TopEntities,
			"topChunks":      options.TopChunks,
			"topCommunities": options.TopCommunities,
			"topOutsideRels": options.TopOutsideRels,
			"topInsideRels":  options.TopInsideRels,
		})
	if err != nil {
		return nil, helper.NewError("local retrieval context", err)
	}
	if len(rows) == 0 {
		return &LocalContext{}, nil
	}

	localContext := &LocalContext{}
	if chunks, ok := rows[0]["chunks"].([]any); ok {
		for _, value := range chunks {
			chunkMap, ok := value.(map[string]any)
			if !ok {
				continue
			}
			chunk := ChunkRef{}
			chunk.ID, _ = chunkMap["id"].(string)
			chunk.Text, _ = chunkMap["text"].(string)
			localContext.Chunks = append(localContext.Chunks, chunk)
		}
	}
	localContext.Reports = toStrings(rows[0]["reports"])
	localContext.Relationships = toStrings(rows[0]["rels"])
	localContext.Entities = toStrings(rows[0]["entities"])

	return localContext, nil
}

func toStrings(value any) []string {
	values, ok := value.([]any)
	if !ok {
		return nil
	}
	strings := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			strings = append(strings, s)
		}
	}
	return strings
}
