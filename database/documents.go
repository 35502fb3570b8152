package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

// DocumentsDBHandlerFunctions defines the interface for document and chunk
// graph operations.
type DocumentsDBHandlerFunctions interface {
	MergeDocument(ctx context.Context, document *model.Document) error
	ConnectChunks(ctx context.Context, fileName string, chunks []*model.Chunk) error
	SelectChunkIDs(ctx context.Context, fileName string) ([]string, error)
}

// DocumentsDBHandler writes the document and chunk layer of the graph.
type DocumentsDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewDocumentsDBHandler creates a new documents graph handler.
func NewDocumentsDBHandler(graph Querier, logger *slog.Logger) (*DocumentsDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized DocumentsDBHandler")

	return &DocumentsDBHandler{graph: graph, log: logger}, nil
}

// MergeDocument creates or updates a document node keyed by file name.
func (h *DocumentsDBHandler) MergeDocument(ctx context.Context, document *model.Document) error {
	err := h.graph.Write(ctx, `
		MERGE (d:`+"`__Document__`"+` {fileName: $file_name})
		SET d.type = $type, d.uri = $uri`,
		map[string]any{
			"file_name": document.FileName,
			"type":      document.Type,
			"uri":       document.URI,
		})
	if err != nil {
		return helper.NewError("merge document", err)
	}

	return nil
}

// ConnectChunks writes the chunk nodes of one document and links them with
// PART_OF, FIRST_CHUNK and NEXT_CHUNK relationships.
func (h *DocumentsDBHandler) ConnectChunks(ctx context.Context, fileName string, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batchData := []map[string]any{}
	relationships := []map[string]any{}
	for i, chunk := range chunks {
		batchData = append(batchData, map[string]any{
			"id":             chunk.ID,
			"pg_content":     chunk.Text,
			"position":       chunk.Position,
			"length":         chunk.Length,
			"f_name":         fileName,
			"previous_id":    chunk.PreviousID,
			"content_offset": chunk.ContentOffset,
			"tokens":         chunk.Tokens,
		})
		if i == 0 {
			relationships = append(relationships, map[string]any{
				"type":     "FIRST_CHUNK",
				"chunk_id": chunk.ID,
			})
		} else {
			relationships = append(relationships, map[string]any{
				"type":              "NEXT_CHUNK",
				"previous_chunk_id": chunk.PreviousID,
				"current_chunk_id":  chunk.ID,
			})
		}
	}

	err := h.graph.Write(ctx, `
		UNWIND $batch_data AS data
		MERGE (c:`+"`__Chunk__`"+` {id: data.id})
		SET c.text = data.pg_content, c.position = data.position, c.length = data.length,
			c.fileName = data.f_name, c.content_offset = data.content_offset, c.tokens = data.tokens
		WITH data, c
		MATCH (d:`+"`__Document__`"+` {fileName: data.f_name})
		MERGE (c)-[:PART_OF]->(d)`,
		map[string]any{"batch_data": batchData})
	if err != nil {
		return helper.NewError("create chunks", err)
	}

	err = h.graph.Write(ctx, `
		UNWIND $relationships AS relationship
		MATCH (d:`+"`__Document__`"+` {fileName: $f_name})
		MATCH (c:`+"`__Chunk__`"+` {id: relationship.chunk_id})
		FOREACH(r IN CASE WHEN relationship.type = 'FIRST_CHUNK' THEN [1] ELSE [] END |
			MERGE (d)-[:FIRST_CHUNK]->(c))`,
		map[string]any{"f_name": fileName, "relationships": relationships})
	if err != nil {
		return helper.NewError("create first chunk relation", err)
	}

	err = h.graph.Write(ctx, `
		UNWIND $relationships AS relationship
		MATCH (c:`+"`__Chunk__`"+` {id: relationship.current_chunk_id})
		WITH c, relationship
		MATCH (pc:`+"`__Chunk__`"+` {id: relationship.previous_chunk_id})
		FOREACH(r IN CASE WHEN relationship.type = 'NEXT_CHUNK' THEN [1] ELSE [] END |
			MERGE (c)<-[:NEXT_CHUNK]-(pc))`,
		map[string]any{"relationships": relationships})
	if err != nil {
		return helper.NewError("create next chunk relations", err)
	}

	h.log.Info("Connected chunks", slog.String("fileName", fileName), slog.Int("chunks", len(chunks)))

	return nil
}

// SelectChunkIDs returns the chunk ids of a document in reading order.
func (h *DocumentsDBHandler) SelectChunkIDs(ctx context.Context, fileName string) ([]string, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (c:`+"`__Chunk__`"+` {fileName: $file_name})
		RETURN c.id AS id
		ORDER BY c.position`,
		map[string]any{"file_name": fileName})
	if err != nil {
		return nil, helper.NewError("select chunk ids", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
