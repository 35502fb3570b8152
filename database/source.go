package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphmed/graphmed/helper"
)

// SourceRecord is the origin of a citation, either a text chunk or a
// community report.
type SourceRecord struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Text     string `json:"text"`
	FileName string `json:"fileName,omitempty"`
	Position int64  `json:"position,omitempty"`
}

// SourceDBHandlerFunctions defines the interface for citation lookups.
type SourceDBHandlerFunctions interface {
	Lookup(ctx context.Context, id string) (*SourceRecord, error)
}

// SourceDBHandler resolves citation ids from query answers back to their
// stored origin.
type SourceDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewSourceDBHandler creates a new source graph handler.
func NewSourceDBHandler(graph Querier, logger *slog.Logger) (*SourceDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized SourceDBHandler")

	return &SourceDBHandler{graph: graph, log: logger}, nil
}

// Lookup resolves a chunk id (SHA1 hex) or a community id ("<level>-<n>")
// to its stored text.
func (h *SourceDBHandler) Lookup(ctx context.Context, id string) (*SourceRecord, error) {
	if strings.Contains(id, "-") {
		return h.lookupCommunity(ctx, id)
	}
	return h.lookupChunk(ctx, id)
}

func (h *SourceDBHandler) lookupChunk(ctx context.Context, id string) (*SourceRecord, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (c:`+"`__Chunk__`"+` {id: $id})
		RETURN c.text AS text, c.fileName AS fileName, c.position AS position`,
		map[string]any{"id": id})
	if err != nil {
		return nil, helper.NewError("lookup chunk", err)
	}
	if len(rows) == 0 {
		return nil, helper.NewError("lookup chunk", fmt.Errorf("no chunk with id %v", id))
	}

	record := &SourceRecord{Kind: "chunk", ID: id}
	record.Text, _ = rows[0]["text"].(string)
	record.FileName, _ = rows[0]["fileName"].(string)
	record.Position, _ = rows[0]["position"].(int64)

	return record, nil
}

func (h *SourceDBHandler) lookupCommunity(ctx context.Context, id string) (*SourceRecord, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (c:`+"`__Community__`"+` {id: $id})
		RETURN c.summary AS summary`,
		map[string]any{"id": id})
	if err != nil {
		return nil, helper.NewError("lookup community", err)
	}
	if len(rows) == 0 {
		return nil, helper.NewError("lookup community", fmt.Errorf("no community with id %v", id))
	}

	record := &SourceRecord{Kind: "community", ID: id}
	record.Text, _ = rows[0]["summary"].(string)

	return record, nil
}
