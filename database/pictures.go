package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/graphmed/graphmed/helper"
)

// PicturesDBHandlerFunctions defines the interface for image attachment.
type PicturesDBHandlerFunctions interface {
	ListEntityLabels(ctx context.Context) ([]string, error)
	SelectEntityIDsByLabel(ctx context.Context, label string) ([]string, error)
	SetImageURL(ctx context.Context, id string, imageURL string) error
}

// PicturesDBHandler reads entity labels and writes image urls.
type PicturesDBHandler struct {
	graph Querier
	log   *slog.Logger
}

// NewPicturesDBHandler creates a new pictures graph handler.
func NewPicturesDBHandler(graph Querier, logger *slog.Logger) (*PicturesDBHandler, error) {
	if graph == nil {
		return nil, helper.NewError("graph connection validation", fmt.Errorf("graph connection is nil"))
	}

	logger.Info("Initialized PicturesDBHandler")

	return &PicturesDBHandler{graph: graph, log: logger}, nil
}

// ListEntityLabels returns the concrete entity type labels present in the
// graph, without the structural sentinel labels.
func (h *PicturesDBHandler) ListEntityLabels(ctx context.Context) ([]string, error) {
	rows, err := h.graph.Read(ctx, `
		MATCH (e:`+"`__Entity__`"+`)
		UNWIND labels(e) AS label
		WITH distinct label
		WHERE NOT label STARTS WITH '__'
		RETURN label
		ORDER BY label`, nil)
	if err != nil {
		return nil, helper.NewError("list entity labels", err)
	}

	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		if label, ok := row["label"].(string); ok {
			labels = append(labels, label)
		}
	}

	return labels, nil
}

// SelectEntityIDsByLabel returns the ids of all entities carrying the
// given type label.
func (h *PicturesDBHandler) SelectEntityIDsByLabel(ctx context.Context, label string) ([]string, error) {
	sanitized := strings.ReplaceAll(label, "`", "")
	rows, err := h.graph.Read(ctx, `
		MATCH (e:`+"`__Entity__`:`"+sanitized+"`"+`)
		WHERE e.id IS NOT NULL
		RETURN e.id AS id
		ORDER BY e.id`, nil)
	if err != nil {
		return nil, helper.NewError("select entities by label", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// SetImageURL stores the image url on the entity.
func (h *PicturesDBHandler) SetImageURL(ctx context.Context, id string, imageURL string) error {
	err := h.graph.Write(ctx, `
		MATCH (e:`+"`__Entity__`"+` {id: $id})
		SET e.image_url = $image_url`,
		map[string]any{"id": id, "image_url": imageURL})
	if err != nil {
		return helper.NewError("set image url", err)
	}

	return nil
}
