package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knights-analytics/hugot"

	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/helper"
)

// embedBatchSize bounds how many texts go into one embedding request.
const embedBatchSize = 100

// LocalEmbedder creates an embedder running the given sentence
// transformer model locally. The returned close function releases the
// model session.
func LocalEmbedder(modelName string) (EmbedFunc, func() error, error) {
	modelPath, err := helper.PrepareModel(modelName)
	if err != nil {
		return nil, nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "entity-embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		result, err := sentencePipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(result.Embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
		}
		return result.Embeddings, nil
	}

	return embed, session.Destroy, nil
}

// EntityEmbedderStore is the entity access the embedder stage needs.
type EntityEmbedderStore interface {
	SelectEntitiesWithoutEmbedding(ctx context.Context) ([]database.EntityText, error)
	SelectCombinedEntities(ctx context.Context) ([]database.EntityText, error)
	StoreEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error
}

// EntityEmbedder embeds entity id and description pairs and stores the
// vectors on the entity nodes.
type EntityEmbedder struct {
	embed EmbedFunc
	store EntityEmbedderStore
	log   *slog.Logger
}

// NewEntityEmbedder creates a new entity embedder stage.
func NewEntityEmbedder(embed EmbedFunc, store EntityEmbedderStore, logger *slog.Logger) (*EntityEmbedder, error) {
	if embed == nil {
		return nil, helper.NewError("entity embedder validation", fmt.Errorf("embed function is nil"))
	}
	if store == nil {
		return nil, helper.NewError("entity embedder validation", fmt.Errorf("store is nil"))
	}

	return &EntityEmbedder{embed: embed, store: store, log: logger}, nil
}

// entityText renders an entity the way it is embedded, mirroring the
// vector index content used at query time.
func entityText(entity database.EntityText) string {
	return fmt.Sprintf("\nid: %v\ndescription: %v", entity.ID, entity.Description)
}

// EmbedNew embeds every entity that has no embedding yet and returns how
// many were embedded.
func (e *EntityEmbedder) EmbedNew(ctx context.Context) (int, error) {
	entities, err := e.store.SelectEntitiesWithoutEmbedding(ctx)
	if err != nil {
		return 0, helper.NewError("select entities without embedding", err)
	}

	err = e.embedAndStore(ctx, entities)
	if err != nil {
		return 0, err
	}

	e.log.Info("Embedded new entities", slog.Int("entities", len(entities)))

	return len(entities), nil
}

// ReembedCombined refreshes the embeddings of entities that were just
// merged by the deduplicator.
func (e *EntityEmbedder) ReembedCombined(ctx context.Context) (int, error) {
	entities, err := e.store.SelectCombinedEntities(ctx)
	if err != nil {
		return 0, helper.NewError("select combined entities", err)
	}

	err = e.embedAndStore(ctx, entities)
	if err != nil {
		return 0, err
	}

	e.log.Info("Re-embedded merged entities", slog.Int("entities", len(entities)))

	return len(entities), nil
}

func (e *EntityEmbedder) embedAndStore(ctx context.Context, entities []database.EntityText) error {
	for start := 0; start < len(entities); start += embedBatchSize {
		end := min(start+embedBatchSize, len(entities))
		batch := entities[start:end]

		texts := make([]string, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, entity := range batch {
			texts = append(texts, entityText(entity))
			ids = append(ids, entity.ID)
		}

		embeddings, err := e.embed(ctx, texts)
		if err != nil {
			return helper.NewError("embed entities", err)
		}

		err = e.store.StoreEmbeddings(ctx, ids, embeddings)
		if err != nil {
			return helper.NewError("store embeddings", err)
		}
	}

	return nil
}
