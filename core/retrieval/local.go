package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/graphmed/graphmed/core/pipeline"
	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/helper"
	"github.com/graphmed/graphmed/model"
)

// LocalStore is the graph access the local retriever needs.
type LocalStore interface {
	LocalContext(ctx context.Context, embedding []float32, options model.QueryOptions) (*database.LocalContext, error)
}

// LocalRetriever answers a question from the graph neighborhood of the
// entities closest to the query embedding.
type LocalRetriever struct {
	store   LocalStore
	embed   pipeline.EmbedFunc
	chat    pipeline.ChatFunc
	options model.QueryOptions
	log     *slog.Logger
}

// NewLocalRetriever creates a new local retriever.
func NewLocalRetriever(store LocalStore, embed pipeline.EmbedFunc, chat pipeline.ChatFunc, options model.QueryOptions, logger *slog.Logger) (*LocalRetriever, error) {
	if store == nil {
		return nil, helper.NewError("local retriever validation", fmt.Errorf("store is nil"))
	}
	if embed == nil {
		return nil, helper.NewError("local retriever validation", fmt.Errorf("embed function is nil"))
	}
	if chat == nil {
		return nil, helper.NewError("local retriever validation", fmt.Errorf("chat function is nil"))
	}

	return &LocalRetriever{store: store, embed: embed, chat: chat, options: options, log: logger}, nil
}

// Search embeds the question, expands the nearest entities into an
// analysis report and asks the LLM for the answer.
func (r *LocalRetriever) Search(ctx context.Context, question string) (string, error) {
	embeddings, err := r.embed(ctx, []string{question})
	if err != nil {
		return "", helper.NewError("embed question", err)
	}

	localContext, err := r.store.LocalContext(ctx, embeddings[0], r.options)
	if err != nil {
		return "", err
	}

	report, err := json.Marshal(localContext)
	if err != nil {
		return "", helper.NewError("render analysis report", err)
	}

	r.log.Info("Assembled local context",
		slog.Int("chunks", len(localContext.Chunks)),
		slog.Int("reports", len(localContext.Reports)),
		slog.Int("relationships", len(localContext.Relationships)),
		slog.Int("entities", len(localContext.Entities)))

	answer, err := r.chat(ctx, LocalSystemPrompt(r.options.ResponseType), LocalUserPrompt(string(report), question))
	if err != nil {
		return "", helper.NewError("local answer", err)
	}

	return answer, nil
}
