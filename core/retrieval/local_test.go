package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/model"
)

type fakeLocalStore struct {
	localContext *database.LocalContext
	embedding    []float32
}

func (f *fakeLocalStore) LocalContext(ctx context.Context, embedding []float32, options model.QueryOptions) (*database.LocalContext, error) {
	f.embedding = embedding
	return f.localContext, nil
}

func TestLocalRetriever(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{0.1, 0.2, 0.3}}, nil
	}

	t.Run("Invalid call NewLocalRetriever with nil store", func(t *testing.T) {
		chat := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return "", nil
		}
		_, err := NewLocalRetriever(nil, embed, chat, model.DefaultQueryOptions(), logger)
		assert.Error(t, err)
	})

	t.Run("Report reaches the LLM with the question", func(t *testing.T) {
		store := &fakeLocalStore{localContext: &database.LocalContext{
			Chunks:        []database.ChunkRef{{ID: "abc123", Text: "阿司匹林用于二级预防。"}},
			Reports:       []string{"社区摘要。"},
			Relationships: []string{"预防复发。"},
			Entities:      []string{"抗血小板药。"},
		}}

		var seenSystem, seenUser string
		chat := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			seenSystem = systemPrompt
			seenUser = userPrompt
			return "答案。", nil
		}

		retriever, err := NewLocalRetriever(store, embed, chat, model.DefaultQueryOptions(), logger)
		require.NoError(t, err)

		answer, err := retriever.Search(context.Background(), "阿司匹林能预防脑卒中吗？")
		require.NoError(t, err)

		assert.Equal(t, "答案。", answer)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, store.embedding)
		assert.Contains(t, seenSystem, "多个段落")
		assert.Contains(t, seenUser, "阿司匹林能预防脑卒中吗？")
		assert.Contains(t, seenUser, `"Chunks"`)
		assert.Contains(t, seenUser, "abc123")
		assert.Contains(t, seenUser, "社区摘要。")
	})

	t.Run("Embedding failure aborts the search", func(t *testing.T) {
		store := &fakeLocalStore{localContext: &database.LocalContext{}}
		failingEmbed := func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, fmt.Errorf("model not loaded")
		}
		chat := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return "答案。", nil
		}

		retriever, err := NewLocalRetriever(store, failingEmbed, chat, model.DefaultQueryOptions(), logger)
		require.NoError(t, err)

		_, err = retriever.Search(context.Background(), "问题？")
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "embed question"))
	})
}
