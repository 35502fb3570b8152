package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/model"
)

type fakeDedupeStore struct {
	entities []database.DedupeEntity
	merged   [][]string
}

func (f *fakeDedupeStore) SelectEntitiesForDedupe(ctx context.Context) ([]database.DedupeEntity, error) {
	return f.entities, nil
}

func (f *fakeDedupeStore) MergeEntities(ctx context.Context, groups [][]string) error {
	f.merged = groups
	return nil
}

func TestLevenshtein(t *testing.T) {
	t.Run("Known distances", func(t *testing.T) {
		assert.Equal(t, 0, levenshtein("脑卒中", "脑卒中"))
		assert.Equal(t, 1, levenshtein("缺血性脑卒中", "缺血性卒中"))
		assert.Equal(t, 3, levenshtein("abc", ""))
		assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	})
}

func TestDeduplicator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	entities := []database.DedupeEntity{
		{ID: "缺血性脑卒中", Labels: []string{"__Entity__", "疾病"}, Embedding: []float32{1, 0, 0}},
		{ID: "缺血性卒中", Labels: []string{"__Entity__", "疾病"}, Embedding: []float32{0.999, 0.01, 0}},
		{ID: "阿司匹林", Labels: []string{"__Entity__", "药物"}, Embedding: []float32{0, 1, 0}},
	}

	t.Run("Near-duplicates are merged after arbitration", func(t *testing.T) {
		store := &fakeDedupeStore{entities: entities}
		chatJSON := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return `{"merge_entities": [["缺血性脑卒中", "缺血性卒中"]]}`, nil
		}

		deduplicator, err := NewDeduplicator(store, chatJSON, model.DefaultOptions(), logger)
		require.NoError(t, err)

		merged, err := deduplicator.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, merged, 1)
		assert.ElementsMatch(t, []string{"缺血性脑卒中", "缺血性卒中"}, merged[0])
		assert.Equal(t, merged, store.merged)
	})

	t.Run("Arbitration rejection merges nothing", func(t *testing.T) {
		store := &fakeDedupeStore{entities: entities}
		chatJSON := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return `{"merge_entities": []}`, nil
		}

		deduplicator, err := NewDeduplicator(store, chatJSON, model.DefaultOptions(), logger)
		require.NoError(t, err)

		merged, err := deduplicator.Run(context.Background())
		require.NoError(t, err)

		assert.Empty(t, merged)
		assert.Empty(t, store.merged)
	})

	t.Run("LLM failure keeps candidates separate", func(t *testing.T) {
		store := &fakeDedupeStore{entities: entities}
		chatJSON := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return "", fmt.Errorf("llm unavailable")
		}

		deduplicator, err := NewDeduplicator(store, chatJSON, model.DefaultOptions(), logger)
		require.NoError(t, err)

		merged, err := deduplicator.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, merged)
	})

	t.Run("Distant entities never become candidates", func(t *testing.T) {
		store := &fakeDedupeStore{entities: []database.DedupeEntity{
			{ID: "脑卒中", Labels: []string{"__Entity__", "疾病"}, Embedding: []float32{1, 0, 0}},
			{ID: "阿司匹林", Labels: []string{"__Entity__", "药物"}, Embedding: []float32{0, 1, 0}},
		}}
		calls := 0
		chatJSON := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			calls++
			return `{"merge_entities": []}`, nil
		}

		deduplicator, err := NewDeduplicator(store, chatJSON, model.DefaultOptions(), logger)
		require.NoError(t, err)

		merged, err := deduplicator.Run(context.Background())
		require.NoError(t, err)
		assert.Empty(t, merged)
		assert.Zero(t, calls, "Expected no LLM call without candidates")
	})

	t.Run("Different labels block the merge candidate", func(t *testing.T) {
		store := &fakeDedupeStore{entities: []database.DedupeEntity{
			{ID: "脑水肿", Labels: []string{"__Entity__", "疾病"}, Embedding: []float32{1, 0, 0}},
			{ID: "脑水肿液", Labels: []string{"__Entity__", "代谢物"}, Embedding: []float32{0.999, 0.01, 0}},
		}}
		calls := 0
		chatJSON := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			calls++
			return `{"merge_entities": []}`, nil
		}

		deduplicator, err := NewDeduplicator(store, chatJSON, model.DefaultOptions(), logger)
		require.NoError(t, err)

		_, err = deduplicator.Run(context.Background())
		require.NoError(t, err)
		assert.Zero(t, calls, "Expected label mismatch to filter the candidates")
	})
}

func TestMergeOverlapping(t *testing.T) {
	t.Run("Groups sharing members are unioned", func(t *testing.T) {
		groups := mergeOverlapping([][]string{{"a", "b"}, {"b", "c"}, {"d", "e"}})

		assert.ElementsMatch(t, [][]string{{"a", "b", "c"}, {"d", "e"}}, groups)
	})

	t.Run("Subset groups are dropped", func(t *testing.T) {
		groups := mergeOverlapping([][]string{{"a", "b", "c"}, {"a", "b"}})

		assert.Equal(t, [][]string{{"a", "b", "c"}}, groups)
	})
}
