package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmed/graphmed/model"
)

func TestParseGraphDocument(t *testing.T) {
	t.Run("Tolerant parse with placeholder endpoint", func(t *testing.T) {
		result := `("entity" : "阿司匹林" : "药物" : "抗血小板药。")
garbage line
("relationship" : "阿司匹林" : "缺血性脑卒中" : "用于治疗" : "预防复发。" : 9)`

		document := ParseGraphDocument("chunk1", result)

		require.Len(t, document.Nodes, 2)
		assert.Equal(t, "阿司匹林", document.Nodes[0].ID)
		assert.Equal(t, "药物", document.Nodes[0].Type)
		assert.Equal(t, "缺血性脑卒中", document.Nodes[1].ID)
		assert.Equal(t, model.UnknownLabel, document.Nodes[1].Type)
		assert.Empty(t, document.Nodes[1].Description)

		require.Len(t, document.Relationships, 1)
		assert.Equal(t, "用于治疗", document.Relationships[0].Type)
		assert.Equal(t, 9.0, document.Relationships[0].Weight)
	})

	t.Run("Duplicate entity records keep the first", func(t *testing.T) {
		result := `("entity" : "脑卒中" : "疾病" : "第一个描述。")
("entity" : "脑卒中" : "症状" : "第二个描述。")`

		document := ParseGraphDocument("chunk1", result)

		require.Len(t, document.Nodes, 1)
		assert.Equal(t, "疾病", document.Nodes[0].Type)
		assert.Equal(t, "第一个描述。", document.Nodes[0].Description)
	})

	t.Run("Unparseable weight drops the record", func(t *testing.T) {
		result := `("relationship" : "a" : "b" : "相关" : "描述。" : 不是数字)`

		document := ParseGraphDocument("chunk1", result)

		assert.Empty(t, document.Relationships)
		assert.Empty(t, document.Nodes, "Expected no placeholders for a dropped record")
	})

	t.Run("Fractional weights are kept", func(t *testing.T) {
		result := `("relationship" : "a" : "b" : "相关" : "描述。" : 7.5)`

		document := ParseGraphDocument("chunk1", result)

		require.Len(t, document.Relationships, 1)
		assert.Equal(t, 7.5, document.Relationships[0].Weight)
	})

	t.Run("Garbage only gives an empty document", func(t *testing.T) {
		document := ParseGraphDocument("chunk1", "nothing to see here")

		assert.True(t, document.Empty())
		assert.Equal(t, "chunk1", document.ChunkID)
	})
}

func TestExtractor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Invalid call NewExtractor with nil chat", func(t *testing.T) {
		_, err := NewExtractor(nil, 12, logger)
		assert.Error(t, err)
	})

	t.Run("Failed chunks are skipped, not fatal", func(t *testing.T) {
		chat := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			if strings.Contains(userPrompt, "坏块") {
				return "", fmt.Errorf("llm unavailable")
			}
			return `("entity" : "脑卒中" : "疾病" : "急症。")`, nil
		}
		extractor, err := NewExtractor(chat, 2, logger)
		require.NoError(t, err)

		documents := extractor.Extract(context.Background(), []*model.Chunk{
			{ID: "c1", Text: "脑卒中。"},
			{ID: "c2", Text: "坏块。"},
		})

		require.Len(t, documents, 1)
		assert.Equal(t, "c1", documents[0].ChunkID)
	})

	t.Run("Empty extractions are dropped", func(t *testing.T) {
		chat := func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
			return "no tuples here", nil
		}
		extractor, err := NewExtractor(chat, 2, logger)
		require.NoError(t, err)

		documents := extractor.Extract(context.Background(), []*model.Chunk{{ID: "c1", Text: "文本。"}})

		assert.Empty(t, documents)
	})
}
