package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphDocumentEmpty(t *testing.T) {
	t.Run("No nodes and no relationships", func(t *testing.T) {
		doc := &GraphDocument{ChunkID: "abc"}

		assert.True(t, doc.Empty())
	})

	t.Run("With nodes", func(t *testing.T) {
		doc := &GraphDocument{
			ChunkID: "abc",
			Nodes:   []*Node{{ID: "阿司匹林", Type: "药物"}},
		}

		assert.False(t, doc.Empty())
	})
}

func TestRelationshipSanitizedType(t *testing.T) {
	t.Run("Uppercases and replaces spaces", func(t *testing.T) {
		rel := &Relationship{Type: "leaded by"}

		assert.Equal(t, "LEADED_BY", rel.SanitizedType())
	})

	t.Run("Strips backticks", func(t *testing.T) {
		rel := &Relationship{Type: "用于`治疗`"}

		assert.Equal(t, "用于治疗", rel.SanitizedType())
	})
}
