package graphmed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphmed/graphmed/core/pipeline"
	"github.com/graphmed/graphmed/core/retrieval"
	"github.com/graphmed/graphmed/database"
	"github.com/graphmed/graphmed/llm"
	"github.com/graphmed/graphmed/model"
)

// The database handlers must keep satisfying the narrow stage interfaces
// the facade wires them into, and the API client must remain usable as
// the embedding provider.
var (
	_ pipeline.EntityEmbedderStore = &database.EntitiesDBHandler{}
	_ pipeline.DedupeStore         = &database.EntitiesDBHandler{}
	_ pipeline.CommunityStore      = communityStore{}
	_ pipeline.SummaryStore        = &database.CommunitiesDBHandler{}
	_ retrieval.LocalStore         = &database.RetrievalDBHandler{}
	_ retrieval.GlobalStore        = &database.CommunitiesDBHandler{}
	_ pipeline.EmbedFunc           = (&llm.Client{}).Embed
)

func TestNew(t *testing.T) {
	t.Run("Invalid call New with nil configuration", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		_, err := New(context.Background(), nil, model.DefaultOptions(), model.DefaultQueryOptions(), logger)
		assert.Error(t, err, "Expected error when creating GraphMed with nil configuration")
		assert.Contains(t, err.Error(), "configuration is nil")
	})
}
