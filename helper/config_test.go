package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFullEnv(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://localhost:7687")
	t.Setenv("NEO4J_USERNAME", "neo4j")
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_BASE_URL", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_PROVIDER", "")
}

func TestNewConfiguration(t *testing.T) {
	t.Run("Reads all required variables", func(t *testing.T) {
		setFullEnv(t)

		config, err := NewConfiguration()

		require.NoError(t, err)
		assert.Equal(t, "neo4j://localhost:7687", config.Neo4jURI)
		assert.Equal(t, "neo4j", config.Neo4jUsername)
		assert.Equal(t, "secret", config.Neo4jPassword)
		assert.Equal(t, "sk-test", config.DeepSeekAPIKey)
	})

	t.Run("Defaults for optional variables", func(t *testing.T) {
		setFullEnv(t)

		config, err := NewConfiguration()

		require.NoError(t, err)
		assert.Equal(t, "https://api.deepseek.com/v1", config.DeepSeekBaseURL)
		assert.Equal(t, "BAAI/bge-m3", config.EmbeddingModel, "Expected the full repository id as the default embedding model")
		assert.Equal(t, EmbeddingProviderLocal, config.EmbeddingProvider)
	})

	t.Run("Optional overrides are respected", func(t *testing.T) {
		setFullEnv(t)
		t.Setenv("DEEPSEEK_BASE_URL", "http://localhost:8000/v1")
		t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
		t.Setenv("EMBEDDING_PROVIDER", "api")

		config, err := NewConfiguration()

		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000/v1", config.DeepSeekBaseURL)
		assert.Equal(t, "text-embedding-3-small", config.EmbeddingModel)
		assert.Equal(t, EmbeddingProviderAPI, config.EmbeddingProvider)
	})

	t.Run("Unknown embedding provider is rejected", func(t *testing.T) {
		setFullEnv(t)
		t.Setenv("EMBEDDING_PROVIDER", "remote")

		_, err := NewConfiguration()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EMBEDDING_PROVIDER")
	})

	t.Run("Missing database URI", func(t *testing.T) {
		setFullEnv(t)
		t.Setenv("NEO4J_URI", "")

		_, err := NewConfiguration()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "NEO4J_URI")
	})

	t.Run("Missing API key", func(t *testing.T) {
		setFullEnv(t)
		t.Setenv("DEEPSEEK_API_KEY", "")

		_, err := NewConfiguration()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DEEPSEEK_API_KEY")
	})
}
