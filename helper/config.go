package helper

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Embedding providers selectable through EMBEDDING_PROVIDER.
const (
	EmbeddingProviderLocal = "local"
	EmbeddingProviderAPI   = "api"
)

// Configuration holds the environment configuration for the graph database
// and the LLM provider. Missing database credentials or a missing API key
// are fatal at startup.
type Configuration struct {
	Neo4jURI       string
	Neo4jUsername  string
	Neo4jPassword  string
	DeepSeekAPIKey string
	// Optional overrides
	DeepSeekBaseURL   string
	EmbeddingModel    string
	EmbeddingProvider string
}

// NewConfiguration loads .env (if present) and reads the configuration
// from the environment.
func NewConfiguration() (*Configuration, error) {
	// A missing .env file is fine, the variables may be set directly.
	_ = godotenv.Load(".env")

	config := &Configuration{
		Neo4jURI:          os.Getenv("NEO4J_URI"),
		Neo4jUsername:     os.Getenv("NEO4J_USERNAME"),
		Neo4jPassword:     os.Getenv("NEO4J_PASSWORD"),
		DeepSeekAPIKey:    os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL:   os.Getenv("DEEPSEEK_BASE_URL"),
		EmbeddingModel:    os.Getenv("EMBEDDING_MODEL"),
		EmbeddingProvider: os.Getenv("EMBEDDING_PROVIDER"),
	}

	if config.Neo4jURI == "" {
		return nil, NewError("read configuration", fmt.Errorf("NEO4J_URI is not set"))
	}
	if config.Neo4jUsername == "" {
		return nil, NewError("read configuration", fmt.Errorf("NEO4J_USERNAME is not set"))
	}
	if config.Neo4jPassword == "" {
		return nil, NewError("read configuration", fmt.Errorf("NEO4J_PASSWORD is not set"))
	}
	if config.DeepSeekAPIKey == "" {
		return nil, NewError("read configuration", fmt.Errorf("DEEPSEEK_API_KEY is not set"))
	}

	if config.DeepSeekBaseURL == "" {
		config.DeepSeekBaseURL = "https://api.deepseek.com/v1"
	}
	if config.EmbeddingModel == "" {
		// The full repository id, required by the local model download.
		config.EmbeddingModel = "BAAI/bge-m3"
	}
	if config.EmbeddingProvider == "" {
		config.EmbeddingProvider = EmbeddingProviderLocal
	}
	if config.EmbeddingProvider != EmbeddingProviderLocal && config.EmbeddingProvider != EmbeddingProviderAPI {
		return nil, NewError("read configuration", fmt.Errorf("EMBEDDING_PROVIDER must be %v or %v, got %v",
			EmbeddingProviderLocal, EmbeddingProviderAPI, config.EmbeddingProvider))
	}

	return config, nil
}
