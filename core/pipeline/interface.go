package pipeline

import "context"

// TokenizeFunc splits text into word tokens, punctuation included.
type TokenizeFunc func(text string) []string

// ChunkFunc splits text into overlapping, sentence aligned token chunks.
type ChunkFunc func(text string) ([][]string, error)

// EmbedFunc generates one embedding vector per input text.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// ChatFunc sends one system and user prompt pair to the LLM and returns
// the raw completion text.
type ChatFunc func(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
