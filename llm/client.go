package llm

import (
	"context"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/graphmed/graphmed/helper"
)

// InstructModel is the chat model used for extraction, arbitration,
// summarisation and answering.
const InstructModel = "deepseek-chat"

const maxAttempts = 3

// Client wraps the DeepSeek OpenAI-compatible API for chat and embeddings.
// It is safe for concurrent use.
type Client struct {
	api            *openai.Client
	embeddingModel string
	log            *slog.Logger
}

// NewClient creates a new LLM client against an OpenAI-compatible endpoint.
func NewClient(apiKey string, baseURL string, embeddingModel string, logger *slog.Logger) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		api:            openai.NewClientWithConfig(config),
		embeddingModel: embeddingModel,
		log:            logger,
	}
}

// Chat sends a system and user message in creative mode (temperature 1.0).
func (c *Client) Chat(ctx context.Context, system string, user string) (string, error) {
	return c.complete(ctx, system, user, 1.0, false)
}

// ChatJSON sends a system and user message in deterministic mode
// (temperature 0) and forces a JSON object response.
func (c *Client) ChatJSON(ctx context.Context, system string, user string) (string, error) {
	return c.complete(ctx, system, user, 0, true)
}

func (c *Client) complete(ctx context.Context, system string, user string, temperature float32, jsonMode bool) (string, error) {
	if temperature == 0 {
		// The zero value is dropped during request encoding and the
		// server default applies, so send the smallest value instead.
		temperature = math.SmallestNonzeroFloat32
	}

	request := openai.ChatCompletionRequest{
		Model:       InstructModel,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if jsonMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := c.api.CreateChatCompletion(ctx, request)
		if err == nil {
			if len(response.Choices) == 0 {
				return "", helper.NewError("chat completion", errNoChoices)
			}
			return response.Choices[0].Message.Content, nil
		}

		lastErr = err
		c.log.Warn("Chat completion failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if err := sleepWithContext(ctx, time.Duration(attempt)*time.Second); err != nil {
			return "", err
		}
	}

	return "", helper.NewError("chat completion", lastErr)
}

// Embed computes dense vectors for the given texts. All vectors share
// the dimension of the configured embedding model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := c.api.CreateEmbeddings(ctx, request)
		if err == nil {
			embeddings := make([][]float32, len(response.Data))
			for i, data := range response.Data {
				embeddings[i] = data.Embedding
			}
			return embeddings, nil
		}

		lastErr = err
		c.log.Warn("Embedding request failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if err := sleepWithContext(ctx, time.Duration(attempt)*time.Second); err != nil {
			return nil, err
		}
	}

	return nil, helper.NewError("create embeddings", lastErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
