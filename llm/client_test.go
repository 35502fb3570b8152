package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient("sk-test", server.URL, "BAAI/bge-m3", logger)
}

func TestClient(t *testing.T) {
	t.Run("Chat returns the completion content", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "你好。"}}]}`))
		}))

		answer, err := client.Chat(context.Background(), "系统提示", "问题")
		require.NoError(t, err)

		assert.Equal(t, "你好。", answer)
	})

	t.Run("ChatJSON forces a json object response", func(t *testing.T) {
		var request map[string]any
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{}"}}]}`))
		}))

		_, err := client.ChatJSON(context.Background(), "系统提示", "问题")
		require.NoError(t, err)

		responseFormat, ok := request["response_format"].(map[string]any)
		require.True(t, ok, "Expected a response_format in the request")
		assert.Equal(t, "json_object", responseFormat["type"])
	})

	t.Run("Embed returns one vector per text", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2]}, {"embedding": [0.3, 0.4]}]}`))
		}))

		embeddings, err := client.Embed(context.Background(), []string{"阿司匹林", "脑卒中"})
		require.NoError(t, err)

		require.Len(t, embeddings, 2)
		assert.Equal(t, []float32{0.1, 0.2}, embeddings[0])
		assert.Equal(t, []float32{0.3, 0.4}, embeddings[1])
	})

	t.Run("Embed without texts skips the request", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Expected no request for an empty input")
		}))

		embeddings, err := client.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, embeddings)
	})

	t.Run("Failed embedding requests are retried", func(t *testing.T) {
		var calls atomic.Int32
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"data": [{"embedding": [1.0]}]}`))
		}))

		embeddings, err := client.Embed(context.Background(), []string{"阿司匹林"})
		require.NoError(t, err)

		assert.Equal(t, int32(2), calls.Load())
		require.Len(t, embeddings, 1)
	})
}
