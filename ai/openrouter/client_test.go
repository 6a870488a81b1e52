package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/internal/httpclient"
	finqtest "github.com/teranos/FINQ/internal/testing"
	"github.com/teranos/FINQ/internal/util"
)

func completion(content string) ChatCompletionResponse {
	return ChatCompletionResponse{
		ID:      "test-id",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "test-model",
		Choices: []Choice{{
			Index:        0,
			Message:      NewTextMessage("assistant", content),
			FinishReason: "stop",
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t).Sugar()
	}
	client := NewClient(cfg)
	client.SetBaseURL(server.URL)
	client.SetHTTPClient(server.Client())
	client.retryDelay = time.Millisecond
	return client
}

func TestClient_Configuration(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewClient(Config{APIKey: "test-key"})
		assert.Equal(t, DefaultModel, client.Model())
		assert.Equal(t, 0.2, *client.config.Temperature)
		assert.Equal(t, 1000, *client.config.MaxTokens)
		assert.Equal(t, DefaultBaseURL, client.baseURL)
		assert.Nil(t, client.usageTracker)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		client := NewClient(Config{
			APIKey:      "test-key",
			Model:       "custom/model",
			Temperature: util.Ptr(0.0),
			MaxTokens:   util.Ptr(2000),
		})
		assert.Equal(t, "custom/model", client.Model())
		assert.Equal(t, 0.0, *client.config.Temperature)
		assert.Equal(t, 2000, *client.config.MaxTokens)
	})

	t.Run("is configured only with a key", func(t *testing.T) {
		assert.True(t, NewClient(Config{APIKey: "k"}).IsConfigured())
		assert.False(t, NewClient(Config{}).IsConfigured())
	})
}

func TestClient_Chat(t *testing.T) {
	var got ChatCompletionRequest
	client := newTestClient(t, Config{APIKey: "test-key", OperationType: "nl-query"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "finq/nl-query", r.Header.Get("X-Title"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("  Test response content \n"))
	})

	resp, err := client.Chat(context.Background(), ChatRequest{
		SystemPrompt: "You are a SQL assistant",
		UserPrompt:   "How much revenue?",
		Temperature:  util.Ptr(0.0),
	})
	require.NoError(t, err)

	assert.Equal(t, "Test response content", resp.Content)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
	assert.Equal(t, DefaultModel, resp.Model)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are a SQL assistant", got.Messages[0].TextContent())
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "How much revenue?", got.Messages[1].TextContent())
	assert.Equal(t, 0.0, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
}

func TestClient_ChatWithoutKey(t *testing.T) {
	_, err := NewClient(Config{}).Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestClient_ChatHTTPErrorIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"bad model"}`, http.StatusBadRequest)
	})

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ChatNoChoices(t *testing.T) {
	client := newTestClient(t, Config{APIKey: "k"}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatCompletionResponse{ID: "x"})
	})

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response choices")
}

func TestClient_TracksUsage(t *testing.T) {
	database := finqtest.CreateTestDB(t)
	client := newTestClient(t, Config{APIKey: "k", DB: database, OperationType: "nl-query"}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completion("ok"))
	})

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.NoError(t, err)

	stats, err := tracker.NewUsageTracker(database).GetUsageStats(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.SuccessfulRequests)
	assert.Equal(t, 30, stats.TotalTokens)
}

func TestClient_IsRetryableError(t *testing.T) {
	client := NewClient(Config{})

	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("API request failed with status 401"), false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, client.isRetryableError(tt.err))
		})
	}
}

func TestMessage_TextContent(t *testing.T) {
	assert.Equal(t, "plain", NewTextMessage("assistant", "plain").TextContent())

	parts := Message{Role: "assistant", Content: json.RawMessage(`[{"type":"text","text":"a"},{"type":"image_url"},{"type":"text","text":"b"}]`)}
	assert.Equal(t, "ab", parts.TextContent())
}

func TestClient_DefaultTransportRefusesPrivateHosts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key"})
	client.SetBaseURL(server.URL)

	_, err := client.Chat(context.Background(), ChatRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpclient.ErrBlockedURL), "got %v", err)
	assert.Zero(t, hits.Load())
}
