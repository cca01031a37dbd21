// internal/clients/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "deepsearch/internal/common/errors"
	"deepsearch/internal/common/logger"
)

func TestCompleteNonStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek-chat", body["model"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, 0.2, body["temperature"])
		_, hasMaxTokens := body["max_tokens"]
		assert.False(t, hasMaxTokens, "zero max_tokens is omitted from the wire")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "assembled answer"}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "test-key", BaseURL: server.URL, Model: "deepseek-chat"}, logger.NewTestLogger(t))

	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "hello"}},
		Temperature: 0.2,
		Purpose:     "analysis",
	})
	require.NoError(t, err)
	assert.Equal(t, "assembled answer", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, 15, c.TotalTokensUsed())
}

func TestCompleteStreamAssembly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"deep \"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive comment lines are ignored\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"search\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[],\"usage\":{\"prompt_tokens\":4,\"completion_tokens\":2,\"total_tokens\":6}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, logger.NewTestLogger(t))

	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Stream:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "deep search", resp.Content)
	assert.Equal(t, 6, resp.Usage.TotalTokens)
}

func TestCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, logger.NewTestLogger(t))
	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeCompletionFailed, stdErr.Code)
}

func TestCompleteNoChoicesIsShapeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, logger.NewTestLogger(t))
	_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.Error(t, err)

	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeResponseShape, stdErr.Code)
}

func TestConversationHistoryCap(t *testing.T) {
	c := NewClient(&Config{APIKey: "k", Model: "m", MaxHistory: 4}, logger.NewTestLogger(t))

	for i := 0; i < 10; i++ {
		c.AddToConversation("user", fmt.Sprintf("turn %d", i))
	}

	history := c.ConversationHistory()
	require.Len(t, history, 4)
	assert.Equal(t, "turn 6", history[0].Content, "oldest turns are dropped")
	assert.Equal(t, "turn 9", history[3].Content)

	// Mutating the returned slice must not leak into the client.
	history[0].Content = "mutated"
	assert.Equal(t, "turn 6", c.ConversationHistory()[0].Content)

	c.ClearConversation()
	assert.Empty(t, c.ConversationHistory())
}

func TestTotalTokensAccumulate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
			"usage": map[string]int{"total_tokens": 7},
		})
	}))
	defer server.Close()

	c := NewClient(&Config{APIKey: "k", BaseURL: server.URL, Model: "m"}, logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		_, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
		require.NoError(t, err)
	}
	assert.Equal(t, 21, c.TotalTokensUsed())
}
