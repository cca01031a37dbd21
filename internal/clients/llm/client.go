// internal/clients/llm/client.go

// Package llm implements the completion provider boundary over the
// OpenAI-compatible chat-completions wire format. The orchestration layer
// only consumes fully assembled text: streamed responses are gathered into
// one CompletionResponse before returning.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	stderrors "deepsearch/internal/common/errors"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/common/metrics"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest carries the parameters of one completion call.
type CompletionRequest struct {
	Messages    []Message
	Stream      bool
	Temperature float64
	MaxTokens   int
	// Purpose labels the call for metrics (analysis, reasoning, synthesis...).
	Purpose string
}

// CompletionResponse is the assembled result of one completion call.
type CompletionResponse struct {
	Content         string
	Usage           Usage
	DurationSeconds float64
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxHistory int
}

type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger

	mu          sync.Mutex
	history     []Message
	totalTokens int
}

func NewClient(config *Config, log logger.Logger) *Client {
	if config.MaxHistory == 0 {
		config.MaxHistory = 20
	}
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"client": "llm",
			"model":  config.Model,
		}),
	}
}

// Complete executes one chat completion. Errors are returned values; the
// caller decides how to degrade. No retry: a failed call falls through to
// the caller's rule-based path.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	purpose := req.Purpose
	if purpose == "" {
		purpose = "generic"
	}

	body := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"stream":      req.Stream,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		metrics.CompletionRequests.WithLabelValues(purpose, "error").Inc()
		return nil, stderrors.NewCompletionFailedError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.CompletionRequests.WithLabelValues(purpose, "error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, stderrors.NewCompletionTimeoutError(err.Error())
		}
		return nil, stderrors.NewCompletionFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.CompletionRequests.WithLabelValues(purpose, "error").Inc()
		return nil, stderrors.NewCompletionFailedError(fmt.Errorf("status %d", resp.StatusCode))
	}

	var out *CompletionResponse
	if req.Stream {
		out, err = c.readStream(resp)
	} else {
		out, err = c.readResponse(resp)
	}
	if err != nil {
		metrics.CompletionRequests.WithLabelValues(purpose, "error").Inc()
		return nil, err
	}

	out.DurationSeconds = time.Since(start).Seconds()

	c.mu.Lock()
	c.totalTokens += out.Usage.TotalTokens
	c.mu.Unlock()

	metrics.CompletionRequests.WithLabelValues(purpose, "ok").Inc()
	c.logger.Debug("completion finished", map[string]interface{}{
		"purpose":  purpose,
		"duration": out.DurationSeconds,
		"tokens":   out.Usage.TotalTokens,
		"length":   len(out.Content),
	})

	return out, nil
}

func (c *Client) readResponse(resp *http.Response) (*CompletionResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, stderrors.NewResponseShapeError("decode completion: " + err.Error())
	}
	if len(apiResponse.Choices) == 0 {
		return nil, stderrors.NewResponseShapeError("completion returned no choices")
	}

	return &CompletionResponse{
		Content: apiResponse.Choices[0].Message.Content,
		Usage:   apiResponse.Usage,
	}, nil
}

// readStream assembles server-sent event deltas into the final text. No
// semantic decision depends on individual chunks.
func (c *Client) readStream(resp *http.Response) (*CompletionResponse, error) {
	var content strings.Builder
	var usage Usage

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
			Usage *Usage `json:"usage"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			content.WriteString(chunk.Choices[0].Delta.Content)
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stderrors.NewCompletionFailedError(err)
	}

	return &CompletionResponse{
		Content: content.String(),
		Usage:   usage,
	}, nil
}

// AddToConversation appends one turn to the rolling conversation history.
func (c *Client) AddToConversation(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, Message{Role: role, Content: content})
	if len(c.history) > c.config.MaxHistory {
		c.history = c.history[len(c.history)-c.config.MaxHistory:]
	}
}

// ConversationHistory returns a copy of the rolling history.
func (c *Client) ConversationHistory() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// ClearConversation drops the rolling history.
func (c *Client) ClearConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// TotalTokensUsed reports the cumulative token usage of this client.
func (c *Client) TotalTokensUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalTokens
}
