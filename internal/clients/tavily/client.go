// internal/clients/tavily/client.go

// Package tavily implements the search provider boundary over the Tavily
// REST API. Transport failures surface as errors from Search; an empty
// result list is a degraded outcome the orchestration layer handles itself.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	stderrors "deepsearch/internal/common/errors"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/common/metrics"
	"deepsearch/internal/models"
)

type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// Cache is the optional read-through cache consulted before the network.
type Cache interface {
	Get(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, bool)
	Set(ctx context.Context, req models.SearchRequest, resp *models.SearchResponse)
}

type Client struct {
	config *Config
	client *http.Client
	cache  Cache
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.tavily.com"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 10
	}
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"client": "tavily",
		}),
	}
}

// WithCache attaches a read-through response cache.
func (c *Client) WithCache(cache Cache) *Client {
	c.cache = cache
	return c
}

// Search executes one query against the provider. Results are re-ranked
// 1-based in provider order; the provider's optional answer is passed
// through untouched.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if req.Depth == "" {
		req.Depth = models.DepthAdvanced
	}
	if req.MaxResults == 0 {
		req.MaxResults = c.config.MaxResults
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, req); ok {
			c.logger.Debug("search served from cache", map[string]interface{}{"query": req.Query})
			return cached, nil
		}
	}

	start := time.Now()

	body := map[string]interface{}{
		"api_key":      c.config.APIKey,
		"query":        req.Query,
		"search_depth": string(req.Depth),
		"max_results":  req.MaxResults,
	}
	if len(req.IncludeDomains) > 0 {
		body["include_domains"] = req.IncludeDomains
	}
	if len(req.ExcludeDomains) > 0 {
		body["exclude_domains"] = req.ExcludeDomains
	}

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/search", bytes.NewBuffer(payload))
	if err != nil {
		metrics.SearchRequests.WithLabelValues(string(req.Depth), "error").Inc()
		return nil, stderrors.NewSearchFailedError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.SearchRequests.WithLabelValues(string(req.Depth), "error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, stderrors.NewSearchTimeoutError(req.Query)
		}
		return nil, stderrors.NewSearchFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SearchRequests.WithLabelValues(string(req.Depth), "error").Inc()
		return nil, stderrors.NewSearchFailedError(fmt.Errorf("status %d", resp.StatusCode))
	}

	var apiResponse struct {
		Query   string `json:"query"`
		Answer  string `json:"answer"`
		Results []struct {
			Title         string  `json:"title"`
			URL           string  `json:"url"`
			Content       string  `json:"content"`
			Score         float64 `json:"score"`
			PublishedDate string  `json:"published_date"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.SearchRequests.WithLabelValues(string(req.Depth), "error").Inc()
		return nil, stderrors.NewResponseShapeError("decode search response: " + err.Error())
	}

	results := make([]models.SearchResult, 0, len(apiResponse.Results))
	for i, r := range apiResponse.Results {
		results = append(results, models.SearchResult{
			Rank:          i + 1,
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}

	out := &models.SearchResponse{
		Query:           req.Query,
		Results:         results,
		ResultsCount:    len(results),
		Answer:          apiResponse.Answer,
		DurationSeconds: time.Since(start).Seconds(),
	}

	if c.cache != nil {
		c.cache.Set(ctx, req, out)
	}

	metrics.SearchRequests.WithLabelValues(string(req.Depth), "ok").Inc()
	c.logger.Info("search completed", map[string]interface{}{
		"query":       req.Query,
		"resultCount": len(results),
		"duration":    out.DurationSeconds,
	})

	return out, nil
}
