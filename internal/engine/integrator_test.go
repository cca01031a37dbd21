// internal/engine/integrator_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

type fakeCompleter struct {
	fn func(req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return f.fn(req)
}

func result(url string, score float64) models.SearchResult {
	return models.SearchResult{Title: "t " + url, URL: url, Content: "content", Score: score}
}

func TestFilterResultsDeduplicatesByURL(t *testing.T) {
	results := []models.SearchResult{
		result("https://a.com/1", 0.9),
		result("https://a.com/1", 0.95), // duplicate, first occurrence wins
		result("https://b.com/2", 0.8),
	}

	filtered := FilterResults(results)
	require.Len(t, filtered, 2)
	assert.InDelta(t, 0.9, filtered[0].Score, 0.001, "first occurrence kept, not the higher-scored duplicate")
}

func TestFilterResultsIdempotent(t *testing.T) {
	results := []models.SearchResult{
		result("https://a.com", 0.9),
		result("https://b.com", 0.7),
		result("https://c.com", 0.65),
		result("https://d.com", 0.3),
	}

	once := FilterResults(results)
	twice := FilterResults(once)
	assert.Equal(t, once, twice)
}

func TestFilterResultsRelaxedThresholdGating(t *testing.T) {
	// Only two results pass 0.6: the filter retries at 0.4.
	results := []models.SearchResult{
		result("https://a.com", 0.9),
		result("https://b.com", 0.7),
		result("https://c.com", 0.5),
		result("https://d.com", 0.45),
		result("https://e.com", 0.3),
	}

	filtered := FilterResults(results)
	require.Len(t, filtered, 4, "0.4 threshold applies when fewer than 3 survive 0.6")
	assert.InDelta(t, 0.9, filtered[0].Score, 0.001, "sorted descending")
	assert.InDelta(t, 0.45, filtered[3].Score, 0.001)
}

func TestFilterResultsNoRelaxationWhenEnoughSurvive(t *testing.T) {
	results := []models.SearchResult{
		result("https://a.com", 0.9),
		result("https://b.com", 0.8),
		result("https://c.com", 0.7),
		result("https://d.com", 0.5), // would pass 0.4 but must not be kept
	}

	filtered := FilterResults(results)
	assert.Len(t, filtered, 3)
}

func TestFilterResultsTop15(t *testing.T) {
	var results []models.SearchResult
	for i := 0; i < 30; i++ {
		results = append(results, result(fmt.Sprintf("https://site%d.com", i), 0.6+float64(i)*0.01))
	}

	filtered := FilterResults(results)
	assert.Len(t, filtered, 15)
	assert.InDelta(t, 0.89, filtered[0].Score, 0.001, "highest score first")
}

func TestFilterResultsEmpty(t *testing.T) {
	assert.Empty(t, FilterResults(nil))
}

func TestIntegrateBuildsReport(t *testing.T) {
	completer := &fakeCompleter{fn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		assert.True(t, req.Stream, "synthesis is streamed")
		return &llm.CompletionResponse{Content: "the synthesized answer"}, nil
	}}
	in := NewIntegrator(completer, logger.NewTestLogger(t))

	analysis := &models.QueryAnalysis{
		OriginalQuery:         "q",
		Complexity:            models.ComplexitySimple,
		MainConcepts:          []string{"quantum"},
		EstimatedSearchRounds: 1,
	}
	plan := &planner.Plan{Strategy: planner.StrategyDirect, Rounds: []*planner.Round{{Number: 1}}}
	agentReport := &models.AgentReport{
		OriginalQuery: "q",
		TotalRounds:   2,
		FinalState:    "concluded",
		SearchResults: []models.SearchResult{
			result("https://a.com/x", 0.9),
			result("https://b.com/y", 0.8),
			result("https://a.com/z", 0.7),
		},
		AccumulatedKnowledge: "knowledge",
		Actions:              2,
		Reflections:          2,
		FinalProgress:        0.85,
	}

	report := in.Integrate(context.Background(), "q", analysis, plan, agentReport, time.Now().Add(-2*time.Second))

	assert.True(t, report.Success)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "the synthesized answer", report.Answer)
	assert.Equal(t, 3, report.TotalResultsFound)
	assert.Equal(t, 3, report.HighQualityResults)
	assert.GreaterOrEqual(t, report.DurationSeconds, 2.0)

	assert.Equal(t, "simple", report.QueryAnalysis.Complexity)
	assert.Equal(t, 1, report.QueryAnalysis.EstimatedVsActual.Estimated)
	assert.Equal(t, 2, report.QueryAnalysis.EstimatedVsActual.Actual)
	assert.Equal(t, "direct", report.SearchProcess.Strategy)

	insights := report.Insights
	assert.Equal(t, 3, insights.InformationDiscovery.TotalSourcesFound)
	assert.Equal(t, 2, insights.InformationDiscovery.UniqueDomains, "hosts a.com and b.com")
	assert.InDelta(t, 0.8, insights.InformationDiscovery.AverageRelevanceScore, 0.001)
	assert.Equal(t, 4, insights.AgentPerformance.AdaptiveQueriesGenerated, "rounds × 2")
}

func TestIntegrateSynthesisFailureUsesFallback(t *testing.T) {
	completer := &fakeCompleter{fn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return nil, errors.New("provider down")
	}}
	in := NewIntegrator(completer, logger.NewTestLogger(t))

	report := in.Integrate(context.Background(), "q",
		&models.QueryAnalysis{Complexity: models.ComplexitySimple},
		&planner.Plan{Strategy: planner.StrategyDirect},
		&models.AgentReport{}, time.Now())

	assert.True(t, report.Success, "a failed synthesis still yields a successful report")
	assert.Contains(t, report.Answer, "search results")
}
