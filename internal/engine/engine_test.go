// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsearch/internal/agent"
	"deepsearch/internal/analyzer"
	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

type fakeSearcher struct {
	results []models.SearchResult
}

func (f *fakeSearcher) Search(_ context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	return &models.SearchResponse{
		Query:        req.Query,
		Results:      f.results,
		ResultsCount: len(f.results),
	}, nil
}

// pipelineCompleter drives the full pipeline: analysis falls back to the
// rule-based path, reasoning continues with one query, and the narrative
// calls return plain text.
func pipelineCompleter() *fakeCompleter {
	return &fakeCompleter{fn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch req.Purpose {
		case "analysis":
			return nil, errors.New("analysis provider down")
		case "reasoning":
			return &llm.CompletionResponse{Content: `{
				"current_understanding": 0.4,
				"knowledge_gaps": ["depth"],
				"should_continue": true,
				"planned_action": {
					"action_type": "search",
					"parameters": {"queries": ["量子计算 原理"], "search_depth": "basic"}
				}
			}`}, nil
		default:
			return &llm.CompletionResponse{Content: "量子计算是一种基于量子力学原理的计算方式。"}, nil
		}
	}}
}

func newTestEngine(t *testing.T, completer *fakeCompleter, searcher agent.Searcher) *Engine {
	log := logger.NewTestLogger(t)
	searchPlanner := planner.New(log)
	return New(
		analyzer.New(completer, log),
		searchPlanner,
		agent.New(completer, searcher, searchPlanner, agent.Config{MaxRounds: 5}, log),
		NewIntegrator(completer, log),
		Options{},
		log,
	)
}

func TestDeepSearchSimpleQuestionEndToEnd(t *testing.T) {
	// Three strong results make the first round's confidence 0.6: no
	// knowledge gaps remain and the loop concludes after one round.
	searcher := &fakeSearcher{results: []models.SearchResult{
		{Title: "量子计算简介", URL: "https://a.com/qc", Content: "量子比特与叠加态", Score: 0.95},
		{Title: "Quantum computing", URL: "https://b.com/qc", Content: "qubits and superposition", Score: 0.9},
		{Title: "量子计算原理", URL: "https://c.com/qc", Content: "量子门与纠缠", Score: 0.85},
	}}
	e := newTestEngine(t, pipelineCompleter(), searcher)

	report := e.DeepSearch(context.Background(), "什么是量子计算")

	require.True(t, report.Success)
	assert.Equal(t, "direct", report.SearchProcess.Strategy, "什么是 classifies simple, simple maps to direct")
	assert.Equal(t, 1, report.SearchProcess.TotalSearchRounds)
	assert.Equal(t, 3, report.HighQualityResults)
	for _, r := range report.SearchResults {
		assert.GreaterOrEqual(t, r.Score, 0.6)
	}
	assert.NotEmpty(t, report.Answer)

	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalQueries)
	assert.Equal(t, 1, stats.TotalSearchRounds)
	assert.Equal(t, 3, stats.TotalSearchResults)
	require.Len(t, e.History(), 1)
}

func TestDeepSearchEmptyResults(t *testing.T) {
	e := newTestEngine(t, pipelineCompleter(), &fakeSearcher{})

	report := e.DeepSearch(context.Background(), "什么是量子计算")

	require.True(t, report.Success, "empty results degrade, they do not fail the pipeline")
	assert.Zero(t, report.TotalResultsFound)
	assert.Empty(t, report.SearchResults)
	assert.LessOrEqual(t, report.SearchProcess.TotalSearchRounds, 5, "the loop concludes at or before the cap")
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, string) *models.QueryAnalysis {
	panic("analysis exploded")
}

func TestDeepSearchPanicBecomesFailureReport(t *testing.T) {
	log := logger.NewTestLogger(t)
	completer := pipelineCompleter()
	searchPlanner := planner.New(log)
	e := New(
		panicAnalyzer{},
		searchPlanner,
		agent.New(completer, &fakeSearcher{}, searchPlanner, agent.Config{MaxRounds: 5}, log),
		NewIntegrator(completer, log),
		Options{},
		log,
	)

	report := e.DeepSearch(context.Background(), "boom")

	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "analysis exploded")
	assert.Equal(t, "boom", report.Query)
	assert.False(t, report.Timestamp.IsZero())

	// The session stays usable: the failure was not recorded and the
	// engine accepts the next question.
	assert.Zero(t, e.Stats().TotalQueries)
	assert.Empty(t, e.History())
}

func TestSessionResetAndCounters(t *testing.T) {
	s := NewSession()

	s.Record(&models.Report{
		Success:           true,
		TotalResultsFound: 7,
		SearchProcess:     models.SearchProcessSummary{TotalSearchRounds: 2, ReactActions: 3},
	})
	s.Record(&models.Report{
		Success:           true,
		TotalResultsFound: 4,
		SearchProcess:     models.SearchProcessSummary{TotalSearchRounds: 1, ReactActions: 1},
	})

	stats := s.Snapshot()
	assert.Equal(t, 2, stats.TotalQueries)
	assert.Equal(t, 3, stats.TotalSearchRounds)
	assert.Equal(t, 11, stats.TotalSearchResults)
	assert.Equal(t, 4, stats.TotalAICalls)
	assert.Len(t, s.History(), 2)

	s.Reset()
	assert.Zero(t, s.Snapshot().TotalQueries)
	assert.Empty(t, s.History())
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewSession()
	s.Record(&models.Report{Query: "a"})

	history := s.History()
	history[0] = &models.Report{Query: "mutated"}

	assert.Equal(t, "a", s.History()[0].Query)
}

type recordingConversation struct {
	history []llm.Message
	tokens  int
}

func (c *recordingConversation) AddToConversation(role, content string) {
	c.history = append(c.history, llm.Message{Role: role, Content: content})
}

func (c *recordingConversation) ConversationHistory() []llm.Message {
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *recordingConversation) ClearConversation() { c.history = nil }

func (c *recordingConversation) TotalTokensUsed() int { return c.tokens }

func TestDeepSearchThreadsConversationHistory(t *testing.T) {
	conv := &recordingConversation{tokens: 42}

	var synthesisMessages [][]llm.Message
	completer := &fakeCompleter{fn: func(req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		switch req.Purpose {
		case "analysis":
			return nil, errors.New("analysis provider down")
		case "synthesis":
			messages := make([]llm.Message, len(req.Messages))
			copy(messages, req.Messages)
			synthesisMessages = append(synthesisMessages, messages)
			return &llm.CompletionResponse{Content: "answer " + string(rune('0'+len(synthesisMessages)))}, nil
		default:
			return &llm.CompletionResponse{Content: "narrative"}, nil
		}
	}}

	searcher := &fakeSearcher{results: []models.SearchResult{
		{Title: "a", URL: "https://a.com", Content: "c", Score: 0.9},
		{Title: "b", URL: "https://b.com", Content: "c", Score: 0.85},
		{Title: "c", URL: "https://c.com", Content: "c", Score: 0.8},
	}}

	log := logger.NewTestLogger(t)
	searchPlanner := planner.New(log)
	e := New(
		analyzer.New(completer, log),
		searchPlanner,
		agent.New(completer, searcher, searchPlanner, agent.Config{MaxRounds: 5}, log),
		NewIntegrator(completer, log),
		Options{Conversation: conv},
		log,
	)

	first := e.DeepSearch(context.Background(), "什么是量子计算")
	require.True(t, first.Success)

	// The finished turn is appended after answering.
	require.Len(t, conv.history, 2)
	assert.Equal(t, llm.Message{Role: "user", Content: "什么是量子计算"}, conv.history[0])
	assert.Equal(t, "assistant", conv.history[1].Role)
	assert.Equal(t, first.Answer, conv.history[1].Content)

	second := e.DeepSearch(context.Background(), "量子计算的应用")
	require.True(t, second.Success)

	// The second synthesis call sees the first turn ahead of its prompt.
	require.Len(t, synthesisMessages, 2)
	require.Len(t, synthesisMessages[0], 1, "no prior turns on the first question")
	require.Len(t, synthesisMessages[1], 3)
	assert.Equal(t, "什么是量子计算", synthesisMessages[1][0].Content)
	assert.Equal(t, first.Answer, synthesisMessages[1][1].Content)
	assert.Equal(t, "user", synthesisMessages[1][2].Role)

	assert.Equal(t, 42, e.TokensUsed())

	e.ClearSession()
	assert.Empty(t, conv.history)
}
