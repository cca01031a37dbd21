// internal/planner/planner_test.go
package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
)

func testAnalysis(complexity models.Complexity) *models.QueryAnalysis {
	return &models.QueryAnalysis{
		OriginalQuery:         "quantum computing cryptography",
		Complexity:            complexity,
		MainConcepts:          []string{"quantum", "cryptography"},
		SubQuestions:          []string{"sub one", "sub two", "sub three"},
		SearchVariants:        []string{"v1", "v2", "v3", "v4"},
		EstimatedSearchRounds: 2,
		DomainHints:           []string{"arxiv.org", "nature.com"},
	}
}

func TestStrategyMapping(t *testing.T) {
	p := New(logger.NewTestLogger(t))

	tests := []struct {
		complexity models.Complexity
		want       Strategy
	}{
		{models.ComplexitySimple, StrategyDirect},
		{models.ComplexityModerate, StrategyMultiAngle},
		{models.ComplexityComplex, StrategySequential},
		{models.ComplexityMultiHop, StrategyParallelDeep},
	}

	for _, tt := range tests {
		plan := p.CreatePlan(testAnalysis(tt.complexity))
		assert.Equal(t, tt.want, plan.Strategy)
	}
}

func TestCreatePlanIsPure(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	analysis := testAnalysis(models.ComplexityMultiHop)

	first := p.CreatePlan(analysis)
	second := p.CreatePlan(analysis)

	assert.Equal(t, first.Strategy, second.Strategy)
	require.Equal(t, len(first.Rounds), len(second.Rounds))
	for i := range first.Rounds {
		assert.Equal(t, *first.Rounds[i], *second.Rounds[i])
	}
	assert.Equal(t, first.PriorityDomains, second.PriorityDomains)
	assert.Equal(t, first.FallbackQueries, second.FallbackQueries)
	assert.Equal(t, first.EstimatedTime, second.EstimatedTime)
}

func TestRoundNumbersContiguous(t *testing.T) {
	p := New(logger.NewTestLogger(t))

	for _, complexity := range []models.Complexity{
		models.ComplexitySimple,
		models.ComplexityModerate,
		models.ComplexityComplex,
		models.ComplexityMultiHop,
	} {
		plan := p.CreatePlan(testAnalysis(complexity))
		require.NotEmpty(t, plan.Rounds)
		for i, round := range plan.Rounds {
			assert.Equal(t, i+1, round.Number, "rounds must be 1-based and contiguous")
		}
	}
}

func TestDirectPlanShape(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexitySimple))

	require.Len(t, plan.Rounds, 1)
	round := plan.Rounds[0]
	assert.Equal(t, []string{"quantum computing cryptography"}, round.Queries)
	assert.Equal(t, models.DepthBasic, round.Depth)
	assert.Equal(t, 5, round.MaxResults)
	assert.Equal(t, timeoutBasic, round.Timeout)
	assert.False(t, round.DependsOnPrevious)
}

func TestSequentialPlanShape(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexityComplex))

	require.Len(t, plan.Rounds, 2)
	assert.Len(t, plan.Rounds[0].Queries, 2)
	assert.Contains(t, plan.Rounds[0].Queries[1], "overview")
	assert.Equal(t, []string{"reddit.com", "twitter.com"}, plan.Rounds[0].ExcludeDomains)
	assert.Equal(t, 12, plan.Rounds[0].MaxResults)

	assert.True(t, plan.Rounds[1].DependsOnPrevious)
	assert.Equal(t, []string{"sub one", "sub two"}, plan.Rounds[1].Queries)
}

func TestSequentialPlanWithoutSubQuestions(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	analysis := testAnalysis(models.ComplexityComplex)
	analysis.SubQuestions = nil

	plan := p.CreatePlan(analysis)
	assert.Len(t, plan.Rounds, 1)
}

func TestParallelDeepPlanShape(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexityMultiHop))

	require.Len(t, plan.Rounds, 3)
	assert.Equal(t, []string{"quantum computing cryptography", "v1", "v2"}, plan.Rounds[0].Queries)
	assert.Equal(t, 15, plan.Rounds[0].MaxResults)

	assert.Equal(t, []string{"sub one", "sub two", "sub three"}, plan.Rounds[1].Queries)
	assert.True(t, plan.Rounds[1].DependsOnPrevious)

	assert.Empty(t, plan.Rounds[2].Queries, "round 3 is filled by adaptation")
	assert.True(t, plan.Rounds[2].DependsOnPrevious)
	assert.Equal(t, 10, plan.Rounds[2].MaxResults)
}

func TestPriorityDomainsDedupedAndCapped(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	analysis := testAnalysis(models.ComplexityModerate)
	// Hints overlap the academic category and the concepts trigger both the
	// academic and technical tables.
	analysis.DomainHints = []string{"arxiv.org", "example.com"}
	analysis.MainConcepts = []string{"research", "algorithm", "programming", "framework"}

	plan := p.CreatePlan(analysis)

	seen := map[string]bool{}
	for _, d := range plan.PriorityDomains {
		assert.False(t, seen[d], "domain %s repeated", d)
		seen[d] = true
	}
	assert.LessOrEqual(t, len(plan.PriorityDomains), 5)
	assert.Equal(t, "arxiv.org", plan.PriorityDomains[0], "hints come first, order preserved")
}

func TestFallbackQueriesCapped(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexitySimple))
	assert.Len(t, plan.FallbackQueries, 3)
}

func TestEstimatedDuration(t *testing.T) {
	p := New(logger.NewTestLogger(t))

	// DIRECT: 1 query × 5s × (5/10) = 2.5s.
	plan := p.CreatePlan(testAnalysis(models.ComplexitySimple))
	assert.InDelta(t, 2.5, plan.EstimatedTime.Seconds(), 0.001)

	// MULTI_ANGLE: 3 queries × 5s × 1.5 × (8/10) = 18s.
	plan = p.CreatePlan(testAnalysis(models.ComplexityModerate))
	assert.InDelta(t, 18.0, plan.EstimatedTime.Seconds(), 0.001)
}

func TestAdaptPlanNilPastLastRound(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexitySimple))

	next := p.AdaptPlan(plan, 1, nil, "")
	assert.Nil(t, next, "no round follows the last one")
}

func TestAdaptPlanFillsDependentRound(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexityMultiHop))

	results := []models.SearchResult{
		{Title: "quantum supremacy milestone", Content: "superconducting qubits decoherence", Score: 0.9},
		{Title: "post-quantum cryptography", Content: "lattice based schemes standardized", Score: 0.8},
		{Title: "third result", Content: "plenty of meaningful longer tokens", Score: 0.7},
	}

	next := p.AdaptPlan(plan, 2, results, "knowledge")
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Number)
	require.Len(t, next.Queries, 2)
	assert.Contains(t, next.Queries[0], "latest research")
	assert.Contains(t, next.Queries[1], "technical detail")
}

func TestAdaptPlanWidensOnThinResults(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexityComplex))

	results := []models.SearchResult{{Title: "only one", Content: "single result", Score: 0.5}}
	next := p.AdaptPlan(plan, 1, results, "")
	require.NotNil(t, next)
	assert.Equal(t, 17, next.MaxResults, "12 + 5")
	assert.Nil(t, next.ExcludeDomains)

	// Widening is capped at 20.
	next.MaxResults = 18
	next2 := p.AdaptPlan(plan, 1, results, "")
	require.NotNil(t, next2)
	assert.Equal(t, 20, next2.MaxResults)
}

func TestAdaptPlanKeepsExistingQueries(t *testing.T) {
	p := New(logger.NewTestLogger(t))
	plan := p.CreatePlan(testAnalysis(models.ComplexityComplex))

	results := make([]models.SearchResult, 5)
	for i := range results {
		results[i] = models.SearchResult{Title: "t", Content: "c", Score: 0.8, URL: "https://example.com"}
	}

	next := p.AdaptPlan(plan, 1, results, "")
	require.NotNil(t, next)
	assert.Equal(t, []string{"sub one", "sub two"}, next.Queries, "pre-planned queries stay")
}
