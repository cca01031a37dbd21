// internal/engine/integrator.go
package engine

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

// Result filtering thresholds: keep results scoring at least scoreFilter;
// when fewer than minSurvivors remain, retry at scoreFilterRelaxed.
const (
	scoreFilter        = 0.6
	scoreFilterRelaxed = 0.4
	minSurvivors       = 3
	maxKeptResults     = 15
)

// Integrator turns the agent's raw report into the final answer: it cleans
// the result set, synthesizes the answer through the completion provider,
// and derives the insights block.
type Integrator struct {
	completer Completer
	// conversation, when wired, supplies prior turns to answer synthesis.
	conversation ConversationStore
	log          logger.Logger
}

func NewIntegrator(completer Completer, log logger.Logger) *Integrator {
	return &Integrator{
		completer: completer,
		log:       log.With(map[string]interface{}{"component": "integrator"}),
	}
}

// Integrate assembles the final report for one question.
func (in *Integrator) Integrate(ctx context.Context, question string, analysis *models.QueryAnalysis, plan *planner.Plan, agentReport *models.AgentReport, startTime time.Time) *models.Report {
	filtered := FilterResults(agentReport.SearchResults)

	in.log.Info("Results filtered", map[string]interface{}{
		"raw":  len(agentReport.SearchResults),
		"kept": len(filtered),
	})

	answer := in.synthesizeAnswer(ctx, question, analysis, filtered, agentReport)
	endTime := time.Now().UTC()

	return &models.Report{
		ID:                 uuid.New().String(),
		Query:              question,
		Success:            true,
		Timestamp:          endTime,
		DurationSeconds:    endTime.Sub(startTime).Seconds(),
		Answer:             answer,
		SearchResults:      filtered,
		TotalResultsFound:  len(agentReport.SearchResults),
		HighQualityResults: len(filtered),
		QueryAnalysis: models.QueryAnalysisSummary{
			Complexity:       string(analysis.Complexity),
			MainConcepts:     analysis.MainConcepts,
			RequiresMultiHop: analysis.RequiresMultiHop,
			EstimatedVsActual: models.RoundComparison{
				Estimated: analysis.EstimatedSearchRounds,
				Actual:    agentReport.TotalRounds,
			},
		},
		SearchProcess: models.SearchProcessSummary{
			Strategy:          string(plan.Strategy),
			TotalSearchRounds: agentReport.TotalRounds,
			ReactActions:      agentReport.Actions,
			ReactReflections:  agentReport.Reflections,
		},
		Insights: buildInsights(analysis, plan, agentReport),
	}
}

// FilterResults deduplicates by URL (first occurrence wins, order
// preserved), filters by score, sorts descending, and keeps the top 15.
// Idempotent: filtering an already-filtered set changes nothing.
func FilterResults(results []models.SearchResult) []models.SearchResult {
	if len(results) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(results))
	unique := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		unique = append(unique, r)
	}

	kept := filterByScore(unique, scoreFilter)
	if len(kept) < minSurvivors {
		kept = filterByScore(unique, scoreFilterRelaxed)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if len(kept) > maxKeptResults {
		kept = kept[:maxKeptResults]
	}
	return kept
}

func filterByScore(results []models.SearchResult, threshold float64) []models.SearchResult {
	kept := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

func (in *Integrator) synthesizeAnswer(ctx context.Context, question string, analysis *models.QueryAnalysis, filtered []models.SearchResult, agentReport *models.AgentReport) string {
	var messages []llm.Message
	if in.conversation != nil {
		messages = in.conversation.ConversationHistory()
	}
	messages = append(messages, llm.Message{Role: "user", Content: buildSynthesisPrompt(question, analysis, filtered, agentReport)})

	resp, err := in.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    messages,
		Stream:      true,
		Temperature: 0.2,
		Purpose:     "synthesis",
	})
	if err != nil {
		in.log.Warn("Answer synthesis failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Sprintf("The AI answer could not be generated from the %d high-quality search results. See the detailed search results.", len(filtered))
	}
	return resp.Content
}

func buildSynthesisPrompt(question string, analysis *models.QueryAnalysis, filtered []models.SearchResult, agentReport *models.AgentReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "As a professional deep-search analyst, provide a comprehensive, accurate, in-depth answer based on the full search process and results below.\n\n")
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	fmt.Fprintf(&b, "Query complexity: %s\n", analysis.Complexity)
	fmt.Fprintf(&b, "Main concepts: %s\n", strings.Join(analysis.MainConcepts, ", "))
	fmt.Fprintf(&b, "Multi-hop search required: %t\n\n", analysis.RequiresMultiHop)
	fmt.Fprintf(&b, "Search process:\n")
	fmt.Fprintf(&b, "- total search rounds: %d\n", agentReport.TotalRounds)
	fmt.Fprintf(&b, "- ReAct actions: %d\n", agentReport.Actions)
	fmt.Fprintf(&b, "- final progress: %.0f%%\n\n", agentReport.FinalProgress*100)
	fmt.Fprintf(&b, "High-quality search results:\n")

	for i, r := range filtered {
		if i >= 10 {
			break
		}
		fmt.Fprintf(&b, "\nResult %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", r.Title)
		fmt.Fprintf(&b, "Source: %s\n", r.URL)
		fmt.Fprintf(&b, "Relevance: %.2f\n", r.Score)
		fmt.Fprintf(&b, "Content: %s...\n", truncateRunes(r.Content, 400))
	}

	if agentReport.AccumulatedKnowledge != "" {
		fmt.Fprintf(&b, "\nKnowledge accumulated by the ReAct agent:\n%s\n", truncateRunes(agentReport.AccumulatedKnowledge, 2000))
	}

	b.WriteString(`
Provide a structured, detailed answer:
1. Answer the user's question directly and accurately
2. Give concrete facts, figures, and examples
3. Cite reliable sources
4. Analyze different viewpoints and angles
5. Call out any uncertainty or limitation
6. For complex questions, layer the analysis
7. Close with the key takeaways and practical advice`)

	return b.String()
}

func buildInsights(analysis *models.QueryAnalysis, plan *planner.Plan, agentReport *models.AgentReport) models.Insights {
	return models.Insights{
		ComplexityAssessment: models.ComplexityAssessment{
			IdentifiedComplexity: string(analysis.Complexity),
			RequiredMultiHop:     analysis.RequiresMultiHop,
			EstimatedRounds:      analysis.EstimatedSearchRounds,
			ActualRounds:         agentReport.TotalRounds,
		},
		StrategyEffectiveness: models.StrategyEffectiveness{
			PlannedStrategy:       string(plan.Strategy),
			TotalPlannedRounds:    len(plan.Rounds),
			ActualReactActions:    agentReport.Actions,
			FinalProgressAchieved: agentReport.FinalProgress,
		},
		InformationDiscovery: models.InformationDiscovery{
			TotalSourcesFound:     len(agentReport.SearchResults),
			UniqueDomains:         countUniqueDomains(agentReport.SearchResults),
			AverageRelevanceScore: averageScore(agentReport.SearchResults),
		},
		AgentPerformance: models.AgentPerformance{
			ReasoningCycles:           agentReport.Reflections,
			AdaptiveQueriesGenerated:  agentReport.TotalRounds * 2,
			KnowledgeAccumulationSize: len([]rune(agentReport.AccumulatedKnowledge)),
		},
	}
}

func countUniqueDomains(results []models.SearchResult) int {
	hosts := make(map[string]bool)
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if u, err := url.Parse(r.URL); err == nil && u.Host != "" {
			hosts[u.Host] = true
		}
	}
	return len(hosts)
}

func averageScore(results []models.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return sum / float64(len(results))
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
