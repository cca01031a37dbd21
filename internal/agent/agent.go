// internal/agent/agent.go

// Package agent implements the bounded ReAct loop: each round reasons about
// what to search next, executes the searches, scores the observation, and
// reflects on overall progress. It is the pipeline's only stateful,
// iterative component.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/jsonutil"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

// DefaultMaxRounds bounds the loop when no configuration overrides it.
const DefaultMaxRounds = 5

// Completer is the slice of the completion client the agent needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Searcher executes one search call. Errors degrade the round (empty
// results), they never abort the loop.
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

// PlanAdapter advances the search plan between rounds.
type PlanAdapter interface {
	AdaptPlan(plan *planner.Plan, completedRound int, results []models.SearchResult, knowledge string) *planner.Round
}

// Config carries the agent's loop bounds.
type Config struct {
	MaxRounds int
}

// Agent runs the ReAct loop for one question at a time.
type Agent struct {
	completer Completer
	searcher  Searcher
	adapter   PlanAdapter
	config    Config
	log       logger.Logger
}

func New(completer Completer, searcher Searcher, adapter PlanAdapter, config Config, log logger.Logger) *Agent {
	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultMaxRounds
	}
	return &Agent{
		completer: completer,
		searcher:  searcher,
		adapter:   adapter,
		config:    config,
		log:       log.With(map[string]interface{}{"component": "agent"}),
	}
}

// verdict is the parsed outcome of one reasoning phase.
type verdict struct {
	Understanding  float64
	KnowledgeGaps  []string
	ShouldContinue bool
	Reasoning      string
	Action         plannedAction
}

type plannedAction struct {
	Type            string
	Queries         []string
	Depth           models.SearchDepth
	FocusAreas      []string
	Reasoning       string
	ExpectedOutcome string
}

// Run executes the full loop and always returns a report. Termination:
// the reasoning verdict says stop, reflection says stop or progress ≥ 0.9,
// or the round counter reaches MaxRounds.
func (a *Agent) Run(ctx context.Context, question string, analysis *models.QueryAnalysis, plan *planner.Plan) *models.AgentReport {
	memory := NewMemory(question, a.config.MaxRounds)
	machine := NewStateMachine()

	// The first dependent round comes straight from the plan; later ones
	// from AdaptPlan.
	var planned *planner.Round
	if len(plan.Rounds) > 0 {
		planned = plan.Rounds[0]
	}

	a.log.Info("ReAct loop starting", map[string]interface{}{
		"query":      question,
		"strategy":   string(plan.Strategy),
		"max_rounds": memory.MaxRounds,
	})

	for memory.CurrentRound < memory.MaxRounds && machine.Current() != StateConcluded {
		memory.CurrentRound++
		round := memory.CurrentRound

		v := a.reasoningPhase(ctx, memory)
		if !v.ShouldContinue {
			if err := machine.Transition(StateConcluded); err != nil {
				a.log.WithError(err).Error("State machine rejected transition", nil)
			}
			break
		}

		// A verdict that plans an action without queries defers to the
		// adapted plan round.
		if len(v.Action.Queries) == 0 && planned != nil {
			v.Action.Queries = planned.Queries
			v.Action.Depth = planned.Depth
		}

		if err := machine.Transition(StateActing); err != nil {
			a.log.WithError(err).Error("State machine rejected transition", nil)
			break
		}
		observation := a.actingPhase(ctx, memory, v.Action, planned)

		if err := machine.Transition(StateReflecting); err != nil {
			a.log.WithError(err).Error("State machine rejected transition", nil)
			break
		}
		reflection := a.reflectingPhase(memory, observation)

		planned = a.adapter.AdaptPlan(plan, round, observation.Results, memory.AccumulatedKnowledge)

		if !reflection.ShouldContinue || reflection.OverallProgress >= 0.9 {
			if err := machine.Transition(StateConcluded); err != nil {
				a.log.WithError(err).Error("State machine rejected transition", nil)
			}
			break
		}

		if err := machine.Transition(StateReasoning); err != nil {
			a.log.WithError(err).Error("State machine rejected transition", nil)
			break
		}
	}

	finalProgress := a.evaluateProgress(memory)
	finalState := string(machine.Current())

	report := &models.AgentReport{
		OriginalQuery:        question,
		TotalRounds:          memory.CurrentRound,
		FinalState:           finalState,
		SearchResults:        memory.AllResults(),
		AccumulatedKnowledge: memory.AccumulatedKnowledge,
		Actions:              len(memory.Actions),
		Observations:         len(memory.Observations),
		Reflections:          len(memory.Reflections),
		FinalProgress:        finalProgress,
		EndTime:              time.Now().UTC(),
	}

	// The narrative summary is one extra completion call strictly after
	// the loop has concluded; it never alters loop state.
	report.Summary = a.generateSummary(ctx, memory, finalProgress)

	a.log.Info("ReAct loop finished", map[string]interface{}{
		"total_rounds":   report.TotalRounds,
		"final_state":    report.FinalState,
		"knowledge_size": memory.KnowledgeLen(),
		"final_progress": finalProgress,
	})

	return report
}

const reasoningSchema = `{
	"type": "object",
	"required": ["should_continue"],
	"properties": {
		"current_understanding": {"type": "number"},
		"knowledge_gaps": {"type": "array", "items": {"type": "string"}},
		"should_continue": {"type": "boolean"},
		"reasoning": {"type": "string"},
		"planned_action": {
			"type": "object",
			"properties": {
				"action_type": {"type": "string"},
				"parameters": {
					"type": "object",
					"properties": {
						"queries": {"type": "array", "items": {"type": "string"}},
						"search_depth": {"type": "string"},
						"focus_areas": {"type": "array", "items": {"type": "string"}}
					}
				},
				"reasoning": {"type": "string"},
				"expected_outcome": {"type": "string"}
			}
		}
	}
}`

type reasoningPayload struct {
	CurrentUnderstanding float64  `json:"current_understanding"`
	KnowledgeGaps        []string `json:"knowledge_gaps"`
	ShouldContinue       bool     `json:"should_continue"`
	Reasoning            string   `json:"reasoning"`
	PlannedAction        struct {
		ActionType string `json:"action_type"`
		Parameters struct {
			Queries     []string `json:"queries"`
			SearchDepth string   `json:"search_depth"`
			FocusAreas  []string `json:"focus_areas"`
		} `json:"parameters"`
		Reasoning       string `json:"reasoning"`
		ExpectedOutcome string `json:"expected_outcome"`
	} `json:"planned_action"`
}

func (a *Agent) reasoningPhase(ctx context.Context, memory *Memory) verdict {
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: buildReasoningPrompt(memory)}},
		Temperature: 0.3,
		MaxTokens:   2000,
		Purpose:     "reasoning",
	})
	if err != nil {
		a.log.Warn("AI reasoning failed, using rule-based reasoning", map[string]interface{}{
			"round": memory.CurrentRound,
			"error": err.Error(),
		})
		return ruleBasedReasoning(memory)
	}

	var payload reasoningPayload
	if err := jsonutil.Decode(resp.Content, reasoningSchema, &payload); err != nil {
		a.log.Warn("AI reasoning did not parse, using rule-based reasoning", map[string]interface{}{
			"round": memory.CurrentRound,
			"error": err.Error(),
		})
		return ruleBasedReasoning(memory)
	}

	understanding := payload.CurrentUnderstanding
	if understanding < 0 {
		understanding = 0
	}
	if understanding > 1 {
		understanding = 1
	}

	depth := models.SearchDepth(payload.PlannedAction.Parameters.SearchDepth)
	if depth != models.DepthBasic && depth != models.DepthAdvanced {
		depth = models.DepthAdvanced
	}

	actionType := payload.PlannedAction.ActionType
	if actionType == "" {
		actionType = "search"
	}

	a.log.Info("Reasoning complete", map[string]interface{}{
		"round":           memory.CurrentRound,
		"understanding":   understanding,
		"should_continue": payload.ShouldContinue,
		"knowledge_gaps":  len(payload.KnowledgeGaps),
	})

	return verdict{
		Understanding:  understanding,
		KnowledgeGaps:  payload.KnowledgeGaps,
		ShouldContinue: payload.ShouldContinue,
		Reasoning:      payload.Reasoning,
		Action: plannedAction{
			Type:            actionType,
			Queries:         payload.PlannedAction.Parameters.Queries,
			Depth:           depth,
			FocusAreas:      payload.PlannedAction.Parameters.FocusAreas,
			Reasoning:       payload.PlannedAction.Reasoning,
			ExpectedOutcome: payload.PlannedAction.ExpectedOutcome,
		},
	}
}

// ruleBasedReasoning keeps searching while the loop is young (round ≤ 3) or
// the knowledge buffer is thin (< 1000 runes).
func ruleBasedReasoning(memory *Memory) verdict {
	round := memory.CurrentRound
	shouldContinue := round <= 3 || memory.KnowledgeLen() < 1000

	understanding := float64(round) * 0.2
	if understanding > 0.8 {
		understanding = 0.8
	}

	return verdict{
		Understanding:  understanding,
		KnowledgeGaps:  []string{fmt.Sprintf("additional knowledge for round %d", round)},
		ShouldContinue: shouldContinue,
		Reasoning:      "rule-based reasoning decision",
		Action: plannedAction{
			Type:            "search",
			Queries:         []string{fmt.Sprintf("%s round %d", memory.OriginalQuery, round)},
			Depth:           models.DepthAdvanced,
			FocusAreas:      []string{"background information"},
			Reasoning:       "keep collecting relevant information",
			ExpectedOutcome: "more relevant knowledge",
		},
	}
}

// actingPhase executes the action's queries sequentially, in list order,
// and concatenates the results. There is no parallel fan-out even under the
// parallel-deep strategy.
func (a *Agent) actingPhase(ctx context.Context, memory *Memory, action plannedAction, planned *planner.Round) Observation {
	agentAction := Action{
		ID:              uuid.New().String(),
		Type:            action.Type,
		Queries:         action.Queries,
		Depth:           action.Depth,
		FocusAreas:      action.FocusAreas,
		Reasoning:       action.Reasoning,
		ExpectedOutcome: action.ExpectedOutcome,
		Timestamp:       time.Now().UTC(),
	}

	var results []models.SearchResult
	for _, query := range action.Queries {
		req := models.SearchRequest{
			Query: query,
			Depth: action.Depth,
		}

		searchCtx := ctx
		var cancel context.CancelFunc
		if planned != nil {
			req.MaxResults = planned.MaxResults
			req.IncludeDomains = planned.IncludeDomains
			req.ExcludeDomains = planned.ExcludeDomains
			if planned.Timeout > 0 {
				searchCtx, cancel = context.WithTimeout(ctx, planned.Timeout)
			}
		}

		resp, err := a.searcher.Search(searchCtx, req)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			a.log.Warn("Search failed, continuing round degraded", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
			continue
		}
		results = append(results, resp.Results...)
	}

	insights, newQuestions, confidence := analyzeResults(results)

	observation := Observation{
		ActionID:     agentAction.ID,
		Results:      results,
		Success:      len(results) > 0,
		Insights:     insights,
		NewQuestions: newQuestions,
		Confidence:   confidence,
		Timestamp:    time.Now().UTC(),
	}

	memory.AppendAction(agentAction)
	memory.AppendObservation(observation)

	a.log.Info("Action executed", map[string]interface{}{
		"round":      memory.CurrentRound,
		"queries":    len(action.Queries),
		"results":    len(results),
		"confidence": confidence,
	})

	return observation
}

// analyzeResults derives insights, follow-up questions, and a confidence
// score from one round's results. Confidence is the high-quality count
// (score > 0.7) over five, clamped to 1.0; an empty round scores 0.1.
func analyzeResults(results []models.SearchResult) (insights, newQuestions []string, confidence float64) {
	if len(results) == 0 {
		return nil, []string{"empty result set, adjust the search strategy"}, 0.1
	}

	var highQuality []models.SearchResult
	for _, r := range results {
		if r.Score > 0.7 {
			highQuality = append(highQuality, r)
		}
	}

	if len(highQuality) > 0 {
		insights = append(insights, fmt.Sprintf("found %d high-quality results", len(highQuality)))
		var titles []string
		for i, r := range highQuality {
			if i >= 3 {
				break
			}
			titles = append(titles, r.Title)
		}
		insights = append(insights, fmt.Sprintf("main topics: %s", strings.Join(titles, ", ")))
	}

	confidence = float64(len(highQuality)) / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}

	if confidence < 0.6 {
		newQuestions = append(newQuestions,
			"more specific search terms needed",
			"consider searching from a different angle")
	}

	return insights, newQuestions, confidence
}

func (a *Agent) reflectingPhase(memory *Memory, observation Observation) Reflection {
	// Fold this round's findings into the knowledge buffer.
	for i, r := range observation.Results {
		if i >= 3 {
			break
		}
		memory.AppendKnowledge(truncateRunes(r.Content, 500))
	}

	progress := a.evaluateProgress(memory)
	gaps := identifyKnowledgeGaps(memory)

	shouldContinue := progress < 0.8 &&
		memory.CurrentRound < memory.MaxRounds &&
		len(gaps) > 0

	nextActions := []string{"prepare the final conclusion"}
	if shouldContinue {
		nextActions = []string{"continue deeper search"}
	}

	reflection := Reflection{
		Summary:         fmt.Sprintf("round %d collected %d search results", memory.CurrentRound, len(observation.Results)),
		KnowledgeGaps:   gaps,
		NextActions:     nextActions,
		ShouldContinue:  shouldContinue,
		OverallProgress: progress,
		Timestamp:       time.Now().UTC(),
	}
	memory.AppendReflection(reflection)

	a.log.Info("Reflection complete", map[string]interface{}{
		"round":           memory.CurrentRound,
		"progress":        progress,
		"knowledge_gaps":  len(gaps),
		"should_continue": shouldContinue,
	})

	return reflection
}

// evaluateProgress blends round position, knowledge volume, and recent
// confidence: 0.3×(round/max) + 0.4×min(knowledge/5000, 1) + 0.3×(mean
// confidence of the last 3 observations, 0.5 when none).
func (a *Agent) evaluateProgress(memory *Memory) float64 {
	roundProgress := float64(memory.CurrentRound) / float64(memory.MaxRounds)
	knowledgeProgress := float64(memory.KnowledgeLen()) / 5000.0
	if knowledgeProgress > 1.0 {
		knowledgeProgress = 1.0
	}

	avgConfidence := 0.5
	if recent := memory.RecentObservations(3); len(recent) > 0 {
		var sum float64
		for _, obs := range recent {
			sum += obs.Confidence
		}
		avgConfidence = sum / float64(len(recent))
	}

	progress := roundProgress*0.3 + knowledgeProgress*0.4 + avgConfidence*0.3
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// identifyKnowledgeGaps looks at the last two observations: low confidence
// flags a quality gap, and each contributes up to two of its follow-up
// questions. Deduplicated, capped at three.
func identifyKnowledgeGaps(memory *Memory) []string {
	var gaps []string
	for _, obs := range memory.RecentObservations(2) {
		if obs.Confidence < 0.6 {
			gaps = append(gaps, "search result quality needs improvement")
		}
		questions := obs.NewQuestions
		if len(questions) > 2 {
			questions = questions[:2]
		}
		gaps = append(gaps, questions...)
	}

	seen := make(map[string]bool, len(gaps))
	unique := make([]string, 0, len(gaps))
	for _, g := range gaps {
		if seen[g] {
			continue
		}
		seen[g] = true
		unique = append(unique, g)
	}

	if len(unique) > 3 {
		unique = unique[:3]
	}
	return unique
}

func (a *Agent) generateSummary(ctx context.Context, memory *Memory, finalProgress float64) string {
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: buildSummaryPrompt(memory, finalProgress)}},
		Temperature: 0.2,
		Purpose:     "summary",
	})
	if err != nil {
		a.log.Warn("AI summary failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Sprintf("Collected relevant information over %d rounds of deep search, but the AI summary could not be generated. See the detailed search results.", memory.CurrentRound)
	}
	return resp.Content
}

func buildReasoningPrompt(memory *Memory) string {
	return fmt.Sprintf(`You are a deep-search ReAct agent. Analyze the current situation and plan the next action.

## Original question
%s

## Current round
Round %d of at most %d

## Accumulated knowledge
%s

## Recent action history
%s

## Recent observations
%s

## Task
Decide whether searching should continue and, if so, plan the single most valuable next search action.

Return the verdict as JSON:
{
    "current_understanding": 0.0-1.0,
    "knowledge_gaps": ["gap 1", "gap 2"],
    "should_continue": true/false,
    "reasoning": "detailed reasoning",
    "planned_action": {
        "action_type": "search/analyze/synthesize",
        "parameters": {
            "queries": ["query 1", "query 2"],
            "search_depth": "basic/advanced",
            "focus_areas": ["focus 1", "focus 2"]
        },
        "reasoning": "why this action",
        "expected_outcome": "what it should produce"
    }
}

Decision criteria:
1. If understanding of the original question is >= 0.8, consider stopping
2. If important knowledge gaps remain, continue searching
3. If the round cap is reached, you must stop
4. Fill the most critical knowledge gap first`,
		memory.OriginalQuery,
		memory.CurrentRound,
		memory.MaxRounds,
		orDefault(memory.AccumulatedKnowledge, "none yet"),
		summarizeActions(memory),
		summarizeObservations(memory))
}

func buildSummaryPrompt(memory *Memory, finalProgress float64) string {
	return fmt.Sprintf(`Based on the following deep-search process and results, produce a comprehensive, accurate answer.

Original question: %s

Search process:
- %d rounds of ReAct search
- %d characters of accumulated knowledge
- final progress %.0f%%

Accumulated knowledge:
%s

Answer requirements:
1. Answer the original question directly
2. Give concrete facts and figures
3. Note the reliability of the sources
4. Call out anything uncertain explicitly
5. Keep the structure clear and the logic coherent`,
		memory.OriginalQuery,
		memory.CurrentRound,
		memory.KnowledgeLen(),
		finalProgress*100,
		truncateRunes(memory.AccumulatedKnowledge, 3000))
}

func summarizeActions(memory *Memory) string {
	actions := memory.RecentActions(3)
	if len(actions) == 0 {
		return "no actions yet"
	}
	var lines []string
	for i, action := range actions {
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, action.Type, truncateRunes(action.Reasoning, 100)))
	}
	return strings.Join(lines, "\n")
}

func summarizeObservations(memory *Memory) string {
	observations := memory.RecentObservations(2)
	if len(observations) == 0 {
		return "no observations yet"
	}
	var lines []string
	for _, obs := range observations {
		lines = append(lines, fmt.Sprintf("results: %d, confidence: %.0f%%", len(obs.Results), obs.Confidence*100))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
