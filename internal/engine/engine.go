// internal/engine/engine.go

// Package engine wires the pipeline together: analyzer → planner → agent →
// integrator, plus the session bookkeeping around it. One engine serves one
// session; the whole pipeline runs synchronously on the caller's goroutine.
package engine

import (
	"context"
	"fmt"
	"time"

	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/common/metrics"
	"deepsearch/internal/common/observability"
	"deepsearch/internal/models"
	"deepsearch/internal/planner"
)

// Completer is the slice of the completion client the engine's integrator
// needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Analyzer classifies questions. It cannot fail: the rule-based fallback
// always produces a complete analysis.
type Analyzer interface {
	Analyze(ctx context.Context, question string) *models.QueryAnalysis
}

// PlanCreator builds the search plan from an analysis.
type PlanCreator interface {
	CreatePlan(analysis *models.QueryAnalysis) *planner.Plan
}

// Runner executes the ReAct loop.
type Runner interface {
	Run(ctx context.Context, question string, analysis *models.QueryAnalysis, plan *planner.Plan) *models.AgentReport
}

// Archiver persists finished reports. Optional; failures are logged and
// never fail the pipeline.
type Archiver interface {
	Store(ctx context.Context, report *models.Report) error
}

// ConversationStore is the conversation side of the completion client: the
// rolling history feeds answer synthesis, finished turns are appended after
// each answer, and ClearSession resets it alongside the session history.
type ConversationStore interface {
	AddToConversation(role, content string)
	ConversationHistory() []llm.Message
	ClearConversation()
	TotalTokensUsed() int
}

// Engine is the deep-search pipeline plus its session.
type Engine struct {
	analyzer     Analyzer
	planner      PlanCreator
	agent        Runner
	integrator   *Integrator
	session      *Session
	archiver     Archiver
	conversation ConversationStore
	obs          *observability.Observability
	log          logger.Logger
}

// Options carries the engine's optional collaborators.
type Options struct {
	Archiver     Archiver
	Conversation ConversationStore
	Obs          *observability.Observability
}

func New(analyzer Analyzer, plan PlanCreator, agent Runner, integrator *Integrator, opts Options, log logger.Logger) *Engine {
	integrator.conversation = opts.Conversation
	return &Engine{
		analyzer:     analyzer,
		planner:      plan,
		agent:        agent,
		integrator:   integrator,
		session:      NewSession(),
		archiver:     opts.Archiver,
		conversation: opts.Conversation,
		obs:          opts.Obs,
		log:          log.With(map[string]interface{}{"component": "engine"}),
	}
}

// DeepSearch runs the full pipeline for one question. It never propagates a
// failure: any unexpected error or panic becomes a structured failure
// report and the session stays usable for the next question.
func (e *Engine) DeepSearch(ctx context.Context, question string) (report *models.Report) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Deep search pipeline panicked", map[string]interface{}{
				"query": question,
				"panic": fmt.Sprintf("%v", r),
			})
			report = failureReport(question, fmt.Sprintf("deep search failed: %v", r))
		}
	}()

	e.log.Info("Deep search starting", map[string]interface{}{"query": question})

	analysis := e.runStage(ctx, "analysis", func() *models.QueryAnalysis {
		return e.analyzer.Analyze(ctx, question)
	})

	planStart := time.Now()
	plan := e.planner.CreatePlan(analysis)
	e.recordStage(ctx, "planning", time.Since(planStart))

	reactStart := time.Now()
	agentReport := e.agent.Run(ctx, question, analysis, plan)
	e.recordStage(ctx, "react", time.Since(reactStart))

	integrateStart := time.Now()
	report = e.integrator.Integrate(ctx, question, analysis, plan, agentReport, start)
	e.recordStage(ctx, "integration", time.Since(integrateStart))

	e.session.Record(report)

	if e.conversation != nil {
		e.conversation.AddToConversation("user", question)
		if report.Answer != "" {
			e.conversation.AddToConversation("assistant", report.Answer)
		}
	}

	strategy := string(plan.Strategy)
	metrics.PipelineDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	metrics.AgentRounds.WithLabelValues(strategy).Observe(float64(agentReport.TotalRounds))

	if e.archiver != nil {
		if err := e.archiver.Store(ctx, report); err != nil {
			e.log.Warn("Report archival failed", map[string]interface{}{
				"report_id": report.ID,
				"error":     err.Error(),
			})
		}
	}

	e.log.Info("Deep search finished", map[string]interface{}{
		"query":        question,
		"strategy":     strategy,
		"rounds":       agentReport.TotalRounds,
		"results_kept": report.HighQualityResults,
		"duration":     report.DurationSeconds,
	})

	return report
}

func (e *Engine) runStage(ctx context.Context, stage string, fn func() *models.QueryAnalysis) *models.QueryAnalysis {
	start := time.Now()
	out := fn()
	e.recordStage(ctx, stage, time.Since(start))
	return out
}

func (e *Engine) recordStage(ctx context.Context, stage string, duration time.Duration) {
	if e.obs == nil {
		return
	}
	e.obs.RecordStage(ctx, stage, "completed")
	e.obs.RecordStageDuration(ctx, stage, duration)
}

func failureReport(question, message string) *models.Report {
	return &models.Report{
		Query:     question,
		Success:   false,
		Error:     message,
		Timestamp: time.Now().UTC(),
	}
}

// Stats returns the session counters.
func (e *Engine) Stats() SessionStats {
	return e.session.Snapshot()
}

// History returns the session's completed reports.
func (e *Engine) History() []*models.Report {
	return e.session.History()
}

// TokensUsed reports the completion client's cumulative token count for the
// session, when a conversation store is wired.
func (e *Engine) TokensUsed() int {
	if e.conversation == nil {
		return 0
	}
	return e.conversation.TotalTokensUsed()
}

// ClearSession resets the session history and the completion client's
// conversation.
func (e *Engine) ClearSession() {
	e.session.Reset()
	if e.conversation != nil {
		e.conversation.ClearConversation()
	}
	e.log.Info("Session cleared", nil)
}
