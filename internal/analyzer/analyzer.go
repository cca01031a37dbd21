// internal/analyzer/analyzer.go

// Package analyzer classifies a question's complexity, decomposes it into
// sub-questions, and proposes search-query variants. It is a leaf module:
// its only dependency is the completion provider, and every operation
// degrades to a rule-based path that cannot fail.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"deepsearch/internal/clients/llm"
	"deepsearch/internal/common/jsonutil"
	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
)

// Completer is the slice of the completion client the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Analyzer turns free-text questions into structured QueryAnalysis values.
type Analyzer struct {
	completer Completer
	log       logger.Logger
}

func New(completer Completer, log logger.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		log:       log.With(map[string]interface{}{"component": "analyzer"}),
	}
}

const analysisSchema = `{
	"type": "object",
	"required": ["complexity"],
	"properties": {
		"complexity": {"type": "string"},
		"main_concepts": {"type": "array", "items": {"type": "string"}},
		"sub_questions": {"type": "array", "items": {"type": "string"}},
		"search_variants": {"type": "array", "items": {"type": "string"}},
		"requires_multi_hop": {"type": "boolean"},
		"estimated_search_rounds": {"type": "integer"},
		"domain_hints": {"type": "array", "items": {"type": "string"}},
		"reasoning": {"type": "string"}
	}
}`

type analysisPayload struct {
	Complexity            string   `json:"complexity"`
	MainConcepts          []string `json:"main_concepts"`
	SubQuestions          []string `json:"sub_questions"`
	SearchVariants        []string `json:"search_variants"`
	RequiresMultiHop      bool     `json:"requires_multi_hop"`
	EstimatedSearchRounds int      `json:"estimated_search_rounds"`
	DomainHints           []string `json:"domain_hints"`
	Reasoning             string   `json:"reasoning"`
}

// Analyze classifies the question. The provider path and the rule-based
// fallback both return a complete QueryAnalysis; this operation cannot fail.
func (a *Analyzer) Analyze(ctx context.Context, question string) *models.QueryAnalysis {
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: buildAnalysisPrompt(question)}},
		Temperature: 0.3,
		Purpose:     "analysis",
	})
	if err != nil {
		a.log.Warn("AI analysis failed, using rule-based analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return a.ruleBasedAnalysis(question)
	}

	var payload analysisPayload
	if err := jsonutil.Decode(resp.Content, analysisSchema, &payload); err != nil {
		a.log.Warn("AI analysis did not parse, using rule-based analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return a.ruleBasedAnalysis(question)
	}

	analysis := a.parsePayload(question, payload)
	a.logAnalysis(analysis)
	return analysis
}

func (a *Analyzer) parsePayload(question string, payload analysisPayload) *models.QueryAnalysis {
	complexity := models.Complexity(payload.Complexity)
	if !complexity.Valid() {
		complexity = models.ComplexityModerate
	}

	variants := payload.SearchVariants
	if len(variants) == 0 {
		variants = []string{question}
	}

	rounds := payload.EstimatedSearchRounds
	if rounds < 1 {
		rounds = 1
	}
	if rounds > 5 {
		rounds = 5
	}

	reasoning := payload.Reasoning
	if reasoning == "" {
		reasoning = "AI-based analysis"
	}

	return &models.QueryAnalysis{
		OriginalQuery:         question,
		Complexity:            complexity,
		MainConcepts:          payload.MainConcepts,
		SubQuestions:          payload.SubQuestions,
		SearchVariants:        variants,
		RequiresMultiHop:      payload.RequiresMultiHop,
		EstimatedSearchRounds: rounds,
		DomainHints:           payload.DomainHints,
		Reasoning:             reasoning,
	}
}

// complexityIndicators maps each tier to its trigger phrases. Tiers are
// scanned in ascending order and a later match overwrites an earlier one,
// so the highest matching tier wins.
var complexityIndicators = []struct {
	complexity models.Complexity
	phrases    []string
}{
	{models.ComplexitySimple, []string{"什么是", "定义", "介绍", "what is", "define", "definition of"}},
	{models.ComplexityModerate, []string{"比较", "区别", "优缺点", "对比", "vs", "compare", "difference between", "pros and cons"}},
	{models.ComplexityComplex, []string{"应用", "影响", "趋势", "发展", "分析", "application", "impact", "trend", "analysis of"}},
	{models.ComplexityMultiHop, []string{"如何影响", "基于", "导致", "为什么会", "深层原因", "how does", "lead to", "why would", "underlying cause"}},
}

func (a *Analyzer) ruleBasedAnalysis(question string) *models.QueryAnalysis {
	lower := strings.ToLower(question)

	complexity := models.ComplexitySimple
	for _, tier := range complexityIndicators {
		for _, phrase := range tier.phrases {
			if strings.Contains(lower, phrase) {
				complexity = tier.complexity
				break
			}
		}
	}

	rounds := 1
	if complexity != models.ComplexitySimple {
		rounds = 2
	}

	analysis := &models.QueryAnalysis{
		OriginalQuery: question,
		Complexity:    complexity,
		MainConcepts:  firstTokens(question, 3),
		SubQuestions:  []string{question},
		SearchVariants: []string{
			question,
			fmt.Sprintf("%s detailed explanation", question),
			fmt.Sprintf("%s latest developments", question),
		},
		RequiresMultiHop:      complexity == models.ComplexityComplex || complexity == models.ComplexityMultiHop,
		EstimatedSearchRounds: rounds,
		DomainHints:           []string{},
		Reasoning:             "rule-based analysis",
		RuleBased:             true,
	}

	a.logAnalysis(analysis)
	return analysis
}

const followUpSchema = `{
	"type": "object",
	"required": ["follow_up_queries"],
	"properties": {
		"follow_up_queries": {"type": "array", "items": {"type": "string"}}
	}
}`

// GenerateFollowUpQueries asks the provider for 2-3 deeper queries given the
// accumulated context. Falls back to template queries on any failure.
func (a *Analyzer) GenerateFollowUpQueries(ctx context.Context, question string, results []models.SearchResult, knowledge string) []string {
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: buildFollowUpPrompt(question, results, knowledge)}},
		Temperature: 0.4,
		Purpose:     "follow_up",
	})
	if err != nil {
		return ruleBasedFollowUps(question)
	}

	var payload struct {
		FollowUpQueries []string `json:"follow_up_queries"`
	}
	if err := jsonutil.Decode(resp.Content, followUpSchema, &payload); err != nil {
		return ruleBasedFollowUps(question)
	}

	queries := payload.FollowUpQueries
	if len(queries) > 3 {
		queries = queries[:3]
	}
	return queries
}

func ruleBasedFollowUps(question string) []string {
	return []string{
		fmt.Sprintf("%s real-world use cases", question),
		fmt.Sprintf("%s latest progress", question),
		fmt.Sprintf("%s related technology comparison", question),
	}
}

func buildAnalysisPrompt(question string) string {
	return fmt.Sprintf(`Analyze the following user question in depth and return the analysis as JSON.

User question: "%s"

Return JSON with exactly these fields:

{
    "complexity": "simple/moderate/complex/multi_hop",
    "main_concepts": ["concept 1", "concept 2", ...],
    "sub_questions": ["sub-question 1", "sub-question 2", ...],
    "search_variants": ["search variant 1", "search variant 2", ...],
    "requires_multi_hop": true/false,
    "estimated_search_rounds": number,
    "domain_hints": ["suggested site 1", "suggested site 2", ...],
    "reasoning": "detailed explanation of the analysis"
}

Classification criteria:
1. complexity:
   - simple: a single clear concept, e.g. "what is Python"
   - moderate: combines 2-3 concepts, e.g. "differences between Python and Java"
   - complex: multiple concepts needing deep analysis, e.g. "applications of machine learning in financial risk control"
   - multi_hop: requires chained reasoning, e.g. "how do GPT-4's code-generation improvements over GPT-3 affect programmers' work"
2. sub_questions: decompose a complex question into independently searchable sub-questions
3. search_variants: 3-5 keyword combinations from different angles
4. estimated_search_rounds: expected number of search rounds (1-5)
5. domain_hints: websites worth prioritizing
6. requires_multi_hop: whether later searches must build on earlier results

Make sure the response is valid JSON.`, question)
}

func buildFollowUpPrompt(question string, results []models.SearchResult, knowledge string) string {
	return fmt.Sprintf(`Based on the original question and the search results so far, generate 2-3 targeted follow-up search queries.

Original question: "%s"

Knowledge accumulated so far:
%s

Summary of recent search results:
%s

Generate 2-3 follow-up queries to dig deeper. Requirements:
1. Each query should explore a different angle or detail
2. Queries should build on known information but seek deeper insight
3. Avoid repeating what is already well covered
4. Return JSON: {"follow_up_queries": ["query 1", "query 2", "query 3"]}`,
		question, knowledge, summarizeResults(results))
}

func summarizeResults(results []models.SearchResult) string {
	var lines []string
	for i, r := range results {
		if i >= 3 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: %s...", r.Title, truncateRunes(r.Content, 200)))
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

func firstTokens(s string, n int) []string {
	tokens := strings.Fields(s)
	if len(tokens) > n {
		tokens = tokens[:n]
	}
	return tokens
}

func (a *Analyzer) logAnalysis(analysis *models.QueryAnalysis) {
	a.log.Info("Query analysis complete", map[string]interface{}{
		"complexity":       string(analysis.Complexity),
		"main_concepts":    strings.Join(analysis.MainConcepts, ", "),
		"multi_hop":        analysis.RequiresMultiHop,
		"estimated_rounds": analysis.EstimatedSearchRounds,
		"sub_questions":    len(analysis.SubQuestions),
		"search_variants":  len(analysis.SearchVariants),
		"rule_based":       analysis.RuleBased,
	})
}
