// internal/models/report.go
package models

import "time"

// AgentReport is what the ReAct loop hands to the result integrator.
type AgentReport struct {
	OriginalQuery        string         `json:"original_query"`
	Summary              string         `json:"summary"`
	TotalRounds          int            `json:"total_search_rounds"`
	FinalState           string         `json:"final_state"`
	SearchResults        []SearchResult `json:"search_results"`
	AccumulatedKnowledge string         `json:"accumulated_knowledge"`
	Actions              int            `json:"actions"`
	Observations         int            `json:"observations"`
	Reflections          int            `json:"reflections"`
	FinalProgress        float64        `json:"final_progress"`
	EndTime              time.Time      `json:"end_time"`
}

// RoundComparison pairs the analyzer's estimate against what the loop did.
type RoundComparison struct {
	Estimated int `json:"estimated"`
	Actual    int `json:"actual"`
}

// QueryAnalysisSummary is the slice of the analysis echoed in the report.
type QueryAnalysisSummary struct {
	Complexity        string          `json:"complexity"`
	MainConcepts      []string        `json:"main_concepts"`
	RequiresMultiHop  bool            `json:"requires_multi_hop"`
	EstimatedVsActual RoundComparison `json:"estimated_vs_actual_rounds"`
}

// SearchProcessSummary describes how the pipeline executed.
type SearchProcessSummary struct {
	Strategy          string `json:"strategy"`
	TotalSearchRounds int    `json:"total_search_rounds"`
	ReactActions      int    `json:"react_actions"`
	ReactReflections  int    `json:"react_reflections"`
}

// Insights is the derived view of how well the search process worked.
type Insights struct {
	ComplexityAssessment  ComplexityAssessment  `json:"query_complexity_assessment"`
	StrategyEffectiveness StrategyEffectiveness `json:"search_strategy_effectiveness"`
	InformationDiscovery  InformationDiscovery  `json:"information_discovery"`
	AgentPerformance      AgentPerformance      `json:"react_agent_performance"`
}

type ComplexityAssessment struct {
	IdentifiedComplexity string `json:"identified_complexity"`
	RequiredMultiHop     bool   `json:"required_multi_hop"`
	EstimatedRounds      int    `json:"estimated_rounds"`
	ActualRounds         int    `json:"actual_rounds"`
}

type StrategyEffectiveness struct {
	PlannedStrategy       string  `json:"planned_strategy"`
	TotalPlannedRounds    int     `json:"total_planned_rounds"`
	ActualReactActions    int     `json:"actual_react_actions"`
	FinalProgressAchieved float64 `json:"final_progress_achieved"`
}

type InformationDiscovery struct {
	TotalSourcesFound     int     `json:"total_sources_found"`
	UniqueDomains         int     `json:"unique_domains"`
	AverageRelevanceScore float64 `json:"average_relevance_score"`
}

type AgentPerformance struct {
	ReasoningCycles           int `json:"reasoning_cycles"`
	AdaptiveQueriesGenerated  int `json:"adaptive_queries_generated"`
	KnowledgeAccumulationSize int `json:"knowledge_accumulation_size"`
}

// Report is the result of one complete DeepSearch invocation. Callers must
// check Success before trusting Answer or SearchResults.
type Report struct {
	ID                 string               `json:"id"`
	Query              string               `json:"query"`
	Success            bool                 `json:"success"`
	Error              string               `json:"error,omitempty"`
	Timestamp          time.Time            `json:"timestamp"`
	DurationSeconds    float64              `json:"total_duration_seconds"`
	Answer             string               `json:"answer,omitempty"`
	SearchResults      []SearchResult       `json:"search_results,omitempty"`
	TotalResultsFound  int                  `json:"total_results_found"`
	HighQualityResults int                  `json:"high_quality_results"`
	QueryAnalysis      QueryAnalysisSummary `json:"query_analysis"`
	SearchProcess      SearchProcessSummary `json:"search_process"`
	Insights           Insights             `json:"insights"`
}
