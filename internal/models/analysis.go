// internal/models/analysis.go
package models

// Complexity classifies how much search work a question needs.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
	ComplexityMultiHop Complexity = "multi_hop"
)

// Valid reports whether c is one of the four known tiers.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex, ComplexityMultiHop:
		return true
	}
	return false
}

// QueryAnalysis is the analyzer's verdict on one question. Created once per
// question and immutable afterward.
type QueryAnalysis struct {
	OriginalQuery         string     `json:"original_query"`
	Complexity            Complexity `json:"complexity"`
	MainConcepts          []string   `json:"main_concepts"`
	SubQuestions          []string   `json:"sub_questions"`
	SearchVariants        []string   `json:"search_variants"`
	RequiresMultiHop      bool       `json:"requires_multi_hop"`
	EstimatedSearchRounds int        `json:"estimated_search_rounds"`
	DomainHints           []string   `json:"domain_hints"`
	Reasoning             string     `json:"reasoning"`
	// RuleBased is true when the analysis came from the rule fallback
	// rather than the completion provider. Consumers treat both forms
	// identically; the flag exists for reporting.
	RuleBased bool `json:"rule_based"`
}
