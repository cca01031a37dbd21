// internal/planner/planner.go

// Package planner turns a query analysis into an ordered search plan and
// adapts later rounds to what earlier rounds found. Plan creation is a pure
// function of the analysis: no provider calls, same input, same plan.
package planner

import (
	"fmt"
	"strings"
	"time"

	"deepsearch/internal/common/logger"
	"deepsearch/internal/models"
)

// Strategy selects how rounds are laid out for a question.
type Strategy string

const (
	StrategyDirect       Strategy = "direct"
	StrategyMultiAngle   Strategy = "multi_angle"
	StrategySequential   Strategy = "sequential"
	StrategyParallelDeep Strategy = "parallel_deep"
)

// Round is one planned search round. Rounds are numbered 1-based and
// contiguous. A round with DependsOnPrevious and no queries is filled in by
// AdaptPlan once the previous round's results exist.
type Round struct {
	Number            int
	Queries           []string
	Depth             models.SearchDepth
	MaxResults        int
	IncludeDomains    []string
	ExcludeDomains    []string
	Timeout           time.Duration
	DependsOnPrevious bool
}

// Plan is the full search plan for one question.
type Plan struct {
	Strategy        Strategy
	Rounds          []*Round
	EstimatedTime   time.Duration
	PriorityDomains []string
	FallbackQueries []string
}

// Per-complexity result caps and per-depth timeouts.
const (
	maxResultsSimple   = 5
	maxResultsModerate = 8
	maxResultsComplex  = 12
	maxResultsMultiHop = 15

	timeoutBasic    = 30 * time.Second
	timeoutAdvanced = 60 * time.Second
)

var socialMediaDomains = []string{"reddit.com", "twitter.com"}

// domainCategories maps concept keywords to domains worth prioritizing.
var domainCategories = []struct {
	keywords []string
	domains  []string
}{
	{
		keywords: []string{"研究", "论文", "学术", "理论", "算法", "research", "paper", "academic", "theory", "algorithm"},
		domains:  []string{"arxiv.org", "scholar.google.com", "pubmed.ncbi.nlm.nih.gov", "ieee.org"},
	},
	{
		keywords: []string{"编程", "代码", "开发", "api", "框架", "programming", "code", "developer", "framework"},
		domains:  []string{"github.com", "stackoverflow.com", "docs.python.org", "developer.mozilla.org"},
	},
	{
		keywords: []string{"商业", "市场", "经济", "公司", "投资", "business", "market", "economy", "company", "investment"},
		domains:  []string{"harvard.edu", "mit.edu", "stanford.edu", "fortune.com"},
	},
	{
		keywords: []string{"新闻", "最新", "趋势", "事件", "news", "latest", "trend", "event"},
		domains:  []string{"reuters.com", "bbc.com", "cnn.com", "bloomberg.com"},
	},
}

// Planner builds and adapts search plans.
type Planner struct {
	log logger.Logger
}

func New(log logger.Logger) *Planner {
	return &Planner{log: log.With(map[string]interface{}{"component": "planner"})}
}

// CreatePlan derives the strategy and rounds from the analysis. Pure: it
// performs no provider calls and the same analysis yields the same plan.
func (p *Planner) CreatePlan(analysis *models.QueryAnalysis) *Plan {
	strategy := determineStrategy(analysis.Complexity)
	rounds := buildRounds(analysis, strategy)

	plan := &Plan{
		Strategy:        strategy,
		Rounds:          rounds,
		EstimatedTime:   estimateDuration(rounds),
		PriorityDomains: selectPriorityDomains(analysis),
		FallbackQueries: fallbackQueries(analysis.OriginalQuery),
	}

	p.log.Info("Search plan created", map[string]interface{}{
		"strategy":         string(strategy),
		"rounds":           len(rounds),
		"estimated_time":   plan.EstimatedTime.Seconds(),
		"priority_domains": len(plan.PriorityDomains),
	})

	return plan
}

func determineStrategy(complexity models.Complexity) Strategy {
	switch complexity {
	case models.ComplexitySimple:
		return StrategyDirect
	case models.ComplexityModerate:
		return StrategyMultiAngle
	case models.ComplexityComplex:
		return StrategySequential
	default:
		return StrategyParallelDeep
	}
}

func buildRounds(analysis *models.QueryAnalysis, strategy Strategy) []*Round {
	var rounds []*Round

	switch strategy {
	case StrategyDirect:
		rounds = append(rounds, &Round{
			Number:         1,
			Queries:        []string{analysis.OriginalQuery},
			Depth:          models.DepthBasic,
			MaxResults:     maxResultsSimple,
			IncludeDomains: headDomains(analysis.DomainHints, 3),
			Timeout:        timeoutBasic,
		})

	case StrategyMultiAngle:
		rounds = append(rounds, &Round{
			Number:         1,
			Queries:        headStrings(analysis.SearchVariants, 3),
			Depth:          models.DepthAdvanced,
			MaxResults:     maxResultsModerate,
			IncludeDomains: headDomains(analysis.DomainHints, 3),
			Timeout:        timeoutAdvanced,
		})

	case StrategySequential:
		rounds = append(rounds, &Round{
			Number:         1,
			Queries:        []string{analysis.OriginalQuery, fmt.Sprintf("%s overview", analysis.OriginalQuery)},
			Depth:          models.DepthAdvanced,
			MaxResults:     maxResultsComplex,
			ExcludeDomains: append([]string(nil), socialMediaDomains...),
			Timeout:        timeoutAdvanced,
		})
		if len(analysis.SubQuestions) > 0 {
			rounds = append(rounds, &Round{
				Number:            2,
				Queries:           headStrings(analysis.SubQuestions, 2),
				Depth:             models.DepthAdvanced,
				MaxResults:        maxResultsComplex,
				IncludeDomains:    headDomains(analysis.DomainHints, 2),
				Timeout:           timeoutAdvanced,
				DependsOnPrevious: true,
			})
		}

	default: // StrategyParallelDeep
		first := append([]string{analysis.OriginalQuery}, headStrings(analysis.SearchVariants, 2)...)
		rounds = append(rounds, &Round{
			Number:     1,
			Queries:    first,
			Depth:      models.DepthAdvanced,
			MaxResults: maxResultsMultiHop,
			Timeout:    timeoutAdvanced,
		})
		if len(analysis.SubQuestions) > 0 {
			rounds = append(rounds, &Round{
				Number:            2,
				Queries:           append([]string(nil), analysis.SubQuestions...),
				Depth:             models.DepthAdvanced,
				MaxResults:        maxResultsMultiHop,
				IncludeDomains:    append([]string(nil), analysis.DomainHints...),
				Timeout:           timeoutAdvanced,
				DependsOnPrevious: true,
			})
			// Queries filled by AdaptPlan once rounds 1-2 have results.
			rounds = append(rounds, &Round{
				Number:            3,
				Depth:             models.DepthAdvanced,
				MaxResults:        10,
				IncludeDomains:    headDomains(analysis.DomainHints, 3),
				ExcludeDomains:    []string{"reddit.com", "twitter.com", "facebook.com"},
				Timeout:           timeoutAdvanced,
				DependsOnPrevious: true,
			})
		}
	}

	return rounds
}

func selectPriorityDomains(analysis *models.QueryAnalysis) []string {
	var domains []string
	domains = append(domains, analysis.DomainHints...)

	concepts := strings.ToLower(strings.Join(analysis.MainConcepts, " "))
	for _, category := range domainCategories {
		for _, keyword := range category.keywords {
			if strings.Contains(concepts, keyword) {
				domains = append(domains, category.domains[:2]...)
				break
			}
		}
	}

	seen := make(map[string]bool, len(domains))
	unique := make([]string, 0, len(domains))
	for _, d := range domains {
		if seen[d] {
			continue
		}
		seen[d] = true
		unique = append(unique, d)
	}

	if len(unique) > 5 {
		unique = unique[:5]
	}
	return unique
}

func fallbackQueries(original string) []string {
	fallbacks := []string{
		fmt.Sprintf("%s fundamentals", original),
		fmt.Sprintf("%s introduction", original),
		fmt.Sprintf("what is %s", original),
		fmt.Sprintf("%s reference material", original),
	}
	return fallbacks[:3]
}

// estimateDuration is a display-only additive model: 5s per query, ×1.5 for
// advanced depth, scaled by max_results/10, summed across rounds.
func estimateDuration(rounds []*Round) time.Duration {
	var total float64
	for _, r := range rounds {
		queryTime := float64(len(r.Queries)) * 5.0
		if r.Depth == models.DepthAdvanced {
			queryTime *= 1.5
		}
		queryTime *= float64(r.MaxResults) / 10.0
		total += queryTime
	}
	return time.Duration(total * float64(time.Second))
}

// AdaptPlan looks up the round after completedRound and adjusts it to what
// the completed round found. Returns nil when no round follows. A dependent
// round with no queries gets adaptive queries derived from the results; a
// thin result set (<3) widens the next round instead of narrowing it.
func (p *Planner) AdaptPlan(plan *Plan, completedRound int, results []models.SearchResult, knowledge string) *Round {
	var next *Round
	for _, r := range plan.Rounds {
		if r.Number == completedRound+1 {
			next = r
			break
		}
	}
	if next == nil {
		return nil
	}

	if next.DependsOnPrevious && len(next.Queries) == 0 {
		next.Queries = adaptiveQueries(results, next.Number)
		p.log.Info("Adaptive queries generated", map[string]interface{}{
			"round":   next.Number,
			"queries": len(next.Queries),
		})
	}

	if len(results) < 3 {
		next.MaxResults = min(next.MaxResults+5, 20)
		next.ExcludeDomains = nil
		p.log.Warn("Few results, widening next round", map[string]interface{}{
			"round":       next.Number,
			"max_results": next.MaxResults,
		})
	}

	return next
}

// adaptiveQueries extracts frequent-looking terms (tokens longer than four
// characters, up to five per result, first three results) and shapes them
// per round.
func adaptiveQueries(results []models.SearchResult, roundNumber int) []string {
	var terms []string
	for i, r := range results {
		if i >= 3 {
			break
		}
		var fromResult []string
		for _, word := range strings.Fields(r.Title + " " + r.Content) {
			if len([]rune(word)) > 4 {
				fromResult = append(fromResult, word)
			}
			if len(fromResult) >= 5 {
				break
			}
		}
		terms = append(terms, fromResult...)
	}

	var queries []string
	switch roundNumber {
	case 2:
		queries = []string{
			fmt.Sprintf("%s detailed analysis", strings.Join(headStrings(terms, 3), " ")),
			fmt.Sprintf("%s practical application", strings.Join(headStrings(terms, 2), " ")),
		}
	case 3:
		queries = []string{
			fmt.Sprintf("%s latest research", strings.Join(headStrings(terms, 2), " ")),
			fmt.Sprintf("%s technical detail", strings.Join(headStrings(terms, 3), " ")),
		}
	default:
		queries = []string{
			fmt.Sprintf("%s related information", strings.Join(headStrings(terms, 2), " ")),
		}
	}

	if len(queries) > 2 {
		queries = queries[:2]
	}
	return queries
}

func headStrings(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}

func headDomains(domains []string, n int) []string {
	if len(domains) == 0 {
		return nil
	}
	return headStrings(domains, n)
}
