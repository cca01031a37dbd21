// internal/models/search.go
package models

// SearchDepth selects the search provider's effort level.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// SearchRequest is the provider-independent shape of one search call.
type SearchRequest struct {
	Query          string      `json:"query"`
	Depth          SearchDepth `json:"search_depth"`
	MaxResults     int         `json:"max_results"`
	IncludeDomains []string    `json:"include_domains,omitempty"`
	ExcludeDomains []string    `json:"exclude_domains,omitempty"`
}

// SearchResult is one ranked hit returned by the search provider.
type SearchResult struct {
	Rank          int     `json:"rank"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// SearchResponse carries the ranked results plus the provider's optional
// synthesized answer. An empty Results list is a degraded outcome, not an
// error; transport failures surface as an error from the client instead.
type SearchResponse struct {
	Query           string         `json:"query"`
	Results         []SearchResult `json:"results"`
	ResultsCount    int            `json:"results_count"`
	Answer          string         `json:"answer,omitempty"`
	DurationSeconds float64        `json:"search_duration_seconds"`
}
