// internal/engine/session.go
package engine

import (
	"time"

	"deepsearch/internal/models"
)

// SessionStats are the cumulative counters for one process session.
type SessionStats struct {
	TotalQueries       int       `json:"total_queries"`
	TotalSearchRounds  int       `json:"total_search_rounds"`
	TotalSearchResults int       `json:"total_search_results"`
	TotalAICalls       int       `json:"total_ai_calls"`
	SessionStart       time.Time `json:"session_start"`
}

// Session holds the process-wide search history and counters. It is only
// ever touched from the single control thread; concurrent multi-session use
// needs one engine per session.
type Session struct {
	stats   SessionStats
	history []*models.Report
}

func NewSession() *Session {
	return &Session{
		stats: SessionStats{SessionStart: time.Now().UTC()},
	}
}

// Record appends a completed report and bumps the counters additively.
func (s *Session) Record(report *models.Report) {
	s.stats.TotalQueries++
	s.stats.TotalSearchRounds += report.SearchProcess.TotalSearchRounds
	s.stats.TotalSearchResults += report.TotalResultsFound
	s.stats.TotalAICalls += report.SearchProcess.ReactActions
	s.history = append(s.history, report)
}

// Snapshot returns a copy of the counters.
func (s *Session) Snapshot() SessionStats {
	return s.stats
}

// History returns a copy of the completed reports, oldest first.
func (s *Session) History() []*models.Report {
	out := make([]*models.Report, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the history and counters and restarts the session clock.
func (s *Session) Reset() {
	s.history = nil
	s.stats = SessionStats{SessionStart: time.Now().UTC()}
}
