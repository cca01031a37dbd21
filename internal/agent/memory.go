// internal/agent/memory.go
package agent

import (
	"time"

	"deepsearch/internal/models"
)

// Knowledge buffer bounds: once the accumulated text grows past the cap it
// is truncated to its newest tail.
const (
	knowledgeCap  = 10000
	knowledgeKeep = 8000
)

// historyCap bounds each per-loop history; appends prune the oldest entry.
const historyCap = 50

// Action is one planned step the agent decided to take.
type Action struct {
	ID              string             `json:"id"`
	Type            string             `json:"action_type"`
	Queries         []string           `json:"queries"`
	Depth           models.SearchDepth `json:"search_depth"`
	FocusAreas      []string           `json:"focus_areas,omitempty"`
	Reasoning       string             `json:"reasoning"`
	ExpectedOutcome string             `json:"expected_outcome"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Observation records what one action produced.
type Observation struct {
	ActionID     string                `json:"action_id"`
	Results      []models.SearchResult `json:"results"`
	Success      bool                  `json:"success"`
	Insights     []string              `json:"insights"`
	NewQuestions []string              `json:"new_questions"`
	Confidence   float64               `json:"confidence_score"`
	Timestamp    time.Time             `json:"timestamp"`
}

// Reflection is the agent's end-of-round assessment.
type Reflection struct {
	Summary         string    `json:"summary"`
	KnowledgeGaps   []string  `json:"knowledge_gaps"`
	NextActions     []string  `json:"next_actions"`
	ShouldContinue  bool      `json:"should_continue"`
	OverallProgress float64   `json:"overall_progress"`
	Timestamp       time.Time `json:"timestamp"`
}

// Memory is the agent's working state for one question. It is owned by a
// single Run invocation; nothing mutates it concurrently.
type Memory struct {
	OriginalQuery        string
	AccumulatedKnowledge string
	Actions              []Action
	Observations         []Observation
	Reflections          []Reflection
	CurrentRound         int
	MaxRounds            int
}

func NewMemory(question string, maxRounds int) *Memory {
	return &Memory{
		OriginalQuery: question,
		MaxRounds:     maxRounds,
	}
}

func (m *Memory) AppendAction(a Action) {
	m.Actions = append(m.Actions, a)
	if len(m.Actions) > historyCap {
		m.Actions = m.Actions[len(m.Actions)-historyCap:]
	}
}

func (m *Memory) AppendObservation(o Observation) {
	m.Observations = append(m.Observations, o)
	if len(m.Observations) > historyCap {
		m.Observations = m.Observations[len(m.Observations)-historyCap:]
	}
}

func (m *Memory) AppendReflection(r Reflection) {
	m.Reflections = append(m.Reflections, r)
	if len(m.Reflections) > historyCap {
		m.Reflections = m.Reflections[len(m.Reflections)-historyCap:]
	}
}

// AppendKnowledge adds content to the knowledge buffer and enforces the
// cap: past knowledgeCap runes the buffer keeps only its newest
// knowledgeKeep runes.
func (m *Memory) AppendKnowledge(content string) {
	if content == "" {
		return
	}
	m.AccumulatedKnowledge += "\n\n" + content

	runes := []rune(m.AccumulatedKnowledge)
	if len(runes) > knowledgeCap {
		m.AccumulatedKnowledge = string(runes[len(runes)-knowledgeKeep:])
	}
}

// KnowledgeLen is the knowledge buffer size in runes.
func (m *Memory) KnowledgeLen() int {
	return len([]rune(m.AccumulatedKnowledge))
}

// RecentObservations returns up to the last n observations, oldest first.
func (m *Memory) RecentObservations(n int) []Observation {
	if len(m.Observations) <= n {
		return m.Observations
	}
	return m.Observations[len(m.Observations)-n:]
}

// RecentActions returns up to the last n actions, oldest first.
func (m *Memory) RecentActions(n int) []Action {
	if len(m.Actions) <= n {
		return m.Actions
	}
	return m.Actions[len(m.Actions)-n:]
}

// AllResults concatenates every observation's results in collection order.
func (m *Memory) AllResults() []models.SearchResult {
	var all []models.SearchResult
	for _, obs := range m.Observations {
		all = append(all, obs.Results...)
	}
	return all
}
