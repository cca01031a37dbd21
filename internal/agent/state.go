// internal/agent/state.go
package agent

import "fmt"

// State is one phase of the ReAct loop. Observation is folded into the
// acting phase, so the machine cycles REASONING → ACTING → REFLECTING and
// terminates in CONCLUDED.
type State string

const (
	StateReasoning  State = "reasoning"
	StateActing     State = "acting"
	StateReflecting State = "reflecting"
	StateConcluded  State = "concluded"
)

// legalTransitions enumerates every edge the loop may take. Reasoning can
// conclude directly when the verdict says stop; reflecting can conclude or
// start the next round.
var legalTransitions = map[State][]State{
	StateReasoning:  {StateActing, StateConcluded},
	StateActing:     {StateReflecting},
	StateReflecting: {StateReasoning, StateConcluded},
	StateConcluded:  {},
}

// StateMachine tracks the loop's current phase and rejects illegal moves.
type StateMachine struct {
	current State
}

// NewStateMachine starts in REASONING, the loop's initial phase.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateReasoning}
}

func (m *StateMachine) Current() State {
	return m.current
}

// Transition moves to the given state, or returns an error when the edge is
// not enumerated in legalTransitions.
func (m *StateMachine) Transition(to State) error {
	for _, allowed := range legalTransitions[m.current] {
		if allowed == to {
			m.current = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s", m.current, to)
}
