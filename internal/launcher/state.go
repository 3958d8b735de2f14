package launcher

import "fmt"

// State is the launcher's lifecycle phase
type State string

const (
	StateNotStarted   State = "not_started"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
	StateTerminated   State = "terminated"
)

// AllStates lists every phase in lifecycle order
var AllStates = []State{StateNotStarted, StateStarting, StateRunning, StateShuttingDown, StateTerminated}

// validTransitions maps from-state to allowed to-states.
// Terminated is reachable from everywhere; nothing leaves it.
var validTransitions = map[State]map[State]bool{
	StateNotStarted: {
		StateStarting:   true,
		StateTerminated: true,
	},
	StateStarting: {
		StateRunning:      true, // both children up
		StateShuttingDown: true, // interrupted during the grace period
		StateTerminated:   true, // preflight, privilege or spawn failure
	},
	StateRunning: {
		StateShuttingDown: true,
		StateTerminated:   true,
	},
	StateShuttingDown: {
		StateTerminated: true,
	},
	StateTerminated: {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible
func (s State) IsTerminal() bool {
	return s == StateTerminated
}
