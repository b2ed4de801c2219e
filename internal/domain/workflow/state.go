package workflow

// State represents a workflow phase in the onboarding lifecycle
type State string

const (
	StateEmployee    State = "EMPLOYEE"
	StateManager     State = "MANAGER"
	StateHR          State = "HR"
	StateComplete    State = "COMPLETE"
	StateCorrections State = "CORRECTIONS_REQUESTED"
	StateExpired     State = "EXPIRED"
)

var validStates = map[State]bool{
	StateEmployee:    true,
	StateManager:     true,
	StateHR:          true,
	StateComplete:    true,
	StateCorrections: true,
	StateExpired:     true,
}

var terminalStates = map[State]bool{
	StateComplete: true,
	StateExpired:  true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
