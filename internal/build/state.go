package build

import "fmt"

// State is the lifecycle state of one build job.
//
//	GENERATED -> WRITTEN -> COMPILED -> EXECUTED -> SUCCEEDED
//
// Any non-terminal state may move to FAILED.
type State string

const (
	StateGenerated State = "GENERATED"
	StateWritten   State = "WRITTEN"
	StateCompiled  State = "COMPILED"
	StateExecuted  State = "EXECUTED"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// IsTerminal reports whether the state is terminal (finished).
func IsTerminal(s State) bool {
	return s == StateSucceeded || s == StateFailed
}

// Transition validates a move from cur to to and returns the new state.
//
// The caller supplies the state it believes is current; a mismatch or a
// disallowed move is an error and leaves the state unchanged.
func Transition(cur, from, to State) (State, error) {
	if cur != from {
		return cur, fmt.Errorf("invalid transition: expected %s, got %s", from, cur)
	}
	if !isAllowedTransition(from, to) {
		return cur, fmt.Errorf("disallowed transition: %s -> %s", from, to)
	}
	return to, nil
}

func isAllowedTransition(from, to State) bool {
	if to == StateFailed {
		return !IsTerminal(from)
	}
	switch from {
	case StateGenerated:
		return to == StateWritten
	case StateWritten:
		return to == StateCompiled
	case StateCompiled:
		return to == StateExecuted
	case StateExecuted:
		return to == StateSucceeded
	default:
		return false
	}
}
