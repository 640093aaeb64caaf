package scan

// State is the scan session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateResolving
	StateSuccess
	StateAlreadyInCart
	StateNotFound
	StateError
	StateDisarmed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateResolving:
		return "resolving"
	case StateSuccess:
		return "success"
	case StateAlreadyInCart:
		return "already_in_cart"
	case StateNotFound:
		return "not_found"
	case StateError:
		return "error"
	case StateDisarmed:
		return "disarmed"
	default:
		return "unknown"
	}
}

// IsOutcome reports whether s is one of the terminal resolution states.
func (s State) IsOutcome() bool {
	switch s {
	case StateSuccess, StateAlreadyInCart, StateNotFound, StateError:
		return true
	}
	return false
}

// accepting reports whether new reads are taken in state s. Outcome states
// accept so a new scan can replace the current feedback.
func (s State) accepting() bool {
	return s == StateArmed || s.IsOutcome()
}
