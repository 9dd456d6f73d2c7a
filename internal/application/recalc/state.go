package recalc

// State represents where the coordinator is in the recalculation cycle.
type State string

const (
	// StateIdle: no resolution has been scheduled or performed yet.
	StateIdle State = "idle"
	// StatePending: a resolution is scheduled but the debounce window is
	// still open; further mutations restart the window.
	StatePending State = "pending"
	// StateResolving: a resolution request is in flight.
	StateResolving State = "resolving"
	// StateResolved: the latest resolution completed successfully.
	StateResolved State = "resolved"
	// StateFailed: the latest resolution failed; last-known-good financials
	// are retained.
	StateFailed State = "failed"
)

// validTransitions defines the coordinator state machine. Re-arming the
// debounce window while pending, and superseding an in-flight request with a
// forced refresh, are same-state events rather than transitions. Externally
// reported resolutions land directly in resolved without a local resolving
// cycle, but never from pending: a pending window means the stop sequence is
// newer than whatever the external figure describes.
var validTransitions = map[State][]State{
	StateIdle:      {StatePending, StateResolving, StateResolved},
	StatePending:   {StateResolving},
	StateResolving: {StateResolved, StateFailed, StatePending},
	StateResolved:  {StatePending, StateResolving, StateResolved},
	StateFailed:    {StatePending, StateResolving, StateResolved},
}

// IsValid returns true if the state is recognized.
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this state to the target
// is allowed. Same-state is treated as allowed for pending and resolving.
func (s State) CanTransitionTo(target State) bool {
	if s == target && (s == StatePending || s == StateResolving) {
		return true
	}
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
