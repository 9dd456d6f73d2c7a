package load

import "fmt"

// LoadStatus represents the current state of a load in its lifecycle.
type LoadStatus string

const (
	StatusDraft      LoadStatus = "draft"
	StatusBooked     LoadStatus = "booked"
	StatusDispatched LoadStatus = "dispatched"
	StatusInTransit  LoadStatus = "in_transit"
	StatusDelivered  LoadStatus = "delivered"
	StatusInvoiced   LoadStatus = "invoiced"
	StatusCancelled  LoadStatus = "cancelled"
)

// validTransitions defines the state machine for load status transitions.
var validTransitions = map[LoadStatus][]LoadStatus{
	StatusDraft:      {StatusBooked, StatusCancelled},
	StatusBooked:     {StatusDispatched, StatusCancelled},
	StatusDispatched: {StatusInTransit, StatusCancelled},
	StatusInTransit:  {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusInvoiced},
	StatusInvoiced:   {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is a recognized load status.
func (s LoadStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s LoadStatus) CanTransitionTo(target LoadStatus) bool {
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

// IsTerminal returns true if no further transitions are possible from this status.
func (s LoadStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the load can be cancelled from this status.
func (s LoadStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// String returns the string representation of the status.
func (s LoadStatus) String() string {
	return string(s)
}

// ParseLoadStatus converts a string to a LoadStatus, returning an error if invalid.
func ParseLoadStatus(s string) (LoadStatus, error) {
	status := LoadStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid load status: %s", s)
	}
	return status, nil
}
