package load

import (
	"fmt"
	"sort"

	"github.com/freightline/service-loads/internal/domain/routing"
	"github.com/freightline/service-loads/pkg/domain"
)

// StopSequence is the ordered route for one load: the synthesized pickup,
// the intermediate stops sorted by sequence number, and the synthesized
// delivery. Operations have value semantics and return new sequences; the
// pickup and delivery positions are immutable regardless of what callers ask
// for.
type StopSequence struct {
	pickup        Stop
	intermediates []Stop
	delivery      Stop
}

// BuildStopSequence synthesizes the pickup and delivery stops from the
// load's own address fields and slots the intermediate stops between them in
// sequence-number order. Pure: no side effects, no network access. A load
// with zero intermediates yields [pickup, delivery].
func BuildStopSequence(ld *Load, intermediates []Stop) StopSequence {
	sorted := make([]Stop, len(intermediates))
	copy(sorted, intermediates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})

	return StopSequence{
		pickup: Stop{
			ID:        PickupStopID,
			LoadID:    ld.ID(),
			Role:      StopRolePickup,
			Address:   ld.PickupAddress(),
			Scheduled: ld.PickupDate(),
		},
		intermediates: sorted,
		delivery: Stop{
			ID:        DeliveryStopID,
			LoadID:    ld.ID(),
			Role:      StopRoleDelivery,
			Address:   ld.DeliveryAddress(),
			Scheduled: ld.DeliveryDate(),
			Sequence:  len(sorted) + 1,
		},
	}
}

// Stops returns the full ordered list: pickup, intermediates, delivery.
func (s StopSequence) Stops() []Stop {
	out := make([]Stop, 0, len(s.intermediates)+2)
	out = append(out, s.pickup)
	out = append(out, s.intermediates...)
	out = append(out, s.delivery)
	return out
}

// Intermediates returns a copy of the intermediate subset in order.
func (s StopSequence) Intermediates() []Stop {
	out := make([]Stop, len(s.intermediates))
	copy(out, s.intermediates)
	return out
}

// Pickup returns the synthesized pickup stop.
func (s StopSequence) Pickup() Stop { return s.pickup }

// Delivery returns the synthesized delivery stop.
func (s StopSequence) Delivery() Stop { return s.delivery }

// Len returns the total number of stops including pickup and delivery.
func (s StopSequence) Len() int { return len(s.intermediates) + 2 }

// Locations returns the ordered waypoints for the routing service.
func (s StopSequence) Locations() []routing.Location {
	stops := s.Stops()
	out := make([]routing.Location, len(stops))
	for i, st := range stops {
		out[i] = st.Address.Location()
	}
	return out
}

// InsertIntermediate appends a stop to the intermediate subset, assigning
// the next sequence number. The stop's role is forced to intermediate.
func (s StopSequence) InsertIntermediate(st Stop) StopSequence {
	st.Role = StopRoleIntermediate
	st.Sequence = s.nextSequence()

	next := s.clone()
	next.intermediates = append(next.intermediates, st)
	next.delivery.Sequence = len(next.intermediates) + 1
	return next
}

// RemoveIntermediate removes the intermediate stop with the given id.
// Removing pickup or delivery is rejected with InvalidOperationError;
// an unknown id yields NotFoundError.
func (s StopSequence) RemoveIntermediate(stopID string) (StopSequence, error) {
	if stopID == PickupStopID || stopID == DeliveryStopID {
		return s, domain.NewInvalidOperationError(
			fmt.Sprintf("stop %q is a load endpoint and cannot be removed", stopID))
	}

	idx := -1
	for i, st := range s.intermediates {
		if st.ID == stopID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, domain.NewNotFoundError("Stop", stopID)
	}

	next := s.clone()
	next.intermediates = append(next.intermediates[:idx], next.intermediates[idx+1:]...)
	next.renumber()
	return next, nil
}

// UpdateIntermediate replaces the address, facility reference, and schedule
// of an existing intermediate stop, preserving its position.
func (s StopSequence) UpdateIntermediate(st Stop) (StopSequence, error) {
	if st.ID == PickupStopID || st.ID == DeliveryStopID {
		return s, domain.NewInvalidOperationError(
			"load endpoints are edited through the load, not through stops")
	}
	for i, existing := range s.intermediates {
		if existing.ID == st.ID {
			next := s.clone()
			next.intermediates[i].Address = st.Address
			next.intermediates[i].FacilityID = st.FacilityID
			next.intermediates[i].Scheduled = st.Scheduled
			return next, nil
		}
	}
	return s, domain.NewNotFoundError("Stop", st.ID)
}

// Reorder re-numbers the intermediate subset to match the given id order.
// The id set must exactly match the current intermediates; additions or
// removals through reorder are rejected with ValidationError.
func (s StopSequence) Reorder(orderedIDs []string) (StopSequence, error) {
	if len(orderedIDs) != len(s.intermediates) {
		return s, domain.NewValidationError(fmt.Sprintf(
			"reorder expects exactly %d intermediate stop ids, got %d",
			len(s.intermediates), len(orderedIDs)))
	}

	byID := make(map[string]Stop, len(s.intermediates))
	for _, st := range s.intermediates {
		byID[st.ID] = st
	}

	reordered := make([]Stop, 0, len(orderedIDs))
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, dup := seen[id]; dup {
			return s, domain.NewValidationError("duplicate stop id in reorder: " + id)
		}
		seen[id] = struct{}{}
		st, ok := byID[id]
		if !ok {
			return s, domain.NewValidationError("unknown stop id in reorder: " + id)
		}
		reordered = append(reordered, st)
	}

	next := s.clone()
	next.intermediates = reordered
	next.renumber()
	return next, nil
}

// SetEndpointAddress rewrites the pickup or delivery address. The write-back
// to the parent load is the caller's responsibility; the sequence only
// mirrors it. Roles other than pickup/delivery are rejected.
func (s StopSequence) SetEndpointAddress(role StopRole, addr Address) (StopSequence, error) {
	next := s.clone()
	switch role {
	case StopRolePickup:
		next.pickup.Address = addr
	case StopRoleDelivery:
		next.delivery.Address = addr
	default:
		return s, domain.NewInvalidOperationError(
			"only pickup and delivery addresses live on the load endpoint")
	}
	return next, nil
}

func (s StopSequence) clone() StopSequence {
	next := s
	next.intermediates = make([]Stop, len(s.intermediates))
	copy(next.intermediates, s.intermediates)
	return next
}

func (s *StopSequence) renumber() {
	for i := range s.intermediates {
		s.intermediates[i].Sequence = i + 1
	}
	s.delivery.Sequence = len(s.intermediates) + 1
}

func (s StopSequence) nextSequence() int {
	max := 0
	for _, st := range s.intermediates {
		if st.Sequence > max {
			max = st.Sequence
		}
	}
	return max + 1
}
