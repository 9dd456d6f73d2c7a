package load

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freightline/service-loads/internal/domain/routing"
)

// StopRole distinguishes the synthesized endpoints from user-managed
// intermediate stops.
type StopRole string

const (
	StopRolePickup       StopRole = "pickup"
	StopRoleDelivery     StopRole = "delivery"
	StopRoleIntermediate StopRole = "intermediate"
)

// IsValid returns true if the role is recognized.
func (r StopRole) IsValid() bool {
	switch r {
	case StopRolePickup, StopRoleDelivery, StopRoleIntermediate:
		return true
	}
	return false
}

// Synthetic stop identifiers. Pickup and delivery are not persisted as stop
// rows; they are projections of the parent load's own address fields and keep
// fixed ids within a sequence.
const (
	PickupStopID   = "pickup"
	DeliveryStopID = "delivery"
)

// NewTempStopID generates a local identifier for an intermediate stop that
// has not been persisted yet (wizard drafts).
func NewTempStopID() string {
	return "tmp-" + uuid.NewString()
}

// IsTempStopID reports whether id is a pre-save local identifier.
func IsTempStopID(id string) bool {
	return strings.HasPrefix(id, "tmp-")
}

// Address holds the free-text location fields of a stop or load endpoint.
// Individual fields may be empty; City+State is the routable minimum.
type Address struct {
	Line  string `json:"line,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Zip   string `json:"zip,omitempty"`
}

// Routable reports whether the address carries enough data for the routing
// service.
func (a Address) Routable() bool {
	return strings.TrimSpace(a.City) != "" && strings.TrimSpace(a.State) != ""
}

// Location converts the address to the routing port's waypoint type.
func (a Address) Location() routing.Location {
	return routing.Location{Line: a.Line, City: a.City, State: a.State, Zip: a.Zip}
}

// Stop is one physical location in a load's route. Pickup and delivery stops
// are synthesized from the load; intermediate stops are persisted rows.
type Stop struct {
	ID         string     `json:"id"`
	LoadID     uuid.UUID  `json:"load_id"`
	Role       StopRole   `json:"role"`
	FacilityID *uuid.UUID `json:"facility_id,omitempty"`
	Address    Address    `json:"address"`
	Scheduled  *time.Time `json:"scheduled_at,omitempty"`
	Sequence   int        `json:"sequence"`
}
