// Package events defines the Kafka topics and payloads the loads service
// exchanges with the rest of the platform, plus the consumer for route
// notifications from the map rendering service.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicLoadEvents  = "load.events"
	TopicRouteEvents = "route.events"
	TopicMapEvents   = "map.events"
)

// Event types.
const (
	LoadCreated           = "load.created"
	LoadStatusChanged     = "load.status_changed"
	LoadFinancialsUpdated = "load.financials_updated"
	RouteResolved         = "route.resolved"
	RouteResolutionFailed = "route.resolution_failed"
	MapRouteLoaded        = "map.route_loaded"
)

// LoadCreatedEvent is published when a new load is saved.
type LoadCreatedEvent struct {
	LoadID          uuid.UUID `json:"load_id"`
	ReferenceNumber string    `json:"reference_number"`
	BrokerName      string    `json:"broker_name,omitempty"`
	PickupCity      string    `json:"pickup_city"`
	PickupState     string    `json:"pickup_state"`
	DeliveryCity    string    `json:"delivery_city"`
	DeliveryState   string    `json:"delivery_state"`
	RevenueCents    int64     `json:"revenue_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// LoadStatusChangedEvent is published on every lifecycle transition.
type LoadStatusChangedEvent struct {
	LoadID          uuid.UUID `json:"load_id"`
	ReferenceNumber string    `json:"reference_number"`
	FromStatus      string    `json:"from_status"`
	ToStatus        string    `json:"to_status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// LoadFinancialsUpdatedEvent is published when revenue, driver pay, or the
// active miles figure changes.
type LoadFinancialsUpdatedEvent struct {
	LoadID         uuid.UUID `json:"load_id"`
	RevenueCents   int64     `json:"revenue_cents"`
	DriverPayCents int64     `json:"driver_pay_cents"`
	Miles          float64   `json:"miles"`
	MilesSource    string    `json:"miles_source"`
	RatePerMile    *float64  `json:"rate_per_mile,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// RouteResolvedEvent is published after a successful route resolution.
type RouteResolvedEvent struct {
	LoadID        uuid.UUID `json:"load_id"`
	DistanceMiles float64   `json:"distance_miles"`
	DurationHours float64   `json:"duration_hours"`
	Geometry      string    `json:"geometry,omitempty"`
	StopCount     int       `json:"stop_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RouteResolutionFailedEvent is published when a resolution attempt fails.
type RouteResolutionFailedEvent struct {
	LoadID     uuid.UUID `json:"load_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MapRouteLoadedEvent is the notification the map rendering service emits
// once it has drawn a route; it carries the resolved distance and duration
// back to the engine.
type MapRouteLoadedEvent struct {
	LoadID        uuid.UUID `json:"load_id"`
	DistanceMiles float64   `json:"distance_miles"`
	DurationHours float64   `json:"duration_hours"`
	Geometry      string    `json:"geometry,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
