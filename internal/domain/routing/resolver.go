// Package routing defines the port to the external routing service and the
// value objects its results are expressed in. Adapters live elsewhere; this
// package carries no network code.
package routing

import (
	"context"
	"strings"
	"time"
)

// Location is one waypoint handed to the routing service. City and state are
// the minimum the service can route on; line and zip sharpen the match.
type Location struct {
	Line  string `json:"line,omitempty"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip,omitempty"`
}

// Routable reports whether this location carries enough data to be routed.
func (l Location) Routable() bool {
	return strings.TrimSpace(l.City) != "" && strings.TrimSpace(l.State) != ""
}

// Key returns the normalized cache-key fragment for this location.
func (l Location) Key() string {
	parts := []string{l.Line, l.City, l.State, l.Zip}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	return strings.Join(parts, "|")
}

// ResolveOptions enumerates every recognized resolution option.
type ResolveOptions struct {
	// ForceRefresh bypasses the cache read; the fresh result is still
	// written through.
	ForceRefresh bool
}

// Resolution is the outcome of one mileage/geometry calculation. It is
// atomic: a new successful resolution fully replaces the prior one, and a
// failed attempt leaves the prior one untouched.
type Resolution struct {
	DistanceMiles float64   `json:"distance_miles"`
	DurationHours float64   `json:"duration_hours"`
	Geometry      string    `json:"geometry,omitempty"`
	Cached        bool      `json:"cached"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// Resolver is the contract for computing route distance and geometry over an
// ordered list of locations. Implementations are stateless per invocation.
//
// Errors: *domain.InsufficientLocationError when fewer than two locations are
// routable; *domain.UpstreamUnavailableError when the routing service fails
// or times out.
type Resolver interface {
	Resolve(ctx context.Context, locations []Location, opts ResolveOptions) (Resolution, error)
}
