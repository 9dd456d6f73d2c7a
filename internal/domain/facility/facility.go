// Package facility holds saved facility profiles: shippers, receivers, and
// warehouses that dispatchers pick from instead of retyping addresses. Stops
// may reference a facility; its address is denormalized into the stop at
// mutation time so the route engine never chases the reference.
package facility

import (
	"time"

	"github.com/google/uuid"

	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/pkg/domain"
)

// FacilityStatus represents the lifecycle state of a facility profile.
type FacilityStatus string

const (
	StatusActive   FacilityStatus = "active"
	StatusArchived FacilityStatus = "archived"
)

// Facility is the aggregate root for a saved facility profile.
type Facility struct {
	id        uuid.UUID
	name      string
	address   loaddomain.Address
	hoursNote string
	contact   string
	status    FacilityStatus
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewFacility creates a new active facility profile with validated fields.
func NewFacility(name string, address loaddomain.Address, hoursNote, contact string) (*Facility, error) {
	if name == "" {
		return nil, domain.NewValidationError("facility name is required")
	}
	if !address.Routable() {
		return nil, domain.NewValidationError("facility requires at least city and state")
	}

	now := time.Now().UTC()
	return &Facility{
		id:        uuid.New(),
		name:      name,
		address:   address,
		hoursNote: hoursNote,
		contact:   contact,
		status:    StatusActive,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructFacility rebuilds a Facility from persistence data (no validation).
func ReconstructFacility(
	id uuid.UUID,
	name string,
	address loaddomain.Address,
	hoursNote, contact string,
	status FacilityStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *Facility {
	return &Facility{
		id:        id,
		name:      name,
		address:   address,
		hoursNote: hoursNote,
		contact:   contact,
		status:    status,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the facility's unique identifier.
func (f *Facility) ID() uuid.UUID { return f.id }

// Name returns the facility name.
func (f *Facility) Name() string { return f.name }

// Address returns the facility address.
func (f *Facility) Address() loaddomain.Address { return f.address }

// HoursNote returns the dock hours note.
func (f *Facility) HoursNote() string { return f.hoursNote }

// Contact returns the facility contact line.
func (f *Facility) Contact() string { return f.contact }

// Status returns the facility status.
func (f *Facility) Status() FacilityStatus { return f.status }

// Version returns the entity version for optimistic locking.
func (f *Facility) Version() int64 { return f.version }

// CreatedAt returns the creation timestamp.
func (f *Facility) CreatedAt() time.Time { return f.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (f *Facility) UpdatedAt() time.Time { return f.updatedAt }

// UpdateProfile replaces the editable fields of the facility.
func (f *Facility) UpdateProfile(name string, address loaddomain.Address, hoursNote, contact string) error {
	if name == "" {
		return domain.NewValidationError("facility name is required")
	}
	if !address.Routable() {
		return domain.NewValidationError("facility requires at least city and state")
	}
	f.name = name
	f.address = address
	f.hoursNote = hoursNote
	f.contact = contact
	f.updatedAt = time.Now().UTC()
	return nil
}

// Archive marks the facility as archived so it stops appearing in pickers.
func (f *Facility) Archive() error {
	if f.status == StatusArchived {
		return domain.NewInvalidOperationError("facility is already archived")
	}
	f.status = StatusArchived
	f.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (f *Facility) IncrementVersion() {
	f.version++
	f.updatedAt = time.Now().UTC()
}
