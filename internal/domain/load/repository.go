package load

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for load aggregates.
type Repository interface {
	// FindByID retrieves a load by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Load, error)

	// FindByReference retrieves a load by its human-readable reference number.
	FindByReference(ctx context.Context, ref string) (*Load, error)

	// List retrieves loads with pagination, optionally filtered by status
	// (empty status means all).
	List(ctx context.Context, status LoadStatus, page, limit int) ([]*Load, int64, error)

	// Save persists a new load.
	Save(ctx context.Context, ld *Load) error

	// Update persists changes to an existing load with optimistic locking.
	Update(ctx context.Context, ld *Load) error
}

// StopRepository defines the persistence contract for intermediate stops.
// Pickup and delivery are never stored here; they live on the load row.
type StopRepository interface {
	// ListByLoadID retrieves all intermediate stops for a load ordered by
	// sequence number.
	ListByLoadID(ctx context.Context, loadID uuid.UUID) ([]Stop, error)

	// Save persists a new intermediate stop.
	Save(ctx context.Context, st Stop) error

	// Update persists changes to an existing intermediate stop.
	Update(ctx context.Context, st Stop) error

	// Delete removes an intermediate stop.
	Delete(ctx context.Context, loadID uuid.UUID, stopID string) error

	// UpdateSequences rewrites the sequence numbers for a load's stops in
	// one transaction.
	UpdateSequences(ctx context.Context, loadID uuid.UUID, seqByID map[string]int) error
}
