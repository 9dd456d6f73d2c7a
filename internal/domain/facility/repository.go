package facility

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for facility profiles. It is
// injected wherever facility lookups are needed; there is no shared
// module-level cache.
type Repository interface {
	// FindByID retrieves a facility by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Facility, error)

	// ListActive retrieves active facilities with pagination.
	ListActive(ctx context.Context, page, limit int) ([]*Facility, int64, error)

	// Save persists a new facility.
	Save(ctx context.Context, f *Facility) error

	// Update persists changes to an existing facility.
	Update(ctx context.Context, f *Facility) error
}
