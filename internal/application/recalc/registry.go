package recalc

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/domain/routing"
)

// Registry hands out one Coordinator per load. Every view surface for the
// same load goes through the same instance, so no two surfaces can issue
// duplicate concurrent resolutions or diverge on stop order.
type Registry struct {
	resolver routing.Resolver
	cfg      Config
	logger   *zap.Logger

	mu           sync.Mutex
	coordinators map[uuid.UUID]*Coordinator
}

// NewRegistry creates a Registry.
func NewRegistry(resolver routing.Resolver, cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		resolver:     resolver,
		cfg:          cfg,
		logger:       logger,
		coordinators: make(map[uuid.UUID]*Coordinator),
	}
}

// GetOrCreate returns the coordinator for the load, seeding a new one from
// the seed function on first use. The seed runs outside the registry lock's
// critical path only once per load.
func (r *Registry) GetOrCreate(
	loadID uuid.UUID,
	seed func() (loaddomain.StopSequence, loaddomain.FinancialSnapshot, error),
) (*Coordinator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.coordinators[loadID]; ok {
		return c, nil
	}

	seq, fin, err := seed()
	if err != nil {
		return nil, err
	}

	c := NewCoordinator(loadID, seq, fin, r.resolver, r.cfg, r.logger)
	r.coordinators[loadID] = c
	return c, nil
}

// Get returns the coordinator for the load, if one exists.
func (r *Registry) Get(loadID uuid.UUID) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coordinators[loadID]
	return c, ok
}

// Release drops the coordinator for a load, typically after the load reaches
// a terminal status and no views are open on it.
func (r *Registry) Release(loadID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coordinators, loadID)
}
