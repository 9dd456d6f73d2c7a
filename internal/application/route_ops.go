package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/application/recalc"
	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/domain/routing"
	"github.com/freightline/service-loads/internal/events"
	"github.com/freightline/service-loads/pkg/domain"
)

const hookPersistTimeout = 5 * time.Second

// StopDTO is the response representation of a stop. Pickup and delivery
// appear with the fixed ids "pickup" and "delivery"; only intermediates carry
// row ids.
type StopDTO struct {
	ID          string             `json:"id"`
	Role        string             `json:"role"`
	FacilityID  *uuid.UUID         `json:"facility_id,omitempty"`
	Address     loaddomain.Address `json:"address"`
	ScheduledAt *time.Time         `json:"scheduled_at,omitempty"`
	Sequence    int                `json:"sequence"`
}

func toStopDTO(st loaddomain.Stop) StopDTO {
	return StopDTO{
		ID:          st.ID,
		Role:        string(st.Role),
		FacilityID:  st.FacilityID,
		Address:     st.Address,
		ScheduledAt: st.Scheduled,
		Sequence:    st.Sequence,
	}
}

// RouteResolutionDTO is the response representation of a route resolution.
type RouteResolutionDTO struct {
	DistanceMiles float64   `json:"distance_miles"`
	DurationHours float64   `json:"duration_hours"`
	Geometry      string    `json:"geometry,omitempty"`
	Cached        bool      `json:"cached"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// RouteStateDTO is the consistent route view every surface renders from: the
// coordinator state, the full ordered stop list, the financial snapshot with
// derived figures, and the latest resolution or failure reason.
type RouteStateDTO struct {
	LoadID        uuid.UUID           `json:"load_id"`
	State         string              `json:"state"`
	Stops         []StopDTO           `json:"stops"`
	Financials    FinancialDTO        `json:"financials"`
	Resolution    *RouteResolutionDTO `json:"resolution,omitempty"`
	FailureReason string              `json:"failure_reason,omitempty"`
}

func toRouteStateDTO(u recalc.Update) RouteStateDTO {
	dto := RouteStateDTO{
		LoadID:        u.LoadID,
		State:         string(u.State),
		Stops:         make([]StopDTO, len(u.Stops)),
		Financials:    toFinancialDTO(u.Financials),
		FailureReason: u.FailureReason,
	}
	for i, st := range u.Stops {
		dto.Stops[i] = toStopDTO(st)
	}
	if u.Resolution != nil {
		dto.Resolution = &RouteResolutionDTO{
			DistanceMiles: u.Resolution.DistanceMiles,
			DurationHours: u.Resolution.DurationHours,
			Geometry:      u.Resolution.Geometry,
			Cached:        u.Resolution.Cached,
			ResolvedAt:    u.Resolution.ResolvedAt,
		}
	}
	return dto
}

// RouteState returns the current route view for a load, seeding the
// coordinator from persistence on first access.
func (s *LoadService) RouteState(ctx context.Context, loadID uuid.UUID) (*RouteStateDTO, error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}
	dto := toRouteStateDTO(coord.Snapshot())
	return &dto, nil
}

// SubscribeRouteState attaches an observer to the load's coordinator. The
// returned channel receives a consistent view after every change; the cancel
// function must be called when the observer disconnects.
func (s *LoadService) SubscribeRouteState(ctx context.Context, loadID uuid.UUID) (<-chan recalc.Update, func(), error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := coord.Subscribe()
	return ch, cancel, nil
}

// AddStop inserts an intermediate stop at the end of the sequence, persists
// it, and schedules a recalculation.
func (s *LoadService) AddStop(ctx context.Context, loadID uuid.UUID, input StopInput) (*StopDTO, error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}

	st, err := s.buildStop(ctx, loadID, input)
	if err != nil {
		return nil, err
	}

	inserted, err := coord.InsertStop(st)
	if err != nil {
		return nil, err
	}
	if err := s.stops.Save(ctx, inserted); err != nil {
		return nil, err
	}

	dto := toStopDTO(inserted)
	return &dto, nil
}

// UpdateLoadStop rewrites an intermediate stop's facility, address, and
// schedule, then schedules a recalculation. Endpoint ids are rejected by the
// sequence itself.
func (s *LoadService) UpdateLoadStop(ctx context.Context, loadID uuid.UUID, stopID string, input StopInput) (*StopDTO, error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}

	st, err := s.buildStop(ctx, loadID, input)
	if err != nil {
		return nil, err
	}
	st.ID = stopID

	if err := coord.UpdateStop(st); err != nil {
		return nil, err
	}
	if !loaddomain.IsTempStopID(stopID) {
		if err := s.stops.Update(ctx, st); err != nil {
			return nil, err
		}
	}

	dto := toStopDTO(st)
	return &dto, nil
}

// RemoveStop deletes an intermediate stop and schedules a recalculation.
func (s *LoadService) RemoveStop(ctx context.Context, loadID uuid.UUID, stopID string) error {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return err
	}

	if err := coord.RemoveStop(stopID); err != nil {
		return err
	}
	if loaddomain.IsTempStopID(stopID) {
		return nil
	}
	return s.stops.Delete(ctx, loadID, stopID)
}

// ReorderStops applies a new intermediate stop order and schedules a
// recalculation. Sequence numbers are persisted in one batch.
func (s *LoadService) ReorderStops(ctx context.Context, loadID uuid.UUID, orderedIDs []string) (*RouteStateDTO, error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}

	if err := coord.ReorderStops(orderedIDs); err != nil {
		return nil, err
	}

	seqByID := make(map[string]int)
	for _, st := range coord.Sequence().Intermediates() {
		if !loaddomain.IsTempStopID(st.ID) {
			seqByID[st.ID] = st.Sequence
		}
	}
	if err := s.stops.UpdateSequences(ctx, loadID, seqByID); err != nil {
		return nil, err
	}

	dto := toRouteStateDTO(coord.Snapshot())
	return &dto, nil
}

// UpdatePickup rewrites the pickup location on the load itself and mirrors it
// into the stop sequence, scheduling a recalculation.
func (s *LoadService) UpdatePickup(ctx context.Context, loadID uuid.UUID, addr AddressInput, date *time.Time) (*LoadDTO, error) {
	return s.updateEndpoint(ctx, loadID, loaddomain.StopRolePickup, addr, date)
}

// UpdateDelivery rewrites the delivery location on the load itself and
// mirrors it into the stop sequence, scheduling a recalculation.
func (s *LoadService) UpdateDelivery(ctx context.Context, loadID uuid.UUID, addr AddressInput, date *time.Time) (*LoadDTO, error) {
	return s.updateEndpoint(ctx, loadID, loaddomain.StopRoleDelivery, addr, date)
}

func (s *LoadService) updateEndpoint(ctx context.Context, loadID uuid.UUID, role loaddomain.StopRole, addr AddressInput, date *time.Time) (*LoadDTO, error) {
	ld, err := s.loads.FindByID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	domainAddr := addr.toDomain()
	switch role {
	case loaddomain.StopRolePickup:
		err = ld.UpdatePickup(domainAddr, date)
	case loaddomain.StopRoleDelivery:
		err = ld.UpdateDelivery(domainAddr, date)
	default:
		err = domain.NewInvalidOperationError("unknown endpoint role")
	}
	if err != nil {
		return nil, err
	}

	ld.IncrementVersion()
	if err := s.loads.Update(ctx, ld); err != nil {
		return nil, err
	}

	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if err := coord.SetEndpoint(role, domainAddr); err != nil {
		return nil, err
	}

	result := toLoadDTO(ld)
	return &result, nil
}

// OverrideMiles applies a manual miles override. The override survives any
// in-flight resolution and does not trigger one.
func (s *LoadService) OverrideMiles(ctx context.Context, loadID uuid.UUID, miles float64) (*RouteStateDTO, error) {
	if miles <= 0 {
		return nil, domain.NewValidationError("miles override must be greater than zero")
	}

	ld, err := s.loads.FindByID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}
	fin := coord.OverrideMiles(miles)

	ld.SetFinancials(fin)
	ld.IncrementVersion()
	if err := s.loads.Update(ctx, ld); err != nil {
		return nil, err
	}

	s.publishFinancialsUpdated(ctx, loadID, fin)

	dto := toRouteStateDTO(coord.Snapshot())
	return &dto, nil
}

// RefreshRoute clears any manual override and forces an immediate resolution
// that bypasses the debounce window and the route cache.
func (s *LoadService) RefreshRoute(ctx context.Context, loadID uuid.UUID) (*RouteStateDTO, error) {
	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}
	coord.RefreshRoute()

	dto := toRouteStateDTO(coord.Snapshot())
	return &dto, nil
}

// ApplyExternalResolution folds in a route the map rendering service reports
// having drawn. Stale notifications lose to any local in-flight resolution.
func (s *LoadService) ApplyExternalResolution(ctx context.Context, evt events.MapRouteLoadedEvent) error {
	coord, err := s.coordinatorFor(ctx, evt.LoadID)
	if err != nil {
		return err
	}

	resolvedAt := evt.OccurredAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}
	coord.ApplyExternalResolution(routing.Resolution{
		DistanceMiles: evt.DistanceMiles,
		DurationHours: evt.DurationHours,
		Geometry:      evt.Geometry,
		ResolvedAt:    resolvedAt,
	})
	return nil
}

// coordinatorFor returns the shared coordinator for a load, seeding it from
// persistence on first access.
func (s *LoadService) coordinatorFor(ctx context.Context, loadID uuid.UUID) (*recalc.Coordinator, error) {
	coord, err := s.registry.GetOrCreate(loadID, func() (loaddomain.StopSequence, loaddomain.FinancialSnapshot, error) {
		ld, err := s.loads.FindByID(ctx, loadID)
		if err != nil {
			return loaddomain.StopSequence{}, loaddomain.FinancialSnapshot{}, err
		}
		intermediates, err := s.stops.ListByLoadID(ctx, loadID)
		if err != nil {
			return loaddomain.StopSequence{}, loaddomain.FinancialSnapshot{}, err
		}
		return loaddomain.BuildStopSequence(ld, intermediates), ld.Financials(), nil
	})
	if err != nil {
		return nil, err
	}
	coord.SetResolvedHook(s.onResolveLanded)
	return coord, nil
}

// onResolveLanded persists and publishes the outcome of a resolve cycle. It
// runs on the coordinator's goroutine, detached from any request context.
func (s *LoadService) onResolveLanded(u recalc.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), hookPersistTimeout)
	defer cancel()

	switch u.State {
	case recalc.StateResolved:
		ld, err := s.loads.FindByID(ctx, u.LoadID)
		if err != nil {
			s.logger.Error("failed to load for resolution persist",
				zap.String("load_id", u.LoadID.String()),
				zap.Error(err),
			)
			return
		}
		ld.SetFinancials(u.Financials)
		ld.IncrementVersion()
		if err := s.loads.Update(ctx, ld); err != nil {
			s.logger.Error("failed to persist resolved financials",
				zap.String("load_id", u.LoadID.String()),
				zap.Error(err),
			)
			return
		}

		if u.Resolution != nil {
			s.publishEvent(ctx, events.TopicRouteEvents, events.RouteResolved, events.RouteResolvedEvent{
				LoadID:        u.LoadID,
				DistanceMiles: u.Resolution.DistanceMiles,
				DurationHours: u.Resolution.DurationHours,
				Geometry:      u.Resolution.Geometry,
				StopCount:     len(u.Stops),
				OccurredAt:    time.Now().UTC(),
			})
		}
		s.publishFinancialsUpdated(ctx, u.LoadID, u.Financials)

	case recalc.StateFailed:
		s.publishEvent(ctx, events.TopicRouteEvents, events.RouteResolutionFailed, events.RouteResolutionFailedEvent{
			LoadID:     u.LoadID,
			Reason:     u.FailureReason,
			OccurredAt: time.Now().UTC(),
		})
	}
}
