package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/application/recalc"
	"github.com/freightline/service-loads/internal/domain/facility"
	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/internal/events"
	"github.com/freightline/service-loads/pkg/domain"
	"github.com/freightline/service-loads/pkg/kafka"
)

// AddressInput is the address payload accepted by every surface.
type AddressInput struct {
	Line  string `json:"line"`
	City  string `json:"city" binding:"required"`
	State string `json:"state" binding:"required"`
	Zip   string `json:"zip"`
}

func (a AddressInput) toDomain() loaddomain.Address {
	return loaddomain.Address{Line: a.Line, City: a.City, State: a.State, Zip: a.Zip}
}

// StopInput is the payload for creating or updating an intermediate stop.
// Either a facility reference or free-text address fields may be given; a
// facility reference wins and its address is denormalized onto the stop.
type StopInput struct {
	FacilityID  *uuid.UUID `json:"facility_id"`
	Line        string     `json:"line"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	Zip         string     `json:"zip"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// CreateLoadRequest holds the data the wizard submits to create a load.
type CreateLoadRequest struct {
	BrokerName     string       `json:"broker_name"`
	Pickup         AddressInput `json:"pickup" binding:"required"`
	PickupDate     *time.Time   `json:"pickup_date"`
	Delivery       AddressInput `json:"delivery" binding:"required"`
	DeliveryDate   *time.Time   `json:"delivery_date"`
	RevenueCents   int64        `json:"revenue_cents"`
	DriverPayCents int64        `json:"driver_pay_cents"`
	Notes          string       `json:"notes"`
	Stops          []StopInput  `json:"stops"`
}

// FinancialDTO is the response representation of a financial snapshot,
// including the derived figures.
type FinancialDTO struct {
	RevenueCents        int64    `json:"revenue_cents"`
	DriverPayCents      int64    `json:"driver_pay_cents"`
	Miles               float64  `json:"miles"`
	MilesSource         string   `json:"miles_source"`
	MarginCents         int64    `json:"margin_cents"`
	RatePerMile         *float64 `json:"rate_per_mile,omitempty"`
	LastCalculatedMiles *float64 `json:"last_calculated_miles,omitempty"`
	LastCalculatedHours *float64 `json:"last_calculated_hours,omitempty"`
}

func toFinancialDTO(f loaddomain.FinancialSnapshot) FinancialDTO {
	dto := FinancialDTO{
		RevenueCents:        f.RevenueCents,
		DriverPayCents:      f.DriverPayCents,
		Miles:               f.Miles,
		MilesSource:         string(f.MilesSource),
		MarginCents:         f.MarginCents(),
		LastCalculatedMiles: f.LastCalculatedMiles,
		LastCalculatedHours: f.LastCalculatedHours,
	}
	// Rate per mile is omitted, not zeroed, when miles are unavailable.
	if rpm, ok := f.RatePerMile(); ok {
		dto.RatePerMile = &rpm
	}
	return dto
}

// LoadDTO is the response representation of a load.
type LoadDTO struct {
	ID              uuid.UUID          `json:"id"`
	ReferenceNumber string             `json:"reference_number"`
	Status          string             `json:"status"`
	BrokerName      string             `json:"broker_name,omitempty"`
	Pickup          loaddomain.Address `json:"pickup"`
	PickupDate      *time.Time         `json:"pickup_date,omitempty"`
	Delivery        loaddomain.Address `json:"delivery"`
	DeliveryDate    *time.Time         `json:"delivery_date,omitempty"`
	Financials      FinancialDTO       `json:"financials"`
	Notes           string             `json:"notes,omitempty"`
	CancelNote      string             `json:"cancel_note,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	Version         int64              `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func toLoadDTO(ld *loaddomain.Load) LoadDTO {
	return LoadDTO{
		ID:              ld.ID(),
		ReferenceNumber: ld.ReferenceNumber(),
		Status:          string(ld.Status()),
		BrokerName:      ld.BrokerName(),
		Pickup:          ld.PickupAddress(),
		PickupDate:      ld.PickupDate(),
		Delivery:        ld.DeliveryAddress(),
		DeliveryDate:    ld.DeliveryDate(),
		Financials:      toFinancialDTO(ld.Financials()),
		Notes:           ld.Notes(),
		CancelNote:      ld.CancelNote(),
		CancelledAt:     ld.CancelledAt(),
		Version:         ld.Version(),
		CreatedAt:       ld.CreatedAt(),
		UpdatedAt:       ld.UpdatedAt(),
	}
}

// LoadService is the application service orchestrating load use cases. All
// route-affecting mutations funnel through the shared recalc registry so
// every surface observes the same coordinator.
type LoadService struct {
	loads      loaddomain.Repository
	stops      loaddomain.StopRepository
	facilities facility.Repository
	registry   *recalc.Registry
	producer   *kafka.Producer
	logger     *zap.Logger
}

// NewLoadService creates a new LoadService.
func NewLoadService(
	loads loaddomain.Repository,
	stops loaddomain.StopRepository,
	facilities facility.Repository,
	registry *recalc.Registry,
	producer *kafka.Producer,
	logger *zap.Logger,
) *LoadService {
	return &LoadService{
		loads:      loads,
		stops:      stops,
		facilities: facilities,
		registry:   registry,
		producer:   producer,
		logger:     logger,
	}
}

// CreateLoad creates a new load from the wizard, including any intermediate
// stops drafted before saving.
func (s *LoadService) CreateLoad(ctx context.Context, req CreateLoadRequest) (*LoadDTO, error) {
	ld, err := loaddomain.NewLoad(
		req.BrokerName,
		req.Pickup.toDomain(),
		req.PickupDate,
		req.Delivery.toDomain(),
		req.DeliveryDate,
		req.RevenueCents,
		req.DriverPayCents,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	if err := s.loads.Save(ctx, ld); err != nil {
		return nil, fmt.Errorf("failed to save load: %w", err)
	}

	for i, input := range req.Stops {
		st, err := s.buildStop(ctx, ld.ID(), input)
		if err != nil {
			return nil, err
		}
		st.Sequence = i + 1
		if err := s.stops.Save(ctx, st); err != nil {
			return nil, fmt.Errorf("failed to save stop: %w", err)
		}
	}

	s.publishLoadCreated(ctx, ld)

	result := toLoadDTO(ld)
	return &result, nil
}

// GetLoad retrieves a single load by ID.
func (s *LoadService) GetLoad(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	ld, err := s.loads.FindByID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	result := toLoadDTO(ld)
	return &result, nil
}

// GetLoadByReference retrieves a single load by its reference number, the
// human-facing id brokers and dispatchers quote.
func (s *LoadService) GetLoadByReference(ctx context.Context, ref string) (*LoadDTO, error) {
	ld, err := s.loads.FindByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	result := toLoadDTO(ld)
	return &result, nil
}

// ListLoads retrieves paginated loads, optionally filtered by status.
func (s *LoadService) ListLoads(ctx context.Context, status string, page, limit int) (*domain.PaginatedResult[LoadDTO], error) {
	var filter loaddomain.LoadStatus
	if status != "" {
		parsed, err := loaddomain.ParseLoadStatus(status)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		filter = parsed
	}

	loads, total, err := s.loads.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]LoadDTO, len(loads))
	for i, ld := range loads {
		dtos[i] = toLoadDTO(ld)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// UpdateFinancials updates revenue and driver pay on a load.
func (s *LoadService) UpdateFinancials(ctx context.Context, loadID uuid.UUID, revenueCents, driverPayCents int64) (*LoadDTO, error) {
	if revenueCents < 0 {
		return nil, domain.NewValidationError("revenue cannot be negative")
	}
	if driverPayCents < 0 {
		return nil, domain.NewValidationError("driver pay cannot be negative")
	}

	ld, err := s.loads.FindByID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	coord, err := s.coordinatorFor(ctx, loadID)
	if err != nil {
		return nil, err
	}
	fin := coord.SetFinancials(revenueCents, driverPayCents)

	ld.SetFinancials(fin)
	ld.IncrementVersion()
	if err := s.loads.Update(ctx, ld); err != nil {
		return nil, err
	}

	s.publishFinancialsUpdated(ctx, loadID, fin)

	result := toLoadDTO(ld)
	return &result, nil
}

// --- Lifecycle ---

// BookLoad transitions a draft load to booked.
func (s *LoadService) BookLoad(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, (*loaddomain.Load).Book)
}

// DispatchLoad transitions a booked load to dispatched.
func (s *LoadService) DispatchLoad(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, (*loaddomain.Load).Dispatch)
}

// MarkInTransit transitions a dispatched load to in_transit.
func (s *LoadService) MarkInTransit(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, (*loaddomain.Load).MarkInTransit)
}

// MarkDelivered transitions an in_transit load to delivered.
func (s *LoadService) MarkDelivered(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, (*loaddomain.Load).MarkDelivered)
}

// InvoiceLoad transitions a delivered load to invoiced.
func (s *LoadService) InvoiceLoad(ctx context.Context, loadID uuid.UUID) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, (*loaddomain.Load).Invoice)
}

// CancelLoad cancels a load that is not yet in a terminal state.
func (s *LoadService) CancelLoad(ctx context.Context, loadID uuid.UUID, reason string) (*LoadDTO, error) {
	return s.transitionLoad(ctx, loadID, func(ld *loaddomain.Load) error {
		return ld.Cancel(reason)
	})
}

func (s *LoadService) transitionLoad(ctx context.Context, loadID uuid.UUID, transition func(*loaddomain.Load) error) (*LoadDTO, error) {
	ld, err := s.loads.FindByID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	from := ld.Status()
	if err := transition(ld); err != nil {
		return nil, err
	}

	ld.IncrementVersion()
	if err := s.loads.Update(ctx, ld); err != nil {
		return nil, err
	}

	evt := events.LoadStatusChangedEvent{
		LoadID:          ld.ID(),
		ReferenceNumber: ld.ReferenceNumber(),
		FromStatus:      string(from),
		ToStatus:        string(ld.Status()),
		OccurredAt:      time.Now().UTC(),
	}
	s.publishEvent(ctx, events.TopicLoadEvents, events.LoadStatusChanged, evt)

	// Terminal loads no longer recalculate; drop the coordinator.
	if ld.Status().IsTerminal() {
		s.registry.Release(ld.ID())
	}

	result := toLoadDTO(ld)
	return &result, nil
}

// --- Helpers ---

// buildStop turns a StopInput into a domain stop, denormalizing the facility
// address when a facility is referenced. The facility repository is injected
// state, not a module-level cache.
func (s *LoadService) buildStop(ctx context.Context, loadID uuid.UUID, input StopInput) (loaddomain.Stop, error) {
	st := loaddomain.Stop{
		ID:        uuid.NewString(),
		LoadID:    loadID,
		Role:      loaddomain.StopRoleIntermediate,
		Scheduled: input.ScheduledAt,
		Address: loaddomain.Address{
			Line:  input.Line,
			City:  input.City,
			State: input.State,
			Zip:   input.Zip,
		},
	}

	if input.FacilityID != nil {
		fac, err := s.facilities.FindByID(ctx, *input.FacilityID)
		if err != nil {
			return loaddomain.Stop{}, err
		}
		st.FacilityID = input.FacilityID
		st.Address = fac.Address()
	}

	if !st.Address.Routable() {
		return loaddomain.Stop{}, domain.NewValidationError("stop requires a facility or at least city and state")
	}
	return st, nil
}

func (s *LoadService) publishLoadCreated(ctx context.Context, ld *loaddomain.Load) {
	evt := events.LoadCreatedEvent{
		LoadID:          ld.ID(),
		ReferenceNumber: ld.ReferenceNumber(),
		BrokerName:      ld.BrokerName(),
		PickupCity:      ld.PickupAddress().City,
		PickupState:     ld.PickupAddress().State,
		DeliveryCity:    ld.DeliveryAddress().City,
		DeliveryState:   ld.DeliveryAddress().State,
		RevenueCents:    ld.Financials().RevenueCents,
		OccurredAt:      time.Now().UTC(),
	}
	s.publishEvent(ctx, events.TopicLoadEvents, events.LoadCreated, evt)
}

func (s *LoadService) publishFinancialsUpdated(ctx context.Context, loadID uuid.UUID, fin loaddomain.FinancialSnapshot) {
	evt := events.LoadFinancialsUpdatedEvent{
		LoadID:         loadID,
		RevenueCents:   fin.RevenueCents,
		DriverPayCents: fin.DriverPayCents,
		Miles:          fin.Miles,
		MilesSource:    string(fin.MilesSource),
		OccurredAt:     time.Now().UTC(),
	}
	if rpm, ok := fin.RatePerMile(); ok {
		evt.RatePerMile = &rpm
	}
	s.publishEvent(ctx, events.TopicLoadEvents, events.LoadFinancialsUpdated, evt)
}

func (s *LoadService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent("service-loads", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
