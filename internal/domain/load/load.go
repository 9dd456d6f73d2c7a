package load

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/freightline/service-loads/pkg/domain"
)

const referenceNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Load is the aggregate root for a shipment. The pickup and delivery
// locations live on the load itself; renaming or relocating either endpoint
// is a write to the load, not to a stop record. Intermediate stops are
// independent rows keyed by the load id.
type Load struct {
	id              uuid.UUID
	referenceNumber string
	status          LoadStatus
	brokerName      string

	pickupAddress   Address
	pickupDate      *time.Time
	deliveryAddress Address
	deliveryDate    *time.Time

	financials FinancialSnapshot

	notes       string
	cancelNote  string
	cancelledAt *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateReferenceNumber creates a load reference in the format "LD-XXXXXX".
func generateReferenceNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate reference number: %w", err)
		}
		result[i] = referenceNumberChars[n.Int64()]
	}
	return "LD-" + string(result), nil
}

// NewLoad creates a new Load aggregate with status=draft.
func NewLoad(
	brokerName string,
	pickupAddress Address,
	pickupDate *time.Time,
	deliveryAddress Address,
	deliveryDate *time.Time,
	revenueCents int64,
	driverPayCents int64,
	notes string,
) (*Load, error) {
	if !pickupAddress.Routable() {
		return nil, domain.NewValidationError("pickup requires at least city and state")
	}
	if !deliveryAddress.Routable() {
		return nil, domain.NewValidationError("delivery requires at least city and state")
	}
	if revenueCents < 0 {
		return nil, domain.NewValidationError("revenue cannot be negative")
	}
	if driverPayCents < 0 {
		return nil, domain.NewValidationError("driver pay cannot be negative")
	}

	ref, err := generateReferenceNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Load{
		id:              uuid.New(),
		referenceNumber: ref,
		status:          StatusDraft,
		brokerName:      brokerName,
		pickupAddress:   pickupAddress,
		pickupDate:      pickupDate,
		deliveryAddress: deliveryAddress,
		deliveryDate:    deliveryDate,
		financials:      NewFinancialSnapshot(revenueCents, driverPayCents),
		notes:           notes,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructLoad rebuilds a Load from persistence data (no validation).
func ReconstructLoad(
	id uuid.UUID,
	referenceNumber string,
	status LoadStatus,
	brokerName string,
	pickupAddress Address,
	pickupDate *time.Time,
	deliveryAddress Address,
	deliveryDate *time.Time,
	financials FinancialSnapshot,
	notes string,
	cancelNote string,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Load {
	return &Load{
		id:              id,
		referenceNumber: referenceNumber,
		status:          status,
		brokerName:      brokerName,
		pickupAddress:   pickupAddress,
		pickupDate:      pickupDate,
		deliveryAddress: deliveryAddress,
		deliveryDate:    deliveryDate,
		financials:      financials,
		notes:           notes,
		cancelNote:      cancelNote,
		cancelledAt:     cancelledAt,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

// ID returns the load's unique identifier.
func (l *Load) ID() uuid.UUID { return l.id }

// ReferenceNumber returns the human-readable load reference.
func (l *Load) ReferenceNumber() string { return l.referenceNumber }

// Status returns the current load status.
func (l *Load) Status() LoadStatus { return l.status }

// BrokerName returns the booking broker's name.
func (l *Load) BrokerName() string { return l.brokerName }

// PickupAddress returns the pickup location.
func (l *Load) PickupAddress() Address { return l.pickupAddress }

// PickupDate returns the scheduled pickup date, or nil.
func (l *Load) PickupDate() *time.Time { return l.pickupDate }

// DeliveryAddress returns the delivery location.
func (l *Load) DeliveryAddress() Address { return l.deliveryAddress }

// DeliveryDate returns the scheduled delivery date, or nil.
func (l *Load) DeliveryDate() *time.Time { return l.deliveryDate }

// Financials returns the current financial snapshot.
func (l *Load) Financials() FinancialSnapshot { return l.financials }

// Notes returns free-form notes on the load.
func (l *Load) Notes() string { return l.notes }

// CancelNote returns the cancellation reason.
func (l *Load) CancelNote() string { return l.cancelNote }

// CancelledAt returns the time the load was cancelled.
func (l *Load) CancelledAt() *time.Time { return l.cancelledAt }

// Version returns the entity version for optimistic locking.
func (l *Load) Version() int64 { return l.version }

// CreatedAt returns the creation timestamp.
func (l *Load) CreatedAt() time.Time { return l.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (l *Load) UpdatedAt() time.Time { return l.updatedAt }

// --- Behavior ---

// UpdatePickup rewrites the pickup location and date on the load.
func (l *Load) UpdatePickup(addr Address, date *time.Time) error {
	if !addr.Routable() {
		return domain.NewValidationError("pickup requires at least city and state")
	}
	l.pickupAddress = addr
	l.pickupDate = date
	l.touch()
	return nil
}

// UpdateDelivery rewrites the delivery location and date on the load.
func (l *Load) UpdateDelivery(addr Address, date *time.Time) error {
	if !addr.Routable() {
		return domain.NewValidationError("delivery requires at least city and state")
	}
	l.deliveryAddress = addr
	l.deliveryDate = date
	l.touch()
	return nil
}

// SetFinancials replaces the financial snapshot, typically after the
// coordinator has folded in a resolution or an override.
func (l *Load) SetFinancials(f FinancialSnapshot) {
	l.financials = f
	l.touch()
}

// Book transitions the load from draft to booked.
func (l *Load) Book() error {
	return l.transition(StatusBooked)
}

// Dispatch transitions the load from booked to dispatched.
func (l *Load) Dispatch() error {
	return l.transition(StatusDispatched)
}

// MarkInTransit transitions the load from dispatched to in_transit.
func (l *Load) MarkInTransit() error {
	return l.transition(StatusInTransit)
}

// MarkDelivered transitions the load from in_transit to delivered.
func (l *Load) MarkDelivered() error {
	return l.transition(StatusDelivered)
}

// Invoice transitions the load from delivered to invoiced.
func (l *Load) Invoice() error {
	return l.transition(StatusInvoiced)
}

// Cancel transitions the load to cancelled if it is not in a terminal state.
func (l *Load) Cancel(reason string) error {
	if !l.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(l.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	l.status = StatusCancelled
	l.cancelNote = reason
	l.cancelledAt = &now
	l.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (l *Load) IncrementVersion() {
	l.version++
	l.touch()
}

func (l *Load) transition(target LoadStatus) error {
	if !l.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(l.status), string(target))
	}
	l.status = target
	l.touch()
	return nil
}

func (l *Load) touch() {
	l.updatedAt = time.Now().UTC()
}
