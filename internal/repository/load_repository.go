// Package repository holds the GORM persistence adapters. Models map flat
// columns to the domain aggregates; no GORM type leaks above this package.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/pkg/domain"
)

// LoadModel is the GORM model for the loads table. Pickup and delivery are
// columns on this row, not stop rows.
type LoadModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReferenceNumber string    `gorm:"uniqueIndex;not null;size:20"`
	Status          string    `gorm:"not null;size:20;index"`
	BrokerName      string    `gorm:"size:200"`

	PickupLine   string     `gorm:"size:200"`
	PickupCity   string     `gorm:"not null;size:100"`
	PickupState  string     `gorm:"not null;size:50"`
	PickupZip    string     `gorm:"size:20"`
	PickupDate   *time.Time `gorm:""`
	DeliveryLine string     `gorm:"size:200"`
	DeliveryCity string     `gorm:"not null;size:100"`
	DeliveryState string    `gorm:"not null;size:50"`
	DeliveryZip  string     `gorm:"size:20"`
	DeliveryDate *time.Time `gorm:""`

	RevenueCents        int64    `gorm:"not null;default:0"`
	DriverPayCents      int64    `gorm:"not null;default:0"`
	Miles               float64  `gorm:"not null;default:0"`
	MilesSource         string   `gorm:"not null;size:20;default:'calculated'"`
	LastCalculatedMiles *float64 `gorm:""`
	LastCalculatedHours *float64 `gorm:""`

	Notes       string     `gorm:"size:2000"`
	CancelNote  string     `gorm:"size:500"`
	CancelledAt *time.Time `gorm:""`

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LoadModel) TableName() string {
	return "loads"
}

// GormLoadRepository is the GORM-based implementation of load.Repository.
type GormLoadRepository struct {
	db *gorm.DB
}

// NewGormLoadRepository creates a new GormLoadRepository.
func NewGormLoadRepository(db *gorm.DB) *GormLoadRepository {
	return &GormLoadRepository{db: db}
}

// FindByID retrieves a load by its unique identifier.
func (r *GormLoadRepository) FindByID(ctx context.Context, id uuid.UUID) (*loaddomain.Load, error) {
	var model LoadModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Load", id.String())
		}
		return nil, fmt.Errorf("failed to find load by ID: %w", err)
	}
	return toDomainLoad(&model), nil
}

// FindByReference retrieves a load by its human-readable reference number.
func (r *GormLoadRepository) FindByReference(ctx context.Context, ref string) (*loaddomain.Load, error) {
	var model LoadModel
	if err := r.db.WithContext(ctx).Where("reference_number = ?", ref).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Load", ref)
		}
		return nil, fmt.Errorf("failed to find load by reference: %w", err)
	}
	return toDomainLoad(&model), nil
}

// List retrieves loads with pagination, optionally filtered by status.
func (r *GormLoadRepository) List(ctx context.Context, status loaddomain.LoadStatus, page, limit int) ([]*loaddomain.Load, int64, error) {
	query := r.db.WithContext(ctx).Model(&LoadModel{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count loads: %w", err)
	}

	var models []LoadModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list loads: %w", err)
	}

	loads := make([]*loaddomain.Load, len(models))
	for i, m := range models {
		loads[i] = toDomainLoad(&m)
	}
	return loads, total, nil
}

// Save persists a new load.
func (r *GormLoadRepository) Save(ctx context.Context, ld *loaddomain.Load) error {
	model := toLoadModel(ld)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save load: %w", err)
	}
	return nil
}

// Update persists changes to an existing load with optimistic locking.
func (r *GormLoadRepository) Update(ctx context.Context, ld *loaddomain.Load) error {
	model := toLoadModel(ld)

	// Version was already bumped by the aggregate; match on the prior one.
	expectedVersion := ld.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&LoadModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                model.Status,
			"broker_name":           model.BrokerName,
			"pickup_line":           model.PickupLine,
			"pickup_city":           model.PickupCity,
			"pickup_state":          model.PickupState,
			"pickup_zip":            model.PickupZip,
			"pickup_date":           model.PickupDate,
			"delivery_line":         model.DeliveryLine,
			"delivery_city":         model.DeliveryCity,
			"delivery_state":        model.DeliveryState,
			"delivery_zip":          model.DeliveryZip,
			"delivery_date":         model.DeliveryDate,
			"revenue_cents":         model.RevenueCents,
			"driver_pay_cents":      model.DriverPayCents,
			"miles":                 model.Miles,
			"miles_source":          model.MilesSource,
			"last_calculated_miles": model.LastCalculatedMiles,
			"last_calculated_hours": model.LastCalculatedHours,
			"notes":                 model.Notes,
			"cancel_note":           model.CancelNote,
			"cancelled_at":          model.CancelledAt,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update load: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("load was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toLoadModel(ld *loaddomain.Load) *LoadModel {
	pickup := ld.PickupAddress()
	delivery := ld.DeliveryAddress()
	fin := ld.Financials()

	return &LoadModel{
		ID:              ld.ID(),
		ReferenceNumber: ld.ReferenceNumber(),
		Status:          string(ld.Status()),
		BrokerName:      ld.BrokerName(),

		PickupLine:    pickup.Line,
		PickupCity:    pickup.City,
		PickupState:   pickup.State,
		PickupZip:     pickup.Zip,
		PickupDate:    ld.PickupDate(),
		DeliveryLine:  delivery.Line,
		DeliveryCity:  delivery.City,
		DeliveryState: delivery.State,
		DeliveryZip:   delivery.Zip,
		DeliveryDate:  ld.DeliveryDate(),

		RevenueCents:        fin.RevenueCents,
		DriverPayCents:      fin.DriverPayCents,
		Miles:               fin.Miles,
		MilesSource:         string(fin.MilesSource),
		LastCalculatedMiles: fin.LastCalculatedMiles,
		LastCalculatedHours: fin.LastCalculatedHours,

		Notes:       ld.Notes(),
		CancelNote:  ld.CancelNote(),
		CancelledAt: ld.CancelledAt(),

		Version:   ld.Version(),
		CreatedAt: ld.CreatedAt(),
		UpdatedAt: ld.UpdatedAt(),
	}
}

func toDomainLoad(m *LoadModel) *loaddomain.Load {
	fin := loaddomain.FinancialSnapshot{
		RevenueCents:        m.RevenueCents,
		DriverPayCents:      m.DriverPayCents,
		Miles:               m.Miles,
		MilesSource:         loaddomain.MilesSource(m.MilesSource),
		LastCalculatedMiles: m.LastCalculatedMiles,
		LastCalculatedHours: m.LastCalculatedHours,
	}

	return loaddomain.ReconstructLoad(
		m.ID,
		m.ReferenceNumber,
		loaddomain.LoadStatus(m.Status),
		m.BrokerName,
		loaddomain.Address{Line: m.PickupLine, City: m.PickupCity, State: m.PickupState, Zip: m.PickupZip},
		m.PickupDate,
		loaddomain.Address{Line: m.DeliveryLine, City: m.DeliveryCity, State: m.DeliveryState, Zip: m.DeliveryZip},
		m.DeliveryDate,
		fin,
		m.Notes,
		m.CancelNote,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
