package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	facilitydomain "github.com/freightline/service-loads/internal/domain/facility"
	loaddomain "github.com/freightline/service-loads/internal/domain/load"
	"github.com/freightline/service-loads/pkg/domain"
)

// FacilityModel is the GORM model for the facilities table.
type FacilityModel struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"not null;size:200;index"`

	Line  string `gorm:"size:200"`
	City  string `gorm:"not null;size:100"`
	State string `gorm:"not null;size:50"`
	Zip   string `gorm:"size:20"`

	HoursNote string `gorm:"size:500"`
	Contact   string `gorm:"size:200"`
	Status    string `gorm:"not null;size:20;index"`

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (FacilityModel) TableName() string {
	return "facilities"
}

// GormFacilityRepository is the GORM-based implementation of facility.Repository.
type GormFacilityRepository struct {
	db *gorm.DB
}

// NewGormFacilityRepository creates a new GormFacilityRepository.
func NewGormFacilityRepository(db *gorm.DB) *GormFacilityRepository {
	return &GormFacilityRepository{db: db}
}

// FindByID retrieves a facility by its unique identifier.
func (r *GormFacilityRepository) FindByID(ctx context.Context, id uuid.UUID) (*facilitydomain.Facility, error) {
	var model FacilityModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Facility", id.String())
		}
		return nil, fmt.Errorf("failed to find facility by ID: %w", err)
	}
	return toDomainFacility(&model), nil
}

// ListActive retrieves active facilities with pagination, ordered by name.
func (r *GormFacilityRepository) ListActive(ctx context.Context, page, limit int) ([]*facilitydomain.Facility, int64, error) {
	query := r.db.WithContext(ctx).Model(&FacilityModel{}).
		Where("status = ?", string(facilitydomain.StatusActive))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count facilities: %w", err)
	}

	var models []FacilityModel
	offset := (page - 1) * limit
	if err := query.
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list facilities: %w", err)
	}

	facilities := make([]*facilitydomain.Facility, len(models))
	for i, m := range models {
		facilities[i] = toDomainFacility(&m)
	}
	return facilities, total, nil
}

// Save persists a new facility.
func (r *GormFacilityRepository) Save(ctx context.Context, f *facilitydomain.Facility) error {
	model := toFacilityModel(f)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save facility: %w", err)
	}
	return nil
}

// Update persists changes to an existing facility with optimistic locking.
func (r *GormFacilityRepository) Update(ctx context.Context, f *facilitydomain.Facility) error {
	model := toFacilityModel(f)

	expectedVersion := f.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&FacilityModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":       model.Name,
			"line":       model.Line,
			"city":       model.City,
			"state":      model.State,
			"zip":        model.Zip,
			"hours_note": model.HoursNote,
			"contact":    model.Contact,
			"status":     model.Status,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update facility: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("facility was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toFacilityModel(f *facilitydomain.Facility) *FacilityModel {
	addr := f.Address()
	return &FacilityModel{
		ID:        f.ID(),
		Name:      f.Name(),
		Line:      addr.Line,
		City:      addr.City,
		State:     addr.State,
		Zip:       addr.Zip,
		HoursNote: f.HoursNote(),
		Contact:   f.Contact(),
		Status:    string(f.Status()),
		Version:   f.Version(),
		CreatedAt: f.CreatedAt(),
		UpdatedAt: f.UpdatedAt(),
	}
}

func toDomainFacility(m *FacilityModel) *facilitydomain.Facility {
	return facilitydomain.ReconstructFacility(
		m.ID,
		m.Name,
		loaddomain.Address{Line: m.Line, City: m.City, State: m.State, Zip: m.Zip},
		m.HoursNote,
		m.Contact,
		facilitydomain.FacilityStatus(m.Status),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
