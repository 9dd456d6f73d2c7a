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

// StopModel is the GORM model for the stops table. Only intermediate stops
// are stored; the endpoints live on the loads row.
type StopModel struct {
	ID         string     `gorm:"primaryKey;size:40"`
	LoadID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	FacilityID *uuid.UUID `gorm:"type:uuid;index"`

	Line  string `gorm:"size:200"`
	City  string `gorm:"not null;size:100"`
	State string `gorm:"not null;size:50"`
	Zip   string `gorm:"size:20"`

	ScheduledAt *time.Time `gorm:""`
	Sequence    int        `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (StopModel) TableName() string {
	return "stops"
}

// GormStopRepository is the GORM-based implementation of load.StopRepository.
type GormStopRepository struct {
	db *gorm.DB
}

// NewGormStopRepository creates a new GormStopRepository.
func NewGormStopRepository(db *gorm.DB) *GormStopRepository {
	return &GormStopRepository{db: db}
}

// ListByLoadID retrieves all intermediate stops for a load in sequence order.
func (r *GormStopRepository) ListByLoadID(ctx context.Context, loadID uuid.UUID) ([]loaddomain.Stop, error) {
	var models []StopModel
	if err := r.db.WithContext(ctx).
		Where("load_id = ?", loadID).
		Order("sequence ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list stops: %w", err)
	}

	stops := make([]loaddomain.Stop, len(models))
	for i, m := range models {
		stops[i] = toDomainStop(&m)
	}
	return stops, nil
}

// Save persists a new intermediate stop.
func (r *GormStopRepository) Save(ctx context.Context, st loaddomain.Stop) error {
	model := toStopModel(st)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save stop: %w", err)
	}
	return nil
}

// Update persists changes to an existing intermediate stop.
func (r *GormStopRepository) Update(ctx context.Context, st loaddomain.Stop) error {
	result := r.db.WithContext(ctx).
		Model(&StopModel{}).
		Where("id = ? AND load_id = ?", st.ID, st.LoadID).
		Updates(map[string]interface{}{
			"facility_id":  st.FacilityID,
			"line":         st.Address.Line,
			"city":         st.Address.City,
			"state":        st.Address.State,
			"zip":          st.Address.Zip,
			"scheduled_at": st.Scheduled,
			"updated_at":   time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update stop: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Stop", st.ID)
	}
	return nil
}

// Delete removes an intermediate stop.
func (r *GormStopRepository) Delete(ctx context.Context, loadID uuid.UUID, stopID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND load_id = ?", stopID, loadID).
		Delete(&StopModel{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete stop: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Stop", stopID)
	}
	return nil
}

// UpdateSequences rewrites the sequence numbers for a load's stops in one
// transaction so a reorder never half-applies.
func (r *GormStopRepository) UpdateSequences(ctx context.Context, loadID uuid.UUID, seqByID map[string]int) error {
	if len(seqByID) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for id, seq := range seqByID {
			result := tx.Model(&StopModel{}).
				Where("id = ? AND load_id = ?", id, loadID).
				Updates(map[string]interface{}{"sequence": seq, "updated_at": now})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.NewNotFoundError("Stop", id)
			}
		}
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return err
		}
		return fmt.Errorf("failed to update stop sequences: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toStopModel(st loaddomain.Stop) *StopModel {
	return &StopModel{
		ID:          st.ID,
		LoadID:      st.LoadID,
		FacilityID:  st.FacilityID,
		Line:        st.Address.Line,
		City:        st.Address.City,
		State:       st.Address.State,
		Zip:         st.Address.Zip,
		ScheduledAt: st.Scheduled,
		Sequence:    st.Sequence,
	}
}

func toDomainStop(m *StopModel) loaddomain.Stop {
	return loaddomain.Stop{
		ID:         m.ID,
		LoadID:     m.LoadID,
		Role:       loaddomain.StopRoleIntermediate,
		FacilityID: m.FacilityID,
		Address:    loaddomain.Address{Line: m.Line, City: m.City, State: m.State, Zip: m.Zip},
		Scheduled:  m.ScheduledAt,
		Sequence:   m.Sequence,
	}
}
