package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freightline/service-loads/internal/domain/facility"
	"github.com/freightline/service-loads/pkg/domain"
)

// FacilityRequest holds the data to create or update a facility profile.
type FacilityRequest struct {
	Name      string       `json:"name" binding:"required"`
	Address   AddressInput `json:"address" binding:"required"`
	HoursNote string       `json:"hours_note"`
	Contact   string       `json:"contact"`
}

// FacilityDTO is the response representation of a facility profile.
type FacilityDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Line      string    `json:"line,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Zip       string    `json:"zip,omitempty"`
	HoursNote string    `json:"hours_note,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFacilityDTO(f *facility.Facility) FacilityDTO {
	addr := f.Address()
	return FacilityDTO{
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

// FacilityService is the application service for facility profiles.
type FacilityService struct {
	facilities facility.Repository
	logger     *zap.Logger
}

// NewFacilityService creates a new FacilityService.
func NewFacilityService(facilities facility.Repository, logger *zap.Logger) *FacilityService {
	return &FacilityService{facilities: facilities, logger: logger}
}

// CreateFacility creates a new facility profile.
func (s *FacilityService) CreateFacility(ctx context.Context, req FacilityRequest) (*FacilityDTO, error) {
	fac, err := facility.NewFacility(req.Name, req.Address.toDomain(), req.HoursNote, req.Contact)
	if err != nil {
		return nil, err
	}
	if err := s.facilities.Save(ctx, fac); err != nil {
		return nil, err
	}
	result := toFacilityDTO(fac)
	return &result, nil
}

// GetFacility retrieves a single facility by ID.
func (s *FacilityService) GetFacility(ctx context.Context, id uuid.UUID) (*FacilityDTO, error) {
	fac, err := s.facilities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toFacilityDTO(fac)
	return &result, nil
}

// ListFacilities retrieves active facilities with pagination.
func (s *FacilityService) ListFacilities(ctx context.Context, page, limit int) (*domain.PaginatedResult[FacilityDTO], error) {
	facs, total, err := s.facilities.ListActive(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]FacilityDTO, len(facs))
	for i, fac := range facs {
		dtos[i] = toFacilityDTO(fac)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// UpdateFacility updates a facility profile. Stops that denormalized the old
// address keep it; only future references pick up the change.
func (s *FacilityService) UpdateFacility(ctx context.Context, id uuid.UUID, req FacilityRequest) (*FacilityDTO, error) {
	fac, err := s.facilities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fac.UpdateProfile(req.Name, req.Address.toDomain(), req.HoursNote, req.Contact); err != nil {
		return nil, err
	}
	fac.IncrementVersion()
	if err := s.facilities.Update(ctx, fac); err != nil {
		return nil, err
	}
	result := toFacilityDTO(fac)
	return &result, nil
}

// ArchiveFacility archives a facility so it stops appearing in pickers.
func (s *FacilityService) ArchiveFacility(ctx context.Context, id uuid.UUID) (*FacilityDTO, error) {
	fac, err := s.facilities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fac.Archive(); err != nil {
		return nil, err
	}
	fac.IncrementVersion()
	if err := s.facilities.Update(ctx, fac); err != nil {
		return nil, err
	}
	result := toFacilityDTO(fac)
	return &result, nil
}
