package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/pkg/response"
)

// FacilityHandler handles HTTP requests for facility profiles.
type FacilityHandler struct {
	service *application.FacilityService
}

// NewFacilityHandler creates a new FacilityHandler.
func NewFacilityHandler(service *application.FacilityService) *FacilityHandler {
	return &FacilityHandler{service: service}
}

// RegisterRoutes registers all facility routes on the given router group.
func (h *FacilityHandler) RegisterRoutes(r *gin.RouterGroup) {
	facilities := r.Group("/api/v1/facilities")
	{
		facilities.POST("", h.CreateFacility)
		facilities.GET("", h.ListFacilities)
		facilities.GET("/:id", h.GetFacility)
		facilities.PUT("/:id", h.UpdateFacility)
		facilities.POST("/:id/archive", h.ArchiveFacility)
	}
}

// CreateFacility handles POST /api/v1/facilities.
func (h *FacilityHandler) CreateFacility(c *gin.Context) {
	var req application.FacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateFacility(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListFacilities handles GET /api/v1/facilities.
func (h *FacilityHandler) ListFacilities(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListFacilities(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetFacility handles GET /api/v1/facilities/:id.
func (h *FacilityHandler) GetFacility(c *gin.Context) {
	id, ok := parseFacilityID(c)
	if !ok {
		return
	}

	result, err := h.service.GetFacility(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateFacility handles PUT /api/v1/facilities/:id.
func (h *FacilityHandler) UpdateFacility(c *gin.Context) {
	id, ok := parseFacilityID(c)
	if !ok {
		return
	}

	var req application.FacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateFacility(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ArchiveFacility handles POST /api/v1/facilities/:id/archive.
func (h *FacilityHandler) ArchiveFacility(c *gin.Context) {
	id, ok := parseFacilityID(c)
	if !ok {
		return
	}

	result, err := h.service.ArchiveFacility(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func parseFacilityID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid facility id")
		return uuid.Nil, false
	}
	return id, true
}
