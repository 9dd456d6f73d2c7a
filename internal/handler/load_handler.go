// Package handler exposes the HTTP surfaces of the loads service. The wizard,
// load detail page, and route slide-over all call the same route operations;
// the shared coordinator behind them is what keeps the surfaces consistent.
package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/pkg/response"
)

// LoadHandler handles HTTP requests for load CRUD and lifecycle operations.
type LoadHandler struct {
	service *application.LoadService
}

// NewLoadHandler creates a new LoadHandler.
func NewLoadHandler(service *application.LoadService) *LoadHandler {
	return &LoadHandler{service: service}
}

// RegisterRoutes registers all load routes on the given router group.
func (h *LoadHandler) RegisterRoutes(r *gin.RouterGroup) {
	loads := r.Group("/api/v1/loads")
	{
		loads.POST("", h.CreateLoad)
		loads.GET("", h.ListLoads)
		loads.GET("/:id", h.GetLoad)
		loads.GET("/reference/:reference", h.GetLoadByReference)
		loads.PUT("/:id/pickup", h.UpdatePickup)
		loads.PUT("/:id/delivery", h.UpdateDelivery)
		loads.PUT("/:id/financials", h.UpdateFinancials)

		loads.POST("/:id/book", h.BookLoad)
		loads.POST("/:id/dispatch", h.DispatchLoad)
		loads.POST("/:id/transit", h.MarkInTransit)
		loads.POST("/:id/deliver", h.MarkDelivered)
		loads.POST("/:id/invoice", h.InvoiceLoad)
		loads.POST("/:id/cancel", h.CancelLoad)
	}
}

// CreateLoad handles POST /api/v1/loads. This is the wizard's save: the load
// plus any drafted intermediate stops land in one request.
func (h *LoadHandler) CreateLoad(c *gin.Context) {
	var req application.CreateLoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateLoad(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListLoads handles GET /api/v1/loads.
func (h *LoadHandler) ListLoads(c *gin.Context) {
	page, limit := parsePagination(c)
	status := c.Query("status")

	result, err := h.service.ListLoads(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetLoad handles GET /api/v1/loads/:id.
func (h *LoadHandler) GetLoad(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	result, err := h.service.GetLoad(c.Request.Context(), loadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetLoadByReference handles GET /api/v1/loads/reference/:reference.
func (h *LoadHandler) GetLoadByReference(c *gin.Context) {
	result, err := h.service.GetLoadByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

type endpointRequest struct {
	Address application.AddressInput `json:"address" binding:"required"`
	Date    *time.Time               `json:"date"`
}

// UpdatePickup handles PUT /api/v1/loads/:id/pickup.
func (h *LoadHandler) UpdatePickup(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req endpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdatePickup(c.Request.Context(), loadID, req.Address, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateDelivery handles PUT /api/v1/loads/:id/delivery.
func (h *LoadHandler) UpdateDelivery(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req endpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateDelivery(c.Request.Context(), loadID, req.Address, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

type financialsRequest struct {
	RevenueCents   int64 `json:"revenue_cents"`
	DriverPayCents int64 `json:"driver_pay_cents"`
}

// UpdateFinancials handles PUT /api/v1/loads/:id/financials.
func (h *LoadHandler) UpdateFinancials(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req financialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateFinancials(c.Request.Context(), loadID, req.RevenueCents, req.DriverPayCents)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// BookLoad handles POST /api/v1/loads/:id/book.
func (h *LoadHandler) BookLoad(c *gin.Context) {
	h.lifecycle(c, h.service.BookLoad)
}

// DispatchLoad handles POST /api/v1/loads/:id/dispatch.
func (h *LoadHandler) DispatchLoad(c *gin.Context) {
	h.lifecycle(c, h.service.DispatchLoad)
}

// MarkInTransit handles POST /api/v1/loads/:id/transit.
func (h *LoadHandler) MarkInTransit(c *gin.Context) {
	h.lifecycle(c, h.service.MarkInTransit)
}

// MarkDelivered handles POST /api/v1/loads/:id/deliver.
func (h *LoadHandler) MarkDelivered(c *gin.Context) {
	h.lifecycle(c, h.service.MarkDelivered)
}

// InvoiceLoad handles POST /api/v1/loads/:id/invoice.
func (h *LoadHandler) InvoiceLoad(c *gin.Context) {
	h.lifecycle(c, h.service.InvoiceLoad)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelLoad handles POST /api/v1/loads/:id/cancel.
func (h *LoadHandler) CancelLoad(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CancelLoad(c.Request.Context(), loadID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *LoadHandler) lifecycle(c *gin.Context, action func(ctx context.Context, id uuid.UUID) (*application.LoadDTO, error)) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	result, err := action(c.Request.Context(), loadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// --- Shared helpers ---

func parseLoadID(c *gin.Context) (uuid.UUID, bool) {
	loadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid load id")
		return uuid.Nil, false
	}
	return loadID, true
}

func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
