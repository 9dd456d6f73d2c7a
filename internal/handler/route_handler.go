package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/freightline/service-loads/internal/application"
	"github.com/freightline/service-loads/pkg/response"
)

// RouteHandler handles the route-and-stops surface of a load. The wizard's
// route step, the load detail page, and the route slide-over all hit these
// endpoints; they share one coordinator per load, so edits made on any
// surface show up on the others.
type RouteHandler struct {
	service *application.LoadService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service *application.LoadService) *RouteHandler {
	return &RouteHandler{service: service}
}

// RegisterRoutes mounts the route operations on each surface's group: the
// load detail page, the creation wizard's route step, and the route
// slide-over. All three resolve to the same service and therefore the same
// per-load coordinator, so an edit made on one surface is immediately
// visible on the others.
func (h *RouteHandler) RegisterRoutes(r *gin.RouterGroup) {
	for _, base := range []string{
		"/api/v1/loads/:id/route",
		"/api/v1/wizard/:id/route",
		"/api/v1/panel/:id/route",
	} {
		route := r.Group(base)
		{
			route.GET("", h.GetRouteState)
			route.POST("/stops", h.AddStop)
			route.PUT("/stops/:stopId", h.UpdateStop)
			route.DELETE("/stops/:stopId", h.RemoveStop)
			route.PUT("/stops", h.ReorderStops)
			route.PUT("/miles", h.OverrideMiles)
			route.POST("/refresh", h.RefreshRoute)
		}
	}
}

// GetRouteState handles GET /api/v1/loads/:id/route.
func (h *RouteHandler) GetRouteState(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	result, err := h.service.RouteState(c.Request.Context(), loadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// AddStop handles POST /api/v1/loads/:id/route/stops.
func (h *RouteHandler) AddStop(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req application.StopInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.AddStop(c.Request.Context(), loadID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// UpdateStop handles PUT /api/v1/loads/:id/route/stops/:stopId.
func (h *RouteHandler) UpdateStop(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}
	stopID := c.Param("stopId")

	var req application.StopInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateLoadStop(c.Request.Context(), loadID, stopID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RemoveStop handles DELETE /api/v1/loads/:id/route/stops/:stopId.
func (h *RouteHandler) RemoveStop(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}
	stopID := c.Param("stopId")

	if err := h.service.RemoveStop(c.Request.Context(), loadID, stopID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type reorderRequest struct {
	StopIDs []string `json:"stop_ids" binding:"required"`
}

// ReorderStops handles PUT /api/v1/loads/:id/route/stops.
func (h *RouteHandler) ReorderStops(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ReorderStops(c.Request.Context(), loadID, req.StopIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

type overrideMilesRequest struct {
	Miles float64 `json:"miles" binding:"required"`
}

// OverrideMiles handles PUT /api/v1/loads/:id/route/miles.
func (h *RouteHandler) OverrideMiles(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	var req overrideMilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.OverrideMiles(c.Request.Context(), loadID, req.Miles)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// RefreshRoute handles POST /api/v1/loads/:id/route/refresh. It drops any
// manual miles override and forces an immediate, cache-bypassing resolution.
func (h *RouteHandler) RefreshRoute(c *gin.Context) {
	loadID, ok := parseLoadID(c)
	if !ok {
		return
	}

	result, err := h.service.RefreshRoute(c.Request.Context(), loadID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
