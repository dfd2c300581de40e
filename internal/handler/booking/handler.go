package booking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	bookingService "github.com/servicehq/platform-api/internal/service/booking"
)

type Handler struct {
	service bookingService.Servicer
}

func NewHandler(service bookingService.Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts booking endpoints. Creation carries the usage
// gate: the middleware fast-fails over-limit requests before the
// transactional check in the repository settles the race.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, gate *middleware.EntitlementMiddleware) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", gate.EnforceUsageLimit(plan.MetricBookings), h.Create)
		bookings.GET("", h.List)
		bookings.GET("/:id", h.Get)
		bookings.PUT("/:id", h.Update)
		bookings.DELETE("/:id", h.Cancel)
	}
}

func (h *Handler) Create(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	booking, err := h.service.Create(c.Request.Context(), orgID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(booking))
}

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid booking ID"))
		return
	}

	booking, err := h.service.Get(c.Request.Context(), orgID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	filters := &model.BookingFilters{
		OrganizationID: orgID,
		Status:         c.Query("status"),
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.StartDate = t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.EndDate = t
		}
	}

	bookings, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookings))
}

func (h *Handler) Update(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid booking ID"))
		return
	}

	var req model.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	booking, err := h.service.Update(c.Request.Context(), orgID, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(booking))
}

func (h *Handler) Cancel(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid booking ID"))
		return
	}

	if err := h.service.Cancel(c.Request.Context(), orgID, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
