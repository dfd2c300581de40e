package entitlement

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	entitlementService "github.com/servicehq/platform-api/internal/service/entitlement"
)

type Handler struct {
	service entitlementService.Servicer
}

func NewHandler(service entitlementService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/entitlements", h.Snapshot)
}

// Snapshot returns the caller's entitlement view: tier, licensed
// features, and usage against limits. Clients use it to hide locked
// surfaces; the server-side gates remain the enforcement. ?refresh=true
// bypasses the cache.
func (h *Handler) Snapshot(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	refresh := c.Query("refresh") == "true"
	snapshot, err := h.service.Snapshot(c.Request.Context(), orgID, refresh)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(snapshot))
}
