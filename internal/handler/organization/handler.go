package organization

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/model"
	orgService "github.com/servicehq/platform-api/internal/service/organization"
)

type Handler struct {
	service orgService.Servicer
}

func NewHandler(service orgService.Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the current-organization endpoints. The tenant
// always comes from the token, so there is no :id in these paths.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	org := r.Group("/organization")
	{
		org.GET("", h.Get)
		org.PUT("", h.Update)
		org.DELETE("", h.Deactivate)
	}
}

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	org, err := h.service.Get(c.Request.Context(), orgID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(org))
}

func (h *Handler) Update(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	org, err := h.service.Update(c.Request.Context(), orgID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(org))
}

func (h *Handler) Deactivate(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), orgID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
