package team

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	teamService "github.com/servicehq/platform-api/internal/service/team"
)

type Handler struct {
	service teamService.Servicer
}

func NewHandler(service teamService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware, gate *middleware.EntitlementMiddleware) {
	team := r.Group("/team")
	{
		team.GET("", h.List)
		team.POST("",
			auth.RequireRole(model.RoleOwner, model.RoleAdmin),
			gate.EnforceUsageLimit(plan.MetricTeamMembers),
			h.Invite)
		team.DELETE("/:id",
			auth.RequireRole(model.RoleOwner, model.RoleAdmin),
			h.Remove)
	}
}

func (h *Handler) Invite(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.InviteTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	user, err := h.service.Invite(c.Request.Context(), orgID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(user))
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	members, err := h.service.List(c.Request.Context(), orgID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(members))
}

func (h *Handler) Remove(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid user ID"))
		return
	}

	if err := h.service.Remove(c.Request.Context(), orgID, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
