package campaign

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	campaignService "github.com/servicehq/platform-api/internal/service/campaign"
)

type Handler struct {
	service campaignService.Servicer
}

func NewHandler(service campaignService.Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the marketing surface. Campaigns sit behind the
// marketing_tools gate; ad account links sit behind the ads gate, which
// only the top tier carries.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, gate *middleware.EntitlementMiddleware) {
	campaigns := r.Group("/campaigns", gate.RequireFeature(plan.FeatureMarketingTools))
	{
		campaigns.POST("", h.Create)
		campaigns.GET("", h.List)
		campaigns.GET("/:id", h.Get)
		campaigns.PUT("/:id", h.Update)
		campaigns.DELETE("/:id", h.Delete)
	}

	ads := r.Group("/ad-accounts", gate.RequireFeature(plan.FeatureAds))
	{
		ads.POST("", h.ConnectAdAccount)
		ads.GET("", h.ListAdAccounts)
		ads.DELETE("/:id", h.DisconnectAdAccount)
	}
}

func (h *Handler) Create(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), orgID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(campaign))
}

func (h *Handler) Get(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid campaign ID"))
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), orgID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

func (h *Handler) List(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	campaigns, err := h.service.List(c.Request.Context(), orgID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaigns))
}

func (h *Handler) Update(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid campaign ID"))
		return
	}

	var req model.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), orgID, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(campaign))
}

func (h *Handler) Delete(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid campaign ID"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), orgID, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) ConnectAdAccount(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.ConnectAdAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	account, err := h.service.ConnectAdAccount(c.Request.Context(), orgID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(account))
}

func (h *Handler) ListAdAccounts(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	accounts, err := h.service.ListAdAccounts(c.Request.Context(), orgID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(accounts))
}

func (h *Handler) DisconnectAdAccount(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "invalid ad account ID"))
		return
	}

	if err := h.service.DisconnectAdAccount(c.Request.Context(), orgID, id); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
