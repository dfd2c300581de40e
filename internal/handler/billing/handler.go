package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/model"
	billingService "github.com/servicehq/platform-api/internal/service/billing"
)

// Webhook bodies are small; cap reads so a rogue sender cannot balloon
// memory.
const maxWebhookBody = 1 << 20

type Handler struct {
	service billingService.Servicer
}

func NewHandler(service billingService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	billing := r.Group("/billing")
	{
		billing.POST("/checkout", auth.RequireRole(model.RoleOwner, model.RoleAdmin), h.CreateCheckoutSession)
		billing.POST("/portal", auth.RequireRole(model.RoleOwner, model.RoleAdmin), h.CreatePortalSession)
	}
}

// RegisterWebhookRoutes mounts the unauthenticated webhook endpoint. It
// sits outside the auth chain; the signature check is its authentication.
func (h *Handler) RegisterWebhookRoutes(r *gin.Engine) {
	r.POST("/webhooks/stripe", h.HandleWebhook)
}

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	session, err := h.service.CreateCheckoutSession(c.Request.Context(), orgID, &req)
	if err != nil {
		if errors.Is(err, billingService.ErrUnknownPrice) {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "unknown price ID"))
			return
		}
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(session))
}

func (h *Handler) CreatePortalSession(c *gin.Context) {
	orgID, ok := middleware.OrgIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthenticated", "authentication required"))
		return
	}

	var req model.CreatePortalSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", err.Error()))
		return
	}

	session, err := h.service.CreatePortalSession(c.Request.Context(), orgID, req.ReturnURL)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(session))
}

// HandleWebhook verifies and applies a billing provider event. The raw
// body is required for signature verification, so no binding here.
func (h *Handler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "failed to read request body"))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "missing Stripe-Signature header"))
		return
	}

	if err := h.service.HandleWebhookEvent(c.Request.Context(), payload, signature); err != nil {
		// A non-2xx makes the provider retry, which is what we want for
		// transient failures.
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("bad_request", "webhook processing failed"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"received": true}))
}
