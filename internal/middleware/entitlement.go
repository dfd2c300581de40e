package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/handler"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/service/entitlement"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
	"github.com/servicehq/platform-api/pkg/metrics"
)

// EntitlementMiddleware gates routes on the caller's subscription. Each
// check walks AUTHENTICATE → RESOLVE_ORG → RESOLVE_TIER → CHECK_FEATURE →
// (CHECK_USAGE) and allows or denies. Checks perform no writes, so a
// gated handler can re-run them idempotently.
//
// Denials are distinguishable by status and code:
//
//	401 unauthenticated        no valid token
//	404 no_organization        token's org is gone or never existed
//	403 feature_not_licensed   tier lacks the feature (details: required_tier)
//	403 usage_limit_exceeded   period cap reached (details: current, limit)
type EntitlementMiddleware struct {
	entitlements entitlement.Servicer
	metrics      *metrics.Metrics
}

func NewEntitlementMiddleware(entitlements entitlement.Servicer, m *metrics.Metrics) *EntitlementMiddleware {
	return &EntitlementMiddleware{entitlements: entitlements, metrics: m}
}

// OrgIDFromContext extracts the authenticated organization ID set by the
// auth middleware.
func OrgIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextOrgID)
	if !exists {
		return uuid.Nil, false
	}
	orgID, ok := v.(uuid.UUID)
	if !ok || orgID == uuid.Nil {
		return uuid.Nil, false
	}
	return orgID, true
}

// RequireFeature denies the request unless the organization's effective
// tier licenses the feature.
func (m *EntitlementMiddleware) RequireFeature(feature plan.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := OrgIDFromContext(c)
		if !ok {
			m.deny(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		timer := m.startTimer()
		err := m.entitlements.CheckFeature(c.Request.Context(), orgID, feature)
		m.observe(timer)

		if err != nil {
			m.denyFromErr(c, err)
			return
		}

		m.allow("feature")
		c.Next()
	}
}

// EnforceUsageLimit denies the request once the organization's current
// count for the metric has reached its tier cap. The usage read here and
// the insert it gates are not atomic; creation paths re-check the cap
// under the tenant row lock, so this is a fast-fail, not the guarantee.
func (m *EntitlementMiddleware) EnforceUsageLimit(metric plan.UsageMetric) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := OrgIDFromContext(c)
		if !ok {
			m.deny(c, apperrors.Unauthenticated("authentication required"))
			return
		}

		timer := m.startTimer()
		err := m.entitlements.CheckUsage(c.Request.Context(), orgID, metric)
		m.observe(timer)

		if err != nil {
			m.denyFromErr(c, err)
			return
		}

		m.allow("usage")
		c.Next()
	}
}

func (m *EntitlementMiddleware) denyFromErr(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		m.deny(c, appErr)
		return
	}
	// Anything unclassified (database down, billing unreachable) denies
	// by default: "cannot verify" never means "entitled".
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("entitlement check failed")
	m.deny(c, apperrors.Internal(err))
}

func (m *EntitlementMiddleware) deny(c *gin.Context, appErr *apperrors.AppError) {
	if m.metrics != nil {
		m.metrics.EntitlementChecksDenied.WithLabelValues(appErr.Kind()).Inc()
	}
	status := appErr.StatusCode()
	if status == http.StatusInternalServerError {
		// Deny-by-default for unverifiable entitlements surfaces as 403,
		// not 500: the request was understood, access is refused.
		status = http.StatusForbidden
	}
	c.JSON(status, handler.NewAppErrorResponse(appErr))
	c.Abort()
}

func (m *EntitlementMiddleware) allow(check string) {
	if m.metrics != nil {
		m.metrics.EntitlementChecksAllowed.WithLabelValues(check).Inc()
	}
}

func (m *EntitlementMiddleware) startTimer() *prometheus.Timer {
	if m.metrics == nil {
		return nil
	}
	return prometheus.NewTimer(m.metrics.EntitlementCheckLatency)
}

func (m *EntitlementMiddleware) observe(timer *prometheus.Timer) {
	if timer != nil {
		timer.ObserveDuration()
	}
}
