package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/servicehq/platform-api/internal/handler"
	authHandler "github.com/servicehq/platform-api/internal/handler/auth"
	billingHandler "github.com/servicehq/platform-api/internal/handler/billing"
	bookingHandler "github.com/servicehq/platform-api/internal/handler/booking"
	campaignHandler "github.com/servicehq/platform-api/internal/handler/campaign"
	entitlementHandler "github.com/servicehq/platform-api/internal/handler/entitlement"
	organizationHandler "github.com/servicehq/platform-api/internal/handler/organization"
	teamHandler "github.com/servicehq/platform-api/internal/handler/team"
	"github.com/servicehq/platform-api/internal/middleware"
)

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MetricsPrefix    string
}

type Handlers struct {
	Health       *handler.HealthHandler
	Auth         *authHandler.Handler
	Organization *organizationHandler.Handler
	Booking      *bookingHandler.Handler
	Team         *teamHandler.Handler
	Campaign     *campaignHandler.Handler
	Billing      *billingHandler.Handler
	Entitlement  *entitlementHandler.Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	gate     *middleware.EntitlementMiddleware
	handlers Handlers
	config   Config
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

func NewRouter(auth *middleware.AuthMiddleware, gate *middleware.EntitlementMiddleware, handlers Handlers, config Config) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	registerValidators()

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}

	r := &Router{
		engine:   engine,
		auth:     auth,
		gate:     gate,
		handlers: handlers,
		config:   config,
		metrics:  initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.handlers.Health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The webhook endpoint authenticates by signature, not by token, so
	// it lives outside the API group.
	r.handlers.Billing.RegisterWebhookRoutes(r.engine)

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Auth.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	r.handlers.Organization.RegisterRoutes(rg)
	r.handlers.Entitlement.RegisterRoutes(rg)
	r.handlers.Booking.RegisterRoutes(rg, r.gate)
	r.handlers.Team.RegisterRoutes(rg, r.auth, r.gate)
	r.handlers.Campaign.RegisterRoutes(rg, r.gate)
	r.handlers.Billing.RegisterRoutes(rg, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	if prefix == "" {
		prefix = "http"
	}
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
