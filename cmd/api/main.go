package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/servicehq/platform-api/internal/config"
	"github.com/servicehq/platform-api/internal/email"
	"github.com/servicehq/platform-api/internal/handler"
	authHandler "github.com/servicehq/platform-api/internal/handler/auth"
	billingHandler "github.com/servicehq/platform-api/internal/handler/billing"
	bookingHandler "github.com/servicehq/platform-api/internal/handler/booking"
	campaignHandler "github.com/servicehq/platform-api/internal/handler/campaign"
	entitlementHandler "github.com/servicehq/platform-api/internal/handler/entitlement"
	organizationHandler "github.com/servicehq/platform-api/internal/handler/organization"
	teamHandler "github.com/servicehq/platform-api/internal/handler/team"
	"github.com/servicehq/platform-api/internal/middleware"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository/postgres"
	"github.com/servicehq/platform-api/internal/router"
	authService "github.com/servicehq/platform-api/internal/service/auth"
	billingService "github.com/servicehq/platform-api/internal/service/billing"
	bookingService "github.com/servicehq/platform-api/internal/service/booking"
	campaignService "github.com/servicehq/platform-api/internal/service/campaign"
	entitlementService "github.com/servicehq/platform-api/internal/service/entitlement"
	organizationService "github.com/servicehq/platform-api/internal/service/organization"
	teamService "github.com/servicehq/platform-api/internal/service/team"
	"github.com/servicehq/platform-api/pkg/metrics"
	"github.com/servicehq/platform-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("servicehq", "api")

	// Repositories
	orgRepo := postgres.NewOrganizationRepository(db)
	userRepo := postgres.NewUserRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	campaignRepo := postgres.NewCampaignRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// Plan resolution from the operator-supplied price mapping
	priceMap := cfg.Plans.PriceMap()
	if len(priceMap) == 0 {
		log.Warn().Msg("no plan price IDs configured; every subscription will resolve to the free tier")
	}
	resolver := plan.NewResolver(priceMap, func(priceID string) {
		m.UnknownPlanIdentifiers.Inc()
	})

	// Email
	var emailSvc email.Service
	if cfg.SMTP.Host != "" {
		emailSvc = email.NewService(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP not configured, emails disabled")
		emailSvc = email.NoopService{}
	}

	// Services
	entitlementSvc := entitlementService.NewService(
		orgRepo, userRepo, bookingRepo, resolver,
		cfg.Snapshot.TTL, cfg.Snapshot.CleanupInterval, m,
	)
	hasher := security.NewBcryptHasher(12)
	authSvc := authService.NewService(userRepo, orgRepo, hasher, cfg.JWT)
	billingSvc := billingService.NewService(
		orgRepo, userRepo, outboxRepo, entitlementSvc, resolver, emailSvc,
		cfg.Stripe, priceMap, m,
	)
	organizationSvc := organizationService.NewService(orgRepo)
	bookingSvc := bookingService.NewService(bookingRepo, entitlementSvc)
	teamSvc := teamService.NewService(userRepo, entitlementSvc, emailSvc)
	campaignSvc := campaignService.NewService(campaignRepo)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(authSvc)
	gate := middleware.NewEntitlementMiddleware(entitlementSvc, m)

	// Router
	r := router.NewRouter(authMiddleware, gate, router.Handlers{
		Health:       handler.NewHealthHandler(db),
		Auth:         authHandler.NewHandler(authSvc),
		Organization: organizationHandler.NewHandler(organizationSvc),
		Booking:      bookingHandler.NewHandler(bookingSvc),
		Team:         teamHandler.NewHandler(teamSvc),
		Campaign:     campaignHandler.NewHandler(campaignSvc),
		Billing:      billingHandler.NewHandler(billingSvc),
		Entitlement:  entitlementHandler.NewHandler(entitlementSvc),
	}, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		CORSConfig:       middleware.DefaultCORSConfig(),
		RequestTimeout:   30 * time.Second,
		MetricsPrefix:    "servicehq_http",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
