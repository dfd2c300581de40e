package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/config"
	"github.com/servicehq/platform-api/internal/email"
	"github.com/servicehq/platform-api/internal/repository/postgres"
	internalworker "github.com/servicehq/platform-api/internal/worker"
	"github.com/servicehq/platform-api/pkg/logger"
	redisbroker "github.com/servicehq/platform-api/pkg/messaging/redis"
	"github.com/servicehq/platform-api/pkg/metrics"
	"github.com/servicehq/platform-api/pkg/worker"
)

// The worker drains the outbox to the message broker, delivering plan
// change events to downstream consumers at least once.
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

	brokerLogger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "broker").Logger()
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &brokerLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	m := metrics.NewMetrics("servicehq", "worker")

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		CleanupAfter:  7 * 24 * time.Hour,
	}, logger.NewLogger(nil), m)

	var emailSvc email.Service
	if cfg.SMTP.Host != "" {
		emailSvc = email.NewService(cfg.SMTP)
	} else {
		log.Warn().Msg("SMTP not configured, emails disabled")
		emailSvc = email.NoopService{}
	}
	trialReminder := internalworker.NewTrialReminderWorker(
		postgres.NewOrganizationRepository(db),
		postgres.NewUserRepository(db),
		emailSvc,
		3,
		24*time.Hour,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go processor.Start(ctx)
	go trialReminder.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()
	time.Sleep(time.Second)
}
