package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/email"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
)

// TrialReminderWorker emails owners whose trial is about to end. It runs
// once per interval (daily in production) and notifies at an exact
// days-remaining mark, so each organization hears from it once.
type TrialReminderWorker struct {
	orgRepo  repository.OrganizationRepository
	userRepo repository.UserRepository
	emailSvc email.Service
	remindAt int
	interval time.Duration
	now      func() time.Time
}

func NewTrialReminderWorker(
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	emailSvc email.Service,
	remindAtDays int,
	interval time.Duration,
) *TrialReminderWorker {
	if remindAtDays <= 0 {
		remindAtDays = 3
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &TrialReminderWorker{
		orgRepo:  orgRepo,
		userRepo: userRepo,
		emailSvc: emailSvc,
		remindAt: remindAtDays,
		interval: interval,
		now:      time.Now,
	}
}

func (w *TrialReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.run(ctx); err != nil {
				log.Error().Err(err).Msg("trial reminder run failed")
			}
		}
	}
}

func (w *TrialReminderWorker) run(ctx context.Context) error {
	orgs, err := w.orgRepo.List(ctx, &model.OrganizationFilters{
		Status: string(model.OrganizationStatusActive),
	})
	if err != nil {
		return err
	}

	for _, org := range orgs {
		if org.SubscriptionStatus != plan.StatusTrialing || org.TrialEndsAt == nil {
			continue
		}
		if daysLeft(*org.TrialEndsAt, w.now()) != w.remindAt {
			continue
		}
		w.notify(ctx, org)
	}
	return nil
}

func (w *TrialReminderWorker) notify(ctx context.Context, org *model.Organization) {
	owners, err := w.userRepo.List(ctx, &model.UserFilters{
		OrganizationID: org.ID,
		Role:           model.RoleOwner,
	})
	if err != nil || len(owners) == 0 {
		log.Warn().Err(err).Str("organization_id", org.ID.String()).Msg("no owner for trial reminder")
		return
	}

	if err := w.emailSvc.SendTrialEnding(ctx, owners[0].Email, org.Name, w.remindAt); err != nil {
		log.Warn().Err(err).Str("organization_id", org.ID.String()).Msg("failed to send trial reminder")
		return
	}
	log.Info().Str("organization_id", org.ID.String()).Int("days_left", w.remindAt).Msg("trial reminder sent")
}

func daysLeft(trialEndsAt, now time.Time) int {
	remaining := trialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}
