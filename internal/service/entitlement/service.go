package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
	"github.com/servicehq/platform-api/pkg/metrics"
)

// Servicer answers entitlement questions for the gating middleware and
// the snapshot endpoint. All checks are snapshot reads: nothing here
// writes, so a check can be re-run idempotently.
type Servicer interface {
	ResolveTier(ctx context.Context, orgID uuid.UUID) (plan.Tier, *model.Organization, error)
	CheckFeature(ctx context.Context, orgID uuid.UUID, feature plan.Feature) error
	CurrentUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) (model.Usage, error)
	CheckUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) error
	Snapshot(ctx context.Context, orgID uuid.UUID, refresh bool) (*model.EntitlementSnapshot, error)
	InvalidateSnapshot(orgID uuid.UUID)
	PeriodBounds(at time.Time) (start, end time.Time)
}

type Service struct {
	orgRepo     repository.OrganizationRepository
	userRepo    repository.UserRepository
	bookingRepo repository.BookingRepository
	resolver    *plan.Resolver

	// snapshots is a convenience cache for the read-only snapshot
	// endpoint. Gating checks never read it: they hit the database every
	// time so a stale cache can never widen access. Entries are dropped
	// on TTL and explicitly whenever a billing webhook lands.
	snapshots   *gocache.Cache
	snapshotTTL time.Duration

	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	bookingRepo repository.BookingRepository,
	resolver *plan.Resolver,
	snapshotTTL, cleanupInterval time.Duration,
	m *metrics.Metrics,
) *Service {
	return &Service{
		orgRepo:     orgRepo,
		userRepo:    userRepo,
		bookingRepo: bookingRepo,
		resolver:    resolver,
		snapshots:   gocache.New(snapshotTTL, cleanupInterval),
		snapshotTTL: snapshotTTL,
		metrics:     m,
		now:         time.Now,
	}
}

// PeriodBounds returns the current billing period. Periods are calendar
// months in UTC, uniformly for every organization; subscription
// anniversaries do not move the metering window.
func (s *Service) PeriodBounds(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ResolveTier loads the organization and derives its effective tier.
func (s *Service) ResolveTier(ctx context.Context, orgID uuid.UUID) (plan.Tier, *model.Organization, error) {
	org, err := s.orgRepo.Get(ctx, orgID)
	if err != nil {
		return plan.LowestTier, nil, apperrors.NoOrganization(err)
	}

	tier := s.resolver.Resolve(plan.Subscription{
		PriceID:     org.PriceID(),
		Status:      org.SubscriptionStatus,
		TrialEndsAt: org.TrialEndsAt,
	})
	return tier, org, nil
}

// CheckFeature returns nil when the organization's tier licenses the
// feature, or a FeatureNotLicensed error carrying the tier to upgrade to.
func (s *Service) CheckFeature(ctx context.Context, orgID uuid.UUID, feature plan.Feature) error {
	tier, _, err := s.ResolveTier(ctx, orgID)
	if err != nil {
		return err
	}

	if plan.HasFeature(tier, feature) {
		return nil
	}

	required, ok := plan.RequiredTierFor(feature)
	if !ok {
		return apperrors.FeatureNotLicensed(string(feature), string(tier), "")
	}
	return apperrors.FeatureNotLicensed(string(feature), string(tier), string(required))
}

// CurrentUsage computes consumption of a metered resource against the
// plan's cap. An organization that cannot be loaded yields a zeroed
// usage with CanAddMore=false: unknown tenants get no access, never
// unlimited access.
func (s *Service) CurrentUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) (model.Usage, error) {
	tier, _, err := s.ResolveTier(ctx, orgID)
	if err != nil {
		return model.Usage{Metric: string(metric)}, nil
	}
	return s.usageForTier(ctx, orgID, tier, metric)
}

func (s *Service) usageForTier(ctx context.Context, orgID uuid.UUID, tier plan.Tier, metric plan.UsageMetric) (model.Usage, error) {
	limit := plan.LimitFor(tier, metric)

	var current int
	var err error
	switch metric {
	case plan.MetricBookings:
		start, end := s.PeriodBounds(s.now())
		current, err = s.bookingRepo.CountInPeriod(ctx, orgID, start, end)
	case plan.MetricTeamMembers:
		current, err = s.userRepo.CountTeamMembers(ctx, orgID)
	default:
		return model.Usage{Metric: string(metric)}, fmt.Errorf("unknown usage metric %q", metric)
	}
	if err != nil {
		return model.Usage{Metric: string(metric)}, fmt.Errorf("failed to compute %s usage: %w", metric, err)
	}

	return model.Usage{
		Metric:     string(metric),
		Current:    current,
		Limit:      limit,
		CanAddMore: limit == plan.Unlimited || current < limit,
	}, nil
}

// CheckUsage returns nil when the organization can consume one more unit
// of the metric, or a UsageLimitExceeded error with the current count and
// cap. The organization is resolved first, so a missing tenant surfaces
// as NoOrganization rather than a zeroed cap hit.
func (s *Service) CheckUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) error {
	tier, _, err := s.ResolveTier(ctx, orgID)
	if err != nil {
		return err
	}

	usage, err := s.usageForTier(ctx, orgID, tier, metric)
	if err != nil {
		return apperrors.Internal(err)
	}
	if usage.CanAddMore {
		return nil
	}
	return apperrors.UsageLimitExceeded(usage.Metric, usage.Current, usage.Limit)
}

// Snapshot assembles the client-facing entitlement view. Pass refresh to
// bypass the cache (the client SDK's explicit Refresh).
func (s *Service) Snapshot(ctx context.Context, orgID uuid.UUID, refresh bool) (*model.EntitlementSnapshot, error) {
	key := orgID.String()

	if !refresh {
		if cached, ok := s.snapshots.Get(key); ok {
			if s.metrics != nil {
				s.metrics.SnapshotCacheHits.Inc()
			}
			return cached.(*model.EntitlementSnapshot), nil
		}
	}
	if s.metrics != nil {
		s.metrics.SnapshotCacheMisses.Inc()
	}

	tier, org, err := s.ResolveTier(ctx, orgID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.CurrentUsage(ctx, orgID, plan.MetricBookings)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	teamMembers, err := s.CurrentUsage(ctx, orgID, plan.MetricTeamMembers)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	features := plan.Catalog(tier).Features
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}

	snapshot := &model.EntitlementSnapshot{
		OrganizationID:     org.ID.String(),
		Tier:               string(tier),
		Features:           names,
		Bookings:           bookings,
		TeamMembers:        teamMembers,
		SubscriptionStatus: org.SubscriptionStatus,
		TrialEndsAt:        org.TrialEndsAt,
		GeneratedAt:        s.now(),
	}

	s.snapshots.Set(key, snapshot, s.snapshotTTL)
	return snapshot, nil
}

// InvalidateSnapshot drops the cached snapshot for an organization. The
// billing service calls this on every webhook that touches plan fields.
func (s *Service) InvalidateSnapshot(orgID uuid.UUID) {
	s.snapshots.Delete(orgID.String())
}
