package entitlement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*model.Organization
}

func (f *fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	if org, ok := f.orgs[id]; ok {
		return org, nil
	}
	return nil, fmt.Errorf("organization not found")
}

func (f *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error { return nil }
func (f *fakeOrgRepo) Update(ctx context.Context, org *model.Organization) error { return nil }
func (f *fakeOrgRepo) SoftDelete(ctx context.Context, id uuid.UUID) error        { return nil }
func (f *fakeOrgRepo) List(ctx context.Context, filters *model.OrganizationFilters) ([]*model.Organization, error) {
	return nil, nil
}
func (f *fakeOrgRepo) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Organization, error) {
	return nil, fmt.Errorf("organization not found")
}
func (f *fakeOrgRepo) ApplyBillingUpdate(ctx context.Context, update *model.BillingUpdate) error {
	return nil
}

type fakeUserRepo struct {
	teamCount int
}

func (f *fakeUserRepo) CountTeamMembers(ctx context.Context, orgID uuid.UUID) (int, error) {
	return f.teamCount, nil
}
func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error { return nil }
func (f *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, fmt.Errorf("user not found")
}
func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, fmt.Errorf("user not found")
}
func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error { return nil }
func (f *fakeUserRepo) SoftDelete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeUserRepo) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) CreateTeamMemberWithinLimit(ctx context.Context, user *model.User, limit int) error {
	return nil
}

type fakeBookingRepo struct {
	count      int
	countCalls int
}

func (f *fakeBookingRepo) CountInPeriod(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int, error) {
	f.countCalls++
	return f.count, nil
}
func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return nil, fmt.Errorf("booking not found")
}
func (f *fakeBookingRepo) Update(ctx context.Context, booking *model.Booking) error { return nil }
func (f *fakeBookingRepo) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return nil, nil
}
func (f *fakeBookingRepo) CreateWithinLimit(ctx context.Context, booking *model.Booking, limit int, periodStart, periodEnd time.Time) error {
	return nil
}

type fixture struct {
	svc      *Service
	orgRepo  *fakeOrgRepo
	users    *fakeUserRepo
	bookings *fakeBookingRepo
	orgID    uuid.UUID
}

func newFixture(t *testing.T, org *model.Organization) *fixture {
	t.Helper()
	orgID := uuid.New()
	org.ID = orgID

	orgRepo := &fakeOrgRepo{orgs: map[uuid.UUID]*model.Organization{orgID: org}}
	users := &fakeUserRepo{}
	bookings := &fakeBookingRepo{}

	// One pinned clock for the service and the resolver, so trial-window
	// resolution is deterministic.
	clock := func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	resolver := plan.NewResolver(map[string]plan.Tier{
		"price_starter": plan.TierStarter,
		"price_growth":  plan.TierGrowth,
		"price_premium": plan.TierPremium,
	}, nil, plan.WithNow(clock))

	svc := NewService(orgRepo, users, bookings, resolver, time.Minute, time.Minute, nil)
	svc.now = clock

	return &fixture{svc: svc, orgRepo: orgRepo, users: users, bookings: bookings, orgID: orgID}
}

func strPtr(s string) *string { return &s }

func activeOrg(priceID string) *model.Organization {
	return &model.Organization{
		Name:               "Sparkle Cleaners",
		Status:             string(model.OrganizationStatusActive),
		StripePriceID:      strPtr(priceID),
		SubscriptionStatus: plan.StatusActive,
	}
}

func TestPeriodBoundsCalendarMonthUTC(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))

	start, end := f.svc.PeriodBounds(time.Date(2025, 6, 15, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), end)

	// A local time already in the next UTC month meters against that month.
	start, _ = f.svc.PeriodBounds(time.Date(2025, 6, 30, 23, 30, 0, 0, time.FixedZone("CET", 2*3600)))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestCurrentUsageUnderLimit(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	f.bookings.count = 150

	usage, err := f.svc.CurrentUsage(context.Background(), f.orgID, plan.MetricBookings)
	require.NoError(t, err)
	assert.Equal(t, 150, usage.Current)
	assert.Equal(t, 200, usage.Limit)
	assert.True(t, usage.CanAddMore)
}

func TestCurrentUsageAtLimit(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	f.bookings.count = 200

	usage, err := f.svc.CurrentUsage(context.Background(), f.orgID, plan.MetricBookings)
	require.NoError(t, err)
	assert.False(t, usage.CanAddMore)
}

func TestCurrentUsageUnlimitedTier(t *testing.T) {
	f := newFixture(t, activeOrg("price_premium"))
	f.bookings.count = 100000

	usage, err := f.svc.CurrentUsage(context.Background(), f.orgID, plan.MetricBookings)
	require.NoError(t, err)
	assert.Equal(t, plan.Unlimited, usage.Limit)
	assert.True(t, usage.CanAddMore)
}

func TestCurrentUsageTeamMembers(t *testing.T) {
	f := newFixture(t, activeOrg("price_starter"))
	f.users.teamCount = 5

	usage, err := f.svc.CurrentUsage(context.Background(), f.orgID, plan.MetricTeamMembers)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.Current)
	assert.Equal(t, 5, usage.Limit)
	assert.False(t, usage.CanAddMore)
}

// Unknown organizations get a zeroed usage with no access, never
// unlimited access.
func TestCurrentUsageUnknownOrg(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))

	usage, err := f.svc.CurrentUsage(context.Background(), uuid.New(), plan.MetricBookings)
	require.NoError(t, err)
	assert.Zero(t, usage.Current)
	assert.Zero(t, usage.Limit)
	assert.False(t, usage.CanAddMore)
}

func TestCheckFeatureLicensed(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	assert.NoError(t, f.svc.CheckFeature(context.Background(), f.orgID, plan.FeatureMarketingTools))
}

func TestCheckFeatureNotLicensed(t *testing.T) {
	f := newFixture(t, activeOrg("price_starter"))

	err := f.svc.CheckFeature(context.Background(), f.orgID, plan.FeatureAds)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrFeatureNotLicensed, appErr.Code)
	assert.Equal(t, string(plan.TierPremium), appErr.Details["required_tier"])
	assert.Equal(t, string(plan.TierStarter), appErr.Details["current_tier"])
}

// Non-payment degrades the effective tier, denying paid features even
// though the price ID still maps to premium.
func TestCheckFeaturePastDueDegrades(t *testing.T) {
	org := activeOrg("price_premium")
	org.SubscriptionStatus = plan.StatusPastDue
	f := newFixture(t, org)

	err := f.svc.CheckFeature(context.Background(), f.orgID, plan.FeatureAds)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrFeatureNotLicensed, appErr.Code)
	assert.Equal(t, string(plan.TierFree), appErr.Details["current_tier"])
}

func TestCheckFeatureUnknownOrg(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))

	err := f.svc.CheckFeature(context.Background(), uuid.New(), plan.FeatureAds)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNoOrganization, appErr.Code)
}

// A usage check for a missing tenant reports the missing tenant, not a
// zeroed cap hit: the two denials must stay distinguishable.
func TestCheckUsageUnknownOrg(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))

	err := f.svc.CheckUsage(context.Background(), uuid.New(), plan.MetricBookings)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrNoOrganization, appErr.Code)
}

func TestCheckUsageExceeded(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	f.bookings.count = 200

	err := f.svc.CheckUsage(context.Background(), f.orgID, plan.MetricBookings)
	require.Error(t, err)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUsageLimitExceeded, appErr.Code)
	assert.Equal(t, 200, appErr.Details["current"])
	assert.Equal(t, 200, appErr.Details["limit"])
}

// Checks are idempotent: re-running with no state change yields the same
// decision.
func TestCheckUsageIdempotent(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	f.bookings.count = 199

	assert.NoError(t, f.svc.CheckUsage(context.Background(), f.orgID, plan.MetricBookings))
	assert.NoError(t, f.svc.CheckUsage(context.Background(), f.orgID, plan.MetricBookings))
}

func TestSnapshotCachesUntilInvalidated(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))
	f.bookings.count = 10

	snap, err := f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	assert.Equal(t, string(plan.TierGrowth), snap.Tier)
	assert.Equal(t, 1, f.bookings.countCalls)

	// Second read is served from cache.
	_, err = f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.bookings.countCalls)

	// Invalidation (what the billing webhook does) forces a recompute.
	f.svc.InvalidateSnapshot(f.orgID)
	_, err = f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.bookings.countCalls)
}

func TestSnapshotRefreshBypassesCache(t *testing.T) {
	f := newFixture(t, activeOrg("price_growth"))

	_, err := f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	_, err = f.svc.Snapshot(context.Background(), f.orgID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.bookings.countCalls)
}

func TestSnapshotTrialOrg(t *testing.T) {
	trialEnd := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	org := &model.Organization{
		Name:               "Fresh Start Plumbing",
		Status:             string(model.OrganizationStatusActive),
		SubscriptionStatus: plan.StatusTrialing,
		TrialEndsAt:        &trialEnd,
	}
	f := newFixture(t, org)

	snap, err := f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	assert.Equal(t, string(plan.TierPremium), snap.Tier)
	require.NotNil(t, snap.TrialEndsAt)
	assert.Equal(t, trialEnd, *snap.TrialEndsAt)
}

func TestSnapshotTrialExpired(t *testing.T) {
	trialEnd := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	org := &model.Organization{
		Name:               "Fresh Start Plumbing",
		Status:             string(model.OrganizationStatusActive),
		SubscriptionStatus: plan.StatusTrialing,
		TrialEndsAt:        &trialEnd,
	}
	f := newFixture(t, org)

	snap, err := f.svc.Snapshot(context.Background(), f.orgID, false)
	require.NoError(t, err)
	assert.Equal(t, string(plan.TierFree), snap.Tier)
}
