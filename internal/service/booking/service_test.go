package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type fakeEntitlements struct {
	tier    plan.Tier
	tierErr error
}

func (f *fakeEntitlements) ResolveTier(ctx context.Context, orgID uuid.UUID) (plan.Tier, *model.Organization, error) {
	if f.tierErr != nil {
		return plan.LowestTier, nil, f.tierErr
	}
	return f.tier, &model.Organization{}, nil
}

func (f *fakeEntitlements) CheckFeature(ctx context.Context, orgID uuid.UUID, feature plan.Feature) error {
	return nil
}

func (f *fakeEntitlements) CurrentUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) (model.Usage, error) {
	return model.Usage{}, nil
}

func (f *fakeEntitlements) CheckUsage(ctx context.Context, orgID uuid.UUID, metric plan.UsageMetric) error {
	return nil
}

func (f *fakeEntitlements) Snapshot(ctx context.Context, orgID uuid.UUID, refresh bool) (*model.EntitlementSnapshot, error) {
	return nil, nil
}

func (f *fakeEntitlements) InvalidateSnapshot(orgID uuid.UUID) {}

func (f *fakeEntitlements) PeriodBounds(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type fakeBookingRepo struct {
	bookings map[uuid.UUID]*model.Booking

	lastLimit       int
	lastPeriodStart time.Time
	createErr       error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*model.Booking)}
}

func (f *fakeBookingRepo) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, errors.New("booking not found")
	}
	return b, nil
}

func (f *fakeBookingRepo) Update(ctx context.Context, booking *model.Booking) error {
	f.bookings[booking.ID] = booking
	return nil
}

func (f *fakeBookingRepo) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepo) CountInPeriod(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int, error) {
	return len(f.bookings), nil
}

func (f *fakeBookingRepo) CreateWithinLimit(ctx context.Context, booking *model.Booking, limit int, periodStart, periodEnd time.Time) error {
	f.lastLimit = limit
	f.lastPeriodStart = periodStart
	if f.createErr != nil {
		return f.createErr
	}
	f.bookings[booking.ID] = booking
	return nil
}

var _ repository.BookingRepository = (*fakeBookingRepo)(nil)

func createRequest() *model.CreateBookingRequest {
	start := time.Now().Add(24 * time.Hour)
	return &model.CreateBookingRequest{
		CustomerID:  uuid.New(),
		ServiceType: "drain_cleaning",
		StartTime:   start,
		EndTime:     start.Add(2 * time.Hour),
		Address:     "17 Elm St",
		PriceCents:  12500,
	}
}

func TestCreate_PassesTierLimitToRepo(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierStarter})

	booking, err := svc.Create(context.Background(), uuid.New(), createRequest())
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusScheduled, booking.Status)
	assert.Equal(t, plan.LimitFor(plan.TierStarter, plan.MetricBookings), repo.lastLimit)
	assert.Equal(t, 1, repo.lastPeriodStart.Day(), "period is calendar month")
}

func TestCreate_UnlimitedTier(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierPremium})

	_, err := svc.Create(context.Background(), uuid.New(), createRequest())
	require.NoError(t, err)
	assert.Equal(t, plan.Unlimited, repo.lastLimit)
}

func TestCreate_AtCap(t *testing.T) {
	repo := newFakeBookingRepo()
	repo.createErr = repository.ErrLimitExceeded
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierFree})

	_, err := svc.Create(context.Background(), uuid.New(), createRequest())

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "usage_limit_exceeded", appErr.Kind())
	assert.Equal(t, 20, appErr.Details["limit"])
}

func TestCreate_TierResolutionFails(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tierErr: apperrors.NoOrganization(errors.New("gone"))})

	_, err := svc.Create(context.Background(), uuid.New(), createRequest())
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "no_organization", appErr.Kind())
}

func TestGet_WrongTenant(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierGrowth})

	orgID := uuid.New()
	booking, err := svc.Create(context.Background(), orgID, createRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), booking.ID)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "not_found", appErr.Kind(), "cross-tenant reads look like missing rows")
}

func TestCancel_KeepsBookingCounted(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierGrowth})

	orgID := uuid.New()
	booking, err := svc.Create(context.Background(), orgID, createRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), orgID, booking.ID))

	got, err := svc.Get(context.Background(), orgID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCanceled, got.Status)

	count, err := repo.CountInPeriod(context.Background(), orgID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "canceled bookings still consume the allowance")
}

func TestUpdate_RejectsInvertedTimes(t *testing.T) {
	repo := newFakeBookingRepo()
	svc := NewService(repo, &fakeEntitlements{tier: plan.TierGrowth})

	orgID := uuid.New()
	booking, err := svc.Create(context.Background(), orgID, createRequest())
	require.NoError(t, err)

	badEnd := booking.StartTime.Add(-time.Hour)
	_, err = svc.Update(context.Background(), orgID, booking.ID, &model.UpdateBookingRequest{
		EndTime: &badEnd,
	})
	assert.Error(t, err)
}
