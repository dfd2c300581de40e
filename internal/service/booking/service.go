package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	"github.com/servicehq/platform-api/internal/service/entitlement"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type Servicer interface {
	Create(ctx context.Context, orgID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Booking, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req *model.UpdateBookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, orgID, id uuid.UUID) error
	List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
}

type Service struct {
	repo         repository.BookingRepository
	entitlements entitlement.Servicer
	now          func() time.Time
}

func NewService(repo repository.BookingRepository, entitlements entitlement.Servicer) *Service {
	return &Service{
		repo:         repo,
		entitlements: entitlements,
		now:          time.Now,
	}
}

// Create inserts a booking subject to the tier's monthly allowance. The
// middleware has already fast-failed obviously over-limit requests; the
// repository re-checks the count under the organization row lock so two
// concurrent creates cannot jointly pass a last-slot check.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error) {
	tier, _, err := s.entitlements.ResolveTier(ctx, orgID)
	if err != nil {
		return nil, err
	}
	limit := plan.LimitFor(tier, plan.MetricBookings)
	periodStart, periodEnd := s.entitlements.PeriodBounds(s.now())

	booking := &model.Booking{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		CustomerID:     req.CustomerID,
		AssigneeID:     req.AssigneeID,
		ServiceType:    req.ServiceType,
		Status:         model.BookingStatusScheduled,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Address:        req.Address,
		Notes:          req.Notes,
		PriceCents:     req.PriceCents,
	}

	err = s.repo.CreateWithinLimit(ctx, booking, limit, periodStart, periodEnd)
	if errors.Is(err, repository.ErrLimitExceeded) {
		log.Info().
			Str("organization_id", orgID.String()).
			Str("tier", string(tier)).
			Int("limit", limit).
			Msg("booking creation rejected at cap")
		return nil, apperrors.UsageLimitExceeded(string(plan.MetricBookings), limit, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return booking, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("booking", err)
	}
	if booking.OrganizationID != orgID {
		return nil, apperrors.NotFound("booking", nil)
	}
	return booking, nil
}

func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req *model.UpdateBookingRequest) (*model.Booking, error) {
	booking, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.AssigneeID != nil {
		booking.AssigneeID = req.AssigneeID
	}
	if req.Status != nil {
		booking.Status = *req.Status
	}
	if req.StartTime != nil {
		booking.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		booking.EndTime = *req.EndTime
	}
	if req.Notes != nil {
		booking.Notes = req.Notes
	}
	if booking.EndTime.Before(booking.StartTime) {
		return nil, apperrors.BadRequest("end time before start time", nil)
	}

	if err := s.repo.Update(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	return booking, nil
}

// Cancel marks the booking canceled. Canceled bookings still count
// against the period's allowance; the meter counts creations, not
// outcomes.
func (s *Service) Cancel(ctx context.Context, orgID, id uuid.UUID) error {
	booking, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	booking.Status = model.BookingStatusCanceled
	if err := s.repo.Update(ctx, booking); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	return s.repo.List(ctx, filters)
}
