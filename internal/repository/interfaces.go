package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/model"
)

// ErrLimitExceeded is returned by guarded creates when the count taken
// under lock has already reached the plan's cap.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// All repository interfaces in one file
type (
	OrganizationRepository interface {
		Create(ctx context.Context, org *model.Organization) error
		Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
		Update(ctx context.Context, org *model.Organization) error
		SoftDelete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.OrganizationFilters) ([]*model.Organization, error)
		GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Organization, error)
		ApplyBillingUpdate(ctx context.Context, update *model.BillingUpdate) error
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		SoftDelete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error)
		CountTeamMembers(ctx context.Context, orgID uuid.UUID) (int, error)
		// CreateTeamMemberWithinLimit inserts the user only if the
		// team-member count, taken while holding the organization row lock,
		// is below limit. A limit of -1 disables the cap.
		CreateTeamMemberWithinLimit(ctx context.Context, user *model.User, limit int) error
	}

	// BookingRepository has no delete: canceled bookings keep their row
	// and stay counted in the period meter (cancellation is an Update).
	BookingRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		Update(ctx context.Context, booking *model.Booking) error
		List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error)
		CountInPeriod(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int, error)
		// CreateWithinLimit inserts the booking only if the count of
		// bookings created in [periodStart, periodEnd), taken while holding
		// the organization row lock, is below limit. Locking the tenant row
		// serializes concurrent creates so two requests cannot jointly
		// overshoot the cap. A limit of -1 disables the cap.
		CreateWithinLimit(ctx context.Context, booking *model.Booking, limit int, periodStart, periodEnd time.Time) error
	}

	CampaignRepository interface {
		Create(ctx context.Context, campaign *model.Campaign) error
		Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
		Update(ctx context.Context, campaign *model.Campaign) error
		SoftDelete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, orgID uuid.UUID) ([]*model.Campaign, error)
		ConnectAdAccount(ctx context.Context, account *model.AdAccount) error
		ListAdAccounts(ctx context.Context, orgID uuid.UUID) ([]*model.AdAccount, error)
		DisconnectAdAccount(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
