package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/repository"
)

type bookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) repository.BookingRepository {
	return &bookingRepository{db: db}
}

// CreateWithinLimit serializes booking creation per organization by taking
// the tenant row lock before counting. The count and the insert commit
// atomically, so the monthly cap cannot be overshot by concurrent
// requests racing the check.
func (r *bookingRepository) CreateWithinLimit(ctx context.Context, booking *model.Booking, limit int, periodStart, periodEnd time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if limit >= 0 {
		var orgID uuid.UUID
		lockQuery := `SELECT id FROM organizations WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
		if err := tx.GetContext(ctx, &orgID, lockQuery, booking.OrganizationID); err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}

		var count int
		countQuery := `
			SELECT COUNT(*) FROM bookings
			WHERE organization_id = $1 AND created_at >= $2 AND created_at < $3
			AND deleted_at IS NULL
		`
		if err := tx.GetContext(ctx, &count, countQuery, booking.OrganizationID, periodStart, periodEnd); err != nil {
			return fmt.Errorf("failed to count bookings: %w", err)
		}
		if count >= limit {
			return repository.ErrLimitExceeded
		}
	}

	booking.ID = uuid.New()
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	insertQuery := `
		INSERT INTO bookings (
			id, organization_id, customer_id, assignee_id, service_type,
			status, start_time, end_time, address, notes, price_cents,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		booking.ID,
		booking.OrganizationID,
		booking.CustomerID,
		booking.AssigneeID,
		booking.ServiceType,
		booking.Status,
		booking.StartTime,
		booking.EndTime,
		booking.Address,
		booking.Notes,
		booking.PriceCents,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return tx.Commit()
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT * FROM bookings WHERE id = $1 AND deleted_at IS NULL`
	var booking model.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET assignee_id = $1, status = $2, start_time = $3, end_time = $4,
		    notes = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`
	booking.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		booking.AssigneeID,
		booking.Status,
		booking.StartTime,
		booking.EndTime,
		booking.Notes,
		booking.UpdatedAt,
		booking.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	return checkAffected(result, "booking")
}

func (r *bookingRepository) List(ctx context.Context, filters *model.BookingFilters) ([]*model.Booking, error) {
	query := `
		SELECT * FROM bookings
		WHERE organization_id = $1 AND deleted_at IS NULL
		AND ($2::uuid IS NULL OR customer_id = $2)
		AND ($3 = '' OR status = $3)
		AND ($4::timestamptz IS NULL OR start_time >= $4)
		AND ($5::timestamptz IS NULL OR start_time < $5)
		ORDER BY start_time DESC
	`
	var customerID interface{}
	if filters.CustomerID != uuid.Nil {
		customerID = filters.CustomerID
	}
	var startDate, endDate interface{}
	if !filters.StartDate.IsZero() {
		startDate = filters.StartDate
	}
	if !filters.EndDate.IsZero() {
		endDate = filters.EndDate
	}

	var bookings []*model.Booking
	err := r.db.SelectContext(ctx, &bookings, query,
		filters.OrganizationID, customerID, filters.Status, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountInPeriod(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE organization_id = $1 AND created_at >= $2 AND created_at < $3
		AND deleted_at IS NULL
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, orgID, start, end); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
