package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/repository"
	"github.com/servicehq/platform-api/internal/plan"
)

func newMockRepo(t *testing.T) (repository.BookingRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBookingRepository(sqlx.NewDb(db, "postgres")), mock
}

func testBooking(orgID uuid.UUID) *model.Booking {
	return &model.Booking{
		OrganizationID: orgID,
		CustomerID:     uuid.New(),
		ServiceType:    "deep_clean",
		Status:         model.BookingStatusScheduled,
		StartTime:      time.Now().Add(24 * time.Hour),
		EndTime:        time.Now().Add(26 * time.Hour),
		Address:        "42 Main St",
	}
}

func TestCreateWithinLimitLocksOrgThenInserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := uuid.New()
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM organizations WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orgID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs(orgID, periodStart, periodEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(199))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithinLimit(context.Background(), testBooking(orgID), 200, periodStart, periodEnd)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithinLimitRejectsAtCap(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := uuid.New()
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM organizations WHERE id = \$1 AND deleted_at IS NULL FOR UPDATE`).
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(orgID.String()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs(orgID, periodStart, periodEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(200))
	mock.ExpectRollback()

	err := repo.CreateWithinLimit(context.Background(), testBooking(orgID), 200, periodStart, periodEnd)
	assert.ErrorIs(t, err, repository.ErrLimitExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Unlimited tiers skip the lock and count entirely.
func TestCreateWithinLimitUnlimitedSkipsGuard(t *testing.T) {
	repo, mock := newMockRepo(t)
	orgID := uuid.New()
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateWithinLimit(context.Background(), testBooking(orgID), plan.Unlimited, periodStart, periodEnd)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
