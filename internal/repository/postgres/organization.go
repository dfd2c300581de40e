package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/repository"
)

type organizationRepository struct {
	db *sqlx.DB
}

func NewOrganizationRepository(db *sqlx.DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, status, subscription_status, trial_ends_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	org.ID = uuid.New()
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Status,
		org.SubscriptionStatus,
		org.TrialEndsAt,
		org.CreatedAt,
		org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE stripe_customer_id = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to get organization by customer ID: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, status = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	org.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		org.Name,
		org.Status,
		org.UpdatedAt,
		org.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	return checkAffected(result, "organization")
}

// ApplyBillingUpdate rewrites the subscription fields inside one
// statement. Webhooks are the only caller.
func (r *organizationRepository) ApplyBillingUpdate(ctx context.Context, update *model.BillingUpdate) error {
	query := `
		UPDATE organizations
		SET stripe_customer_id = COALESCE($1, stripe_customer_id),
		    stripe_price_id = $2,
		    subscription_status = $3,
		    trial_ends_at = $4,
		    subscription_ends_at = $5,
		    updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		update.StripeCustomerID,
		update.StripePriceID,
		update.SubscriptionStatus,
		update.TrialEndsAt,
		update.SubscriptionEndsAt,
		time.Now(),
		update.OrganizationID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply billing update: %w", err)
	}

	return checkAffected(result, "organization")
}

func (r *organizationRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE organizations
		SET deleted_at = $1, status = $2, updated_at = $1
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), model.OrganizationStatusInactive, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	return checkAffected(result, "organization")
}

func (r *organizationRepository) List(ctx context.Context, filters *model.OrganizationFilters) ([]*model.Organization, error) {
	query := `
		SELECT * FROM organizations
		WHERE deleted_at IS NULL
		AND ($1 = '' OR status = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY created_at DESC
	`
	var orgs []*model.Organization
	err := r.db.SelectContext(ctx, &orgs, query, filters.Status, filters.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

func checkAffected(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found", resource)
	}
	return nil
}
