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

type campaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) repository.CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, organization_id, name, channel, status, subject, body,
			scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	campaign.ID = uuid.New()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		campaign.ID,
		campaign.OrganizationID,
		campaign.Name,
		campaign.Channel,
		campaign.Status,
		campaign.Subject,
		campaign.Body,
		campaign.ScheduledAt,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT * FROM campaigns WHERE id = $1 AND deleted_at IS NULL`
	var campaign model.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return &campaign, nil
}

func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $1, status = $2, subject = $3, body = $4,
		    scheduled_at = $5, updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
	`
	campaign.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		campaign.Name,
		campaign.Status,
		campaign.Subject,
		campaign.Body,
		campaign.ScheduledAt,
		campaign.UpdatedAt,
		campaign.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return checkAffected(result, "campaign")
}

func (r *campaignRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return checkAffected(result, "campaign")
}

func (r *campaignRepository) List(ctx context.Context, orgID uuid.UUID) ([]*model.Campaign, error) {
	query := `
		SELECT * FROM campaigns
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	var campaigns []*model.Campaign
	err := r.db.SelectContext(ctx, &campaigns, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *campaignRepository) ConnectAdAccount(ctx context.Context, account *model.AdAccount) error {
	query := `
		INSERT INTO ad_accounts (
			id, organization_id, platform, external_id, display_name,
			connected, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	account.ID = uuid.New()
	account.Connected = true
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.OrganizationID,
		account.Platform,
		account.ExternalID,
		account.DisplayName,
		account.Connected,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to connect ad account: %w", err)
	}
	return nil
}

func (r *campaignRepository) ListAdAccounts(ctx context.Context, orgID uuid.UUID) ([]*model.AdAccount, error) {
	query := `
		SELECT * FROM ad_accounts
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	var accounts []*model.AdAccount
	err := r.db.SelectContext(ctx, &accounts, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad accounts: %w", err)
	}
	return accounts, nil
}

func (r *campaignRepository) DisconnectAdAccount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE ad_accounts
		SET connected = false, deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to disconnect ad account: %w", err)
	}

	return checkAffected(result, "ad account")
}
