package campaign

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/repository"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

// Servicer manages marketing campaigns and ad account links. Feature
// gating happens in the middleware chain, not here: by the time a call
// lands the tier has already been checked.
type Servicer interface {
	Create(ctx context.Context, orgID uuid.UUID, req *model.CreateCampaignRequest) (*model.Campaign, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req *model.UpdateCampaignRequest) (*model.Campaign, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	List(ctx context.Context, orgID uuid.UUID) ([]*model.Campaign, error)

	ConnectAdAccount(ctx context.Context, orgID uuid.UUID, req *model.ConnectAdAccountRequest) (*model.AdAccount, error)
	ListAdAccounts(ctx context.Context, orgID uuid.UUID) ([]*model.AdAccount, error)
	DisconnectAdAccount(ctx context.Context, orgID, id uuid.UUID) error
}

type Service struct {
	repo repository.CampaignRepository
}

func NewService(repo repository.CampaignRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, orgID uuid.UUID, req *model.CreateCampaignRequest) (*model.Campaign, error) {
	status := model.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = model.CampaignStatusScheduled
	}

	campaign := &model.Campaign{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Name:           req.Name,
		Channel:        req.Channel,
		Status:         status,
		Subject:        req.Subject,
		Body:           req.Body,
		ScheduledAt:    req.ScheduledAt,
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NotFound("campaign", err)
	}
	if campaign.OrganizationID != orgID {
		return nil, apperrors.NotFound("campaign", nil)
	}
	return campaign, nil
}

func (s *Service) Update(ctx context.Context, orgID, id uuid.UUID, req *model.UpdateCampaignRequest) (*model.Campaign, error) {
	campaign, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Status != nil {
		campaign.Status = *req.Status
	}
	if req.Subject != nil {
		campaign.Subject = req.Subject
	}
	if req.Body != nil {
		campaign.Body = req.Body
	}
	if req.ScheduledAt != nil {
		campaign.ScheduledAt = req.ScheduledAt
	}

	if err := s.repo.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	return campaign, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*model.Campaign, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) ConnectAdAccount(ctx context.Context, orgID uuid.UUID, req *model.ConnectAdAccountRequest) (*model.AdAccount, error) {
	account := &model.AdAccount{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Platform:       req.Platform,
		ExternalID:     req.ExternalID,
		DisplayName:    req.DisplayName,
		Connected:      true,
	}

	if err := s.repo.ConnectAdAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to connect ad account: %w", err)
	}
	return account, nil
}

func (s *Service) ListAdAccounts(ctx context.Context, orgID uuid.UUID) ([]*model.AdAccount, error) {
	return s.repo.ListAdAccounts(ctx, orgID)
}

func (s *Service) DisconnectAdAccount(ctx context.Context, orgID, id uuid.UUID) error {
	accounts, err := s.repo.ListAdAccounts(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list ad accounts: %w", err)
	}
	for _, a := range accounts {
		if a.ID == id {
			return s.repo.DisconnectAdAccount(ctx, id)
		}
	}
	return apperrors.NotFound("ad account", nil)
}
