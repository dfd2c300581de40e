package organization

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/repository"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type Servicer interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateOrganizationRequest) (*model.Organization, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo repository.OrganizationRepository
}

func NewService(repo repository.OrganizationRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NoOrganization(err)
	}
	return org, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateOrganizationRequest) (*model.Organization, error) {
	org, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Status != nil {
		org.Status = *req.Status
	}

	if err := s.repo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return org, nil
}

// Deactivate soft-deletes the tenant. Data stays; the account simply
// stops resolving, which fails every gated request closed.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}
	return nil
}
