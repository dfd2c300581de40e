package team

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/email"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	"github.com/servicehq/platform-api/internal/service/entitlement"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type Servicer interface {
	Invite(ctx context.Context, orgID uuid.UUID, req *model.InviteTeamMemberRequest) (*model.User, error)
	List(ctx context.Context, orgID uuid.UUID) ([]*model.User, error)
	Remove(ctx context.Context, orgID, userID uuid.UUID) error
}

type Service struct {
	userRepo     repository.UserRepository
	entitlements entitlement.Servicer
	emailSvc     email.Service
}

func NewService(userRepo repository.UserRepository, entitlements entitlement.Servicer, emailSvc email.Service) *Service {
	return &Service{
		userRepo:     userRepo,
		entitlements: entitlements,
		emailSvc:     emailSvc,
	}
}

// Invite adds a team member subject to the tier's seat limit. The count
// is re-taken under the organization row lock inside the repository, so
// concurrent invites cannot both claim the last seat.
func (s *Service) Invite(ctx context.Context, orgID uuid.UUID, req *model.InviteTeamMemberRequest) (*model.User, error) {
	if existing, _ := s.userRepo.GetByEmail(ctx, req.Email); existing != nil {
		return nil, apperrors.BadRequest("email already registered", nil)
	}

	tier, _, err := s.entitlements.ResolveTier(ctx, orgID)
	if err != nil {
		return nil, err
	}
	limit := plan.LimitFor(tier, plan.MetricTeamMembers)

	user := &model.User{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		Status:         model.UserStatusPending,
	}

	err = s.userRepo.CreateTeamMemberWithinLimit(ctx, user, limit)
	if errors.Is(err, repository.ErrLimitExceeded) {
		log.Info().
			Str("organization_id", orgID.String()).
			Str("tier", string(tier)).
			Int("limit", limit).
			Msg("team invite rejected at seat limit")
		return nil, apperrors.UsageLimitExceeded(string(plan.MetricTeamMembers), limit, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create team member: %w", err)
	}

	if err := s.emailSvc.SendWelcome(ctx, user.Email, user.Name); err != nil {
		log.Warn().Err(err).Str("email", user.Email).Msg("failed to send invite email")
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx, &model.UserFilters{OrganizationID: orgID})
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	members := make([]*model.User, 0, len(users))
	for _, u := range users {
		if u.IsTeamMember() {
			members = append(members, u)
		}
	}
	return members, nil
}

// Remove soft-deletes a team member, freeing their seat. The owner seat
// cannot be removed.
func (s *Service) Remove(ctx context.Context, orgID, userID uuid.UUID) error {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return apperrors.NotFound("team member", err)
	}
	if user.OrganizationID != orgID {
		return apperrors.NotFound("team member", nil)
	}
	if user.Role == model.RoleOwner {
		return apperrors.BadRequest("cannot remove the organization owner", nil)
	}

	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		return fmt.Errorf("failed to remove team member: %w", err)
	}
	return nil
}
