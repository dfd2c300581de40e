package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/servicehq/platform-api/internal/config"
	"github.com/servicehq/platform-api/internal/model"
	"github.com/servicehq/platform-api/internal/plan"
	"github.com/servicehq/platform-api/internal/repository"
	apperrors "github.com/servicehq/platform-api/pkg/errors"
	"github.com/servicehq/platform-api/pkg/security"
)

var ErrTokenGeneration = errors.New("failed to generate token")

const (
	defaultTokenExpiry        = 24 * time.Hour
	defaultRefreshTokenExpiry = 7 * 24 * time.Hour

	// New organizations start on a full-featured trial.
	trialDuration = 14 * 24 * time.Hour
)

type Servicer interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.TokenResponse, error)
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error)
}

type Service struct {
	userRepo repository.UserRepository
	orgRepo  repository.OrganizationRepository
	hasher   security.PasswordHasher
	cfg      config.JWTConfig
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, orgRepo repository.OrganizationRepository,
	hasher security.PasswordHasher, cfg config.JWTConfig) *Service {
	return &Service{
		userRepo: userRepo,
		orgRepo:  orgRepo,
		hasher:   hasher,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Signup creates a new organization with its owner account. The
// organization starts trialing with no price attached, which resolves to
// the highest tier until the trial ends.
func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.TokenResponse, error) {
	if existing, _ := s.userRepo.GetByEmail(ctx, req.Email); existing != nil {
		return nil, apperrors.BadRequest("email already registered", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	now := s.now()
	trialEnd := now.Add(trialDuration)

	org := &model.Organization{
		Base:               model.Base{ID: uuid.New()},
		Name:               req.OrganizationName,
		Status:             string(model.OrganizationStatusActive),
		SubscriptionStatus: plan.StatusTrialing,
		TrialEndsAt:        &trialEnd,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	user := &model.User{
		Base:           model.Base{ID: uuid.New()},
		OrganizationID: org.ID,
		Email:          req.Email,
		Name:           req.Name,
		PasswordHash:   hash,
		Role:           model.RoleOwner,
		Status:         model.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create owner account: %w", err)
	}

	log.Info().
		Str("organization_id", org.ID.String()).
		Str("user_id", user.ID.String()).
		Time("trial_ends_at", trialEnd).
		Msg("organization signed up")

	return s.generateTokens(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to update login timestamp")
	}

	return s.generateTokens(user)
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.parseToken(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	// Re-read the user so revoked accounts and role changes take effect on
	// the next refresh, not the next login.
	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return s.generateTokens(user)
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*model.TokenClaims, error) {
	return s.parseToken(token, s.cfg.Secret)
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.signToken(user, s.cfg.Secret, s.tokenExpiry())
	if err != nil {
		return nil, ErrTokenGeneration
	}

	refresh, err := s.signToken(user, s.cfg.RefreshSecret, s.refreshTokenExpiry())
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) signToken(user *model.User, secret string, expiry time.Duration) (string, error) {
	now := s.now()
	claims := &model.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Role:           user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *Service) parseToken(tokenString, secret string) (*model.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*model.TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == uuid.Nil || claims.OrganizationID == uuid.Nil {
		return nil, errors.New("token missing identity claims")
	}
	return claims, nil
}

func (s *Service) tokenExpiry() time.Duration {
	if s.cfg.ExpiryHours > 0 {
		return time.Duration(s.cfg.ExpiryHours) * time.Hour
	}
	return defaultTokenExpiry
}

func (s *Service) refreshTokenExpiry() time.Duration {
	if s.cfg.RefreshExpiryHours > 0 {
		return time.Duration(s.cfg.RefreshExpiryHours) * time.Hour
	}
	return defaultRefreshTokenExpiry
}
