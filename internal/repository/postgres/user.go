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

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

const insertUserQuery = `
	INSERT INTO users (
		id, organization_id, email, name, password_hash, phone, role,
		status, email_verified, settings, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, insertUserQuery,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Phone,
		user.Role,
		user.Status,
		user.EmailVerified,
		user.Settings,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateTeamMemberWithinLimit takes the organization row lock before
// counting, so two concurrent invites cannot both observe count < limit
// and jointly exceed the cap.
func (r *userRepository) CreateTeamMemberWithinLimit(ctx context.Context, user *model.User, limit int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if limit >= 0 {
		var orgID uuid.UUID
		lockQuery := `SELECT id FROM organizations WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
		if err := tx.GetContext(ctx, &orgID, lockQuery, user.OrganizationID); err != nil {
			return fmt.Errorf("failed to lock organization: %w", err)
		}

		var count int
		countQuery := `
			SELECT COUNT(*) FROM users
			WHERE organization_id = $1 AND role != $2 AND deleted_at IS NULL
		`
		if err := tx.GetContext(ctx, &count, countQuery, user.OrganizationID, model.RoleCustomer); err != nil {
			return fmt.Errorf("failed to count team members: %w", err)
		}
		if count >= limit {
			return repository.ErrLimitExceeded
		}
	}

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err = tx.ExecContext(ctx, insertUserQuery,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Phone,
		user.Role,
		user.Status,
		user.EmailVerified,
		user.Settings,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create team member: %w", err)
	}

	return tx.Commit()
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1 AND deleted_at IS NULL`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM users WHERE email = $1 AND deleted_at IS NULL`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET name = $1, phone = $2, role = $3, status = $4, settings = $5,
		    last_login_at = $6, updated_at = $7
		WHERE id = $8 AND deleted_at IS NULL
	`
	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Phone,
		user.Role,
		user.Status,
		user.Settings,
		user.LastLoginAt,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return checkAffected(result, "user")
}

func (r *userRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET deleted_at = $1, status = $2, updated_at = $1
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), model.UserStatusInactive, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return checkAffected(result, "user")
}

func (r *userRepository) List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE organization_id = $1 AND deleted_at IS NULL
		AND ($2 = '' OR role = $2)
		AND ($3 = '' OR status = $3)
		AND ($4 = '' OR name ILIKE '%' || $4 || '%' OR email ILIKE '%' || $4 || '%')
		ORDER BY created_at ASC
	`
	var users []*model.User
	err := r.db.SelectContext(ctx, &users, query,
		filters.OrganizationID, filters.Role, filters.Status, filters.SearchTerm)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) CountTeamMembers(ctx context.Context, orgID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM users
		WHERE organization_id = $1 AND role != $2 AND deleted_at IS NULL
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, orgID, model.RoleCustomer); err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}
