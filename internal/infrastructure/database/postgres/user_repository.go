package postgres

import (
	domainUser "account-service/internal/domain/user"
	"account-service/internal/infrastructure/database/postgres/models"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxListLimit = 100

// UserRepository implements user.Repository
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domainUser.User) error {
	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := r.db.conn(ctx).Create(toUserModel(u)).Error; err != nil {
		if isUniqueViolation(err) {
			return domainUser.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domainUser.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(email))
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domainUser.User, error) {
	return r.first(ctx, "id = ?", userID)
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*domainUser.User, error) {
	var dbModel models.UserModel
	err := r.db.conn(ctx).Where(query, args...).First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainUser.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return toUserEntity(&dbModel)
}

func (r *UserRepository) List(ctx context.Context, filter domainUser.ListFilter) ([]*domainUser.User, int64, error) {
	query := r.db.conn(ctx).Model(&models.UserModel{})
	if filter.Role != nil {
		query = query.Where("role = ?", filter.Role.String())
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var dbModels []models.UserModel
	err := query.
		Order("created_at ASC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domainUser.User, 0, len(dbModels))
	for i := range dbModels {
		u, err := toUserEntity(&dbModels[i])
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}

	return users, total, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.update(ctx, userID, map[string]interface{}{
		"password_hashed": passwordHash,
	})
}

func (r *UserRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.update(ctx, userID, map[string]interface{}{
		"is_active": active,
	})
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domainUser.Role) error {
	if !role.Valid() {
		return domainUser.ErrInvalidUserRole
	}
	return r.update(ctx, userID, map[string]interface{}{
		"role": role.String(),
	})
}

func (r *UserRepository) update(ctx context.Context, userID uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()

	result := r.db.conn(ctx).
		Model(&models.UserModel{}).
		Where("id = ?", userID).
		Updates(fields)

	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainUser.ErrUserNotFound
	}

	return nil
}

func toUserModel(u *domainUser.User) *models.UserModel {
	return &models.UserModel{
		ID:             u.ID,
		Email:          strings.ToLower(u.Email),
		PasswordHashed: u.PasswordHashed,
		Role:           u.Role.String(),
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUserEntity(m *models.UserModel) (*domainUser.User, error) {
	role, err := domainUser.ParseRole(m.Role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", m.ID, err)
	}

	return &domainUser.User{
		ID:             m.ID,
		Email:          m.Email,
		PasswordHashed: m.PasswordHashed,
		Role:           role,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint failed")
}
