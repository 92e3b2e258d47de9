package postgres

import (
	domainToken "account-service/internal/domain/token"
	"account-service/internal/infrastructure/database/postgres/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository implements token.Repository on the auth_tokens table.
type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *domainToken.Token) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	if err := r.db.conn(ctx).Create(toTokenModel(t)).Error; err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	return nil
}

func (r *TokenRepository) GetByHash(ctx context.Context, kind domainToken.Kind, valueHash string) (*domainToken.Token, error) {
	var dbModel models.TokenModel
	err := r.db.conn(ctx).
		Where("value_hash = ? AND kind = ?", valueHash, string(kind)).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainToken.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return toTokenEntity(&dbModel), nil
}

func (r *TokenRepository) Latest(ctx context.Context, userID uuid.UUID, kind domainToken.Kind) (*domainToken.Token, error) {
	var dbModel models.TokenModel
	err := r.db.conn(ctx).
		Where("user_id = ? AND kind = ?", userID, string(kind)).
		Order("issued_at DESC").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainToken.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest token: %w", err)
	}

	return toTokenEntity(&dbModel), nil
}

// Consume flips consumed_at in one conditional UPDATE, so the database decides
// the winner between concurrent redemptions. A zero-row update is then
// classified by reading the record back.
func (r *TokenRepository) Consume(ctx context.Context, kind domainToken.Kind, valueHash string, now time.Time) (*domainToken.Token, error) {
	now = now.UTC()
	result := r.db.conn(ctx).
		Model(&models.TokenModel{}).
		Where("value_hash = ? AND kind = ? AND consumed_at IS NULL AND expires_at > ?", valueHash, string(kind), now).
		Update("consumed_at", now)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to consume token: %w", result.Error)
	}

	t, err := r.GetByHash(ctx, kind, valueHash)
	if err != nil {
		return nil, err
	}

	if result.RowsAffected == 1 {
		return t, nil
	}

	if t.ConsumedAt != nil {
		return nil, domainToken.ErrTokenAlreadyUsed
	}
	return nil, domainToken.ErrTokenExpired
}

func (r *TokenRepository) Revoke(ctx context.Context, kind domainToken.Kind, valueHash string, now time.Time) error {
	now = now.UTC()
	result := r.db.conn(ctx).
		Model(&models.TokenModel{}).
		Where("value_hash = ? AND kind = ? AND consumed_at IS NULL", valueHash, string(kind)).
		Update("consumed_at", now)

	if result.Error != nil {
		return fmt.Errorf("failed to revoke token: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	_, err := r.GetByHash(ctx, kind, valueHash)
	return err
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, kind domainToken.Kind, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.db.conn(ctx).
		Model(&models.TokenModel{}).
		Where("user_id = ? AND kind = ? AND consumed_at IS NULL AND expires_at > ?", userID, string(kind), now).
		Update("consumed_at", now)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *TokenRepository) FindStale(ctx context.Context, now, consumedBefore time.Time, limit int) ([]*domainToken.Token, error) {
	var dbModels []models.TokenModel
	err := r.staleScope(r.db.conn(ctx), now, consumedBefore).
		Order("expires_at ASC").
		Limit(limit).
		Find(&dbModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale tokens: %w", err)
	}

	tokens := make([]*domainToken.Token, 0, len(dbModels))
	for i := range dbModels {
		tokens = append(tokens, toTokenEntity(&dbModels[i]))
	}

	return tokens, nil
}

func (r *TokenRepository) DeleteStale(ctx context.Context, ids []uuid.UUID, now, consumedBefore time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.staleScope(r.db.conn(ctx), now, consumedBefore).
		Where("id IN ?", ids).
		Delete(&models.TokenModel{})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete stale tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *TokenRepository) staleScope(db *gorm.DB, now, consumedBefore time.Time) *gorm.DB {
	return db.Model(&models.TokenModel{}).
		Where("(expires_at < ? OR (consumed_at IS NOT NULL AND consumed_at < ?))", now.UTC(), consumedBefore.UTC())
}

func toTokenModel(t *domainToken.Token) *models.TokenModel {
	return &models.TokenModel{
		ID:         t.ID,
		UserID:     t.UserID,
		Kind:       string(t.Kind),
		ValueHash:  t.ValueHash,
		IssuedAt:   t.IssuedAt.UTC(),
		ExpiresAt:  t.ExpiresAt.UTC(),
		ConsumedAt: utcPtr(t.ConsumedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toTokenEntity(m *models.TokenModel) *domainToken.Token {
	return &domainToken.Token{
		ID:         m.ID,
		UserID:     m.UserID,
		Kind:       domainToken.Kind(m.Kind),
		ValueHash:  m.ValueHash,
		IssuedAt:   m.IssuedAt,
		ExpiresAt:  m.ExpiresAt,
		ConsumedAt: m.ConsumedAt,
	}
}
