package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-portal/internal/models"
)

// AuthNoticeRepository stores messages shown after a forced sign-out.
type AuthNoticeRepository struct {
	db *sqlx.DB
}

// NewAuthNoticeRepository constructs the repository.
func NewAuthNoticeRepository(db *sqlx.DB) *AuthNoticeRepository {
	return &AuthNoticeRepository{db: db}
}

// Create inserts a notice.
func (r *AuthNoticeRepository) Create(ctx context.Context, notice *models.AuthNotice) error {
	const query = `INSERT INTO auth_notices (id, state_id, user_id, code, message, created_at) VALUES (:id, :state_id, :user_id, :code, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create auth notice: %w", err)
	}
	return nil
}

// Consume deletes and returns the notices queued for a state, oldest first.
func (r *AuthNoticeRepository) Consume(ctx context.Context, stateID string) ([]models.AuthNotice, error) {
	const query = `DELETE FROM auth_notices WHERE state_id = $1 RETURNING id, state_id, user_id, code, message, created_at`
	var notices []models.AuthNotice
	if err := r.db.SelectContext(ctx, &notices, query, stateID); err != nil {
		return nil, fmt.Errorf("consume auth notices: %w", err)
	}
	sort.SliceStable(notices, func(i, j int) bool { return notices[i].CreatedAt.Before(notices[j].CreatedAt) })
	return notices, nil
}
