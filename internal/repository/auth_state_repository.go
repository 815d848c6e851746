package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-portal/internal/models"
)

// AuthStateRepository persists the application context of signed-in browsers.
type AuthStateRepository struct {
	db *sqlx.DB
}

// NewAuthStateRepository constructs the repository.
func NewAuthStateRepository(db *sqlx.DB) *AuthStateRepository {
	return &AuthStateRepository{db: db}
}

// Save inserts the state or replaces the one with the same id.
func (r *AuthStateRepository) Save(ctx context.Context, state *models.AuthState) error {
	const query = `INSERT INTO auth_states (id, user_id, role, display_name, email, token_sealed, token_expires_at, theme, created_at, updated_at)
VALUES (:id, :user_id, :role, :display_name, :email, :token_sealed, :token_expires_at, :theme, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, display_name = EXCLUDED.display_name, email = EXCLUDED.email,
token_sealed = EXCLUDED.token_sealed, token_expires_at = EXCLUDED.token_expires_at, theme = EXCLUDED.theme, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// FindByID returns the state or sql.ErrNoRows.
func (r *AuthStateRepository) FindByID(ctx context.Context, id string) (*models.AuthState, error) {
	const query = `SELECT id, user_id, role, display_name, email, token_sealed, token_expires_at, theme, created_at, updated_at FROM auth_states WHERE id = $1`
	var state models.AuthState
	if err := r.db.GetContext(ctx, &state, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find auth state: %w", err)
	}
	return &state, nil
}

// UpdateTheme changes the persisted theme preference.
func (r *AuthStateRepository) UpdateTheme(ctx context.Context, id string, theme models.Theme, updatedAt time.Time) error {
	const query = `UPDATE auth_states SET theme = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, theme, updatedAt)
	if err != nil {
		return fmt.Errorf("update auth state theme: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auth state theme: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one state. Deleting a missing state is not an error.
func (r *AuthStateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM auth_states WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete auth state: %w", err)
	}
	return nil
}

// DeleteExpired purges states whose token expired before now.
func (r *AuthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM auth_states WHERE token_expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired auth states: %w", err)
	}
	return res.RowsAffected()
}
