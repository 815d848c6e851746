package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-portal/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestAuthStateSave(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthStateRepository(db)

	now := time.Now()
	mock.ExpectExec("INSERT INTO auth_states").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), &models.AuthState{
		ID: "st-1", UserID: "u-1", Role: models.RoleTeacher, TokenSealed: []byte{1, 2}, TokenExpiresAt: now.Add(time.Hour),
		Theme: models.ThemeDark, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthStateFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthStateRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "role", "display_name", "email", "token_sealed", "token_expires_at", "theme", "created_at", "updated_at"}).
		AddRow("st-1", "u-1", "student", "Sari", "sari@example.com", []byte{9}, now, "light", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM auth_states WHERE id = $1")).WithArgs("st-1").WillReturnRows(rows)

	state, err := repo.FindByID(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, state.Role)
	assert.Equal(t, models.ThemeLight, state.Theme)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthStateFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthStateRepository(db)

	mock.ExpectQuery("FROM auth_states").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAuthStateUpdateThemeMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthStateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE auth_states SET theme = $2")).
		WithArgs("st-1", models.ThemeDark, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTheme(context.Background(), "st-1", models.ThemeDark, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthStateDeleteExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthStateRepository(db)

	mock.ExpectExec("DELETE FROM auth_states WHERE token_expires_at").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAuthNoticeConsumeOrdersByCreation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthNoticeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "state_id", "user_id", "code", "message", "created_at"}).
		AddRow("n-2", "st-1", "u-1", "SESSION_REVOKED", models.RevokedSessionMessage, now).
		AddRow("n-1", "st-1", "u-1", "SESSION_REVOKED", models.RevokedSessionMessage, now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM auth_notices WHERE state_id = $1 RETURNING")).WithArgs("st-1").WillReturnRows(rows)

	notices, err := repo.Consume(context.Background(), "st-1")
	require.NoError(t, err)
	require.Len(t, notices, 2)
	assert.Equal(t, "n-1", notices[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthNoticeCreateRevokedMessage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuthNoticeRepository(db)

	mock.ExpectExec("INSERT INTO auth_notices").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.AuthNotice{ID: "n-1", StateID: "st-1", UserID: "u-1", Code: "SESSION_REVOKED", Message: models.RevokedSessionMessage, CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
