package token

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplehub/internal/auth/models"
	"peoplehub/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_Create(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	rec := &models.TokenRecord{Hash: "h", Kind: models.TokenRefresh, IdentityID: "raw-1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	t.Run("inserts", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec("INSERT INTO auth_tokens").
			WithArgs("h", "refresh", "raw-1", rec.CreatedAt, rec.ExpiresAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, store.Create(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectExec("INSERT INTO auth_tokens").WillReturnError(&pq.Error{Code: "23505"})
		assert.ErrorIs(t, store.Create(context.Background(), rec), sentinel.ErrConflict)
	})
}

func TestPostgresStore_Consume(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	t.Run("marks the token used", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("UPDATE auth_tokens").
			WithArgs("h", "refresh", now).
			WillReturnRows(sqlmock.NewRows([]string{"identity_id", "created_at", "expires_at"}).
				AddRow("raw-1", now.Add(-time.Hour), now.Add(time.Hour)))

		rec, err := store.Consume(context.Background(), models.TokenRefresh, "h", now)
		require.NoError(t, err)
		assert.True(t, rec.Used)
		assert.Equal(t, "raw-1", string(rec.IdentityID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replay is reported with the record", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("UPDATE auth_tokens").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT identity_id, created_at, expires_at, used, used_at FROM auth_tokens").
			WithArgs("h", "refresh").
			WillReturnRows(sqlmock.NewRows([]string{"identity_id", "created_at", "expires_at", "used", "used_at"}).
				AddRow("raw-1", now.Add(-time.Hour), now.Add(time.Hour), true, now.Add(-time.Minute)))

		rec, err := store.Consume(context.Background(), models.TokenRefresh, "h", now)
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
		require.NotNil(t, rec)
		assert.Equal(t, "raw-1", string(rec.IdentityID))
	})

	t.Run("expired", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("UPDATE auth_tokens").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT identity_id").
			WillReturnRows(sqlmock.NewRows([]string{"identity_id", "created_at", "expires_at", "used", "used_at"}).
				AddRow("raw-1", now.Add(-2*time.Hour), now.Add(-time.Hour), false, nil))

		_, err := store.Consume(context.Background(), models.TokenRefresh, "h", now)
		assert.ErrorIs(t, err, sentinel.ErrExpired)
	})

	t.Run("unknown", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("UPDATE auth_tokens").WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT identity_id").WillReturnError(sql.ErrNoRows)

		_, err := store.Consume(context.Background(), models.TokenRefresh, "h", now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStore_DeleteByIdentity(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("DELETE FROM auth_tokens WHERE identity_id").
		WithArgs("raw-1", "refresh").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteByIdentity(context.Background(), "raw-1", models.TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
