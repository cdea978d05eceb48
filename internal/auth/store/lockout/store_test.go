package lockout

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplehub/internal/auth/models"
	"peoplehub/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	_, err := store.Get(ctx, "jane@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	record := &models.Lockout{Identifier: "jane@example.com", FailureCount: 2, WindowStart: now, LastFailureAt: now}
	require.NoError(t, store.Save(ctx, record))

	record.FailureCount = 99
	got, err := store.Get(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailureCount, "stored copies are isolated from callers")

	require.NoError(t, store.Delete(ctx, "jane@example.com"))
	_, err = store.Get(ctx, "jane@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_Get(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	columns := []string{"identifier", "failure_count", "window_start", "last_failure_at", "locked_until"}

	t.Run("scans a locked record", func(t *testing.T) {
		store, mock := newMock(t)
		until := now.Add(15 * time.Minute)
		mock.ExpectQuery("SELECT identifier, failure_count").
			WithArgs("jane@example.com").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("jane@example.com", 5, now, now, until))

		got, err := store.Get(context.Background(), "jane@example.com")
		require.NoError(t, err)
		assert.Equal(t, 5, got.FailureCount)
		require.NotNil(t, got.LockedUntil)
		assert.Equal(t, until, *got.LockedUntil)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("SELECT identifier, failure_count").WillReturnError(sql.ErrNoRows)
		_, err := store.Get(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("driver errors are wrapped", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("SELECT identifier, failure_count").WillReturnError(errors.New("connection reset"))
		_, err := store.Get(context.Background(), "jane@example.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStore_SaveAndDelete(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	store, mock := newMock(t)

	mock.ExpectExec("INSERT INTO auth_lockouts").
		WithArgs("jane@example.com", 1, now, now, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM auth_lockouts").
		WithArgs("jane@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), &models.Lockout{
		Identifier: "jane@example.com", FailureCount: 1, WindowStart: now, LastFailureAt: now,
	}))
	require.NoError(t, store.Delete(context.Background(), "jane@example.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
