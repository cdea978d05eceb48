package employee

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peoplehub/pkg/platform/sentinel"
)

func newMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgres(db), mock
}

func TestPostgresStore_FindByAnyEmail(t *testing.T) {
	columns := []string{"id", "name", "email", "position", "department", "manager_id"}

	t.Run("normalizes and deduplicates the addresses", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("WHERE lower\\(email\\) = ANY\\(\\$1\\)").
			WithArgs(pq.Array([]string{"ada@example.com", "alt@example.com"})).
			WillReturnRows(sqlmock.NewRows(columns).AddRow("E1", "Ada Lovelace", "ada@example.com", "developer", "R&D", "E0"))

		got, err := store.FindByAnyEmail(context.Background(), []string{" Ada@Example.com", "alt@example.com", "ada@example.com", ""})
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", got.Name)
		assert.Equal(t, "E0", string(got.ManagerID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows is not found", func(t *testing.T) {
		store, mock := newMock(t)
		mock.ExpectQuery("FROM employees").WillReturnError(sql.ErrNoRows)

		_, err := store.FindByEmail(context.Background(), "nobody@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("empty input skips the query", func(t *testing.T) {
		store, mock := newMock(t)

		_, err := store.FindByAnyEmail(context.Background(), []string{" "})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
