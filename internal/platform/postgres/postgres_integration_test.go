//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"peoplehub/internal/platform/postgres"
	"peoplehub/pkg/testutil/containers"
)

type MigrationSuite struct {
	suite.Suite
	pg *containers.PostgresContainer
}

func TestMigrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MigrationSuite))
}

func (s *MigrationSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *MigrationSuite) TestMigrateIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(postgres.Migrate(ctx, s.pg.DB))

	version, err := postgres.Version(ctx, s.pg.DB)
	s.Require().NoError(err)
	s.EqualValues(4, version)
}

func (s *MigrationSuite) TestSecondPrimaryIsRejected() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "profiles"))

	_, err := s.pg.DB.ExecContext(ctx, `INSERT INTO profiles (id, email) VALUES ('p-1', 'a@example.com')`)
	s.Require().NoError(err)
	_, err = s.pg.DB.ExecContext(ctx,
		`INSERT INTO email_links (identity_id, profile_id, email, is_primary) VALUES ('i-1', 'p-1', 'a@example.com', TRUE)`)
	s.Require().NoError(err)

	_, err = s.pg.DB.ExecContext(ctx,
		`INSERT INTO email_links (identity_id, profile_id, email, is_primary) VALUES ('i-2', 'p-1', 'b@example.com', TRUE)`)
	s.Error(err)
}

func (s *MigrationSuite) TestDeletingAProfileRemovesItsLinks() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "profiles"))

	_, err := s.pg.DB.ExecContext(ctx, `INSERT INTO profiles (id, email) VALUES ('p-2', 'c@example.com')`)
	s.Require().NoError(err)
	_, err = s.pg.DB.ExecContext(ctx,
		`INSERT INTO email_links (identity_id, profile_id, email, is_primary) VALUES ('i-3', 'p-2', 'c@example.com', TRUE)`)
	s.Require().NoError(err)

	_, err = s.pg.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id = 'p-2'`)
	s.Require().NoError(err)

	var count int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx, `SELECT count(*) FROM email_links WHERE profile_id = 'p-2'`).Scan(&count))
	s.Zero(count)
}
