package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreOrderedAndReversible(t *testing.T) {
	entries, err := fs.ReadDir(migrations, migrationDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	prev := ""
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, name > prev, "%s sorts after %s", name, prev)
		prev = name

		body, err := fs.ReadFile(migrations, migrationDir+"/"+name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestSchemaKeepsOnePrimaryPerProfile(t *testing.T) {
	body, err := fs.ReadFile(migrations, migrationDir+"/00001_profiles.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "ON email_links (profile_id) WHERE is_primary"))
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
