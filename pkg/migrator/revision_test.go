package migrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/consts"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/utils"
)

func TestRevisionSet(t *testing.T) {
	completed := &migrator.Revision{Version: "001_init", Applied: 2, Total: 2}
	failed := &migrator.Revision{Version: "002_guests", Error: utils.Ptr("syntax error"), Applied: 1, Total: 3}
	partial := &migrator.Revision{Version: "003_ports", Applied: 1, Total: 2}

	set := migrator.NewRevisionSet([]*migrator.Revision{completed, failed, partial})

	assert.True(t, set.IsCompleted("001_init"))
	assert.False(t, set.IsCompleted("002_guests"))
	assert.False(t, set.IsCompleted("003_ports"))
	assert.False(t, set.IsCompleted("999_unknown"))

	require.NotNil(t, set.GetRevision("002_guests"))
	assert.Nil(t, set.GetRevision("999_unknown"))

	dir := &migrator.MigrationDir{Migrations: []*migrator.Migration{
		{Version: "001_init"},
		{Version: "002_guests"},
		{Version: "003_ports"},
	}}

	pending := set.Pending(dir)
	require.Len(t, pending, 2)
	assert.Equal(t, "002_guests", pending[0].Version)
	assert.Equal(t, "003_ports", pending[1].Version)
}

func TestRevisionSetLatestEntryWins(t *testing.T) {
	// A retry entry appended after a failure supersedes the failed one.
	set := migrator.NewRevisionSet([]*migrator.Revision{
		{Version: "001_init", Error: utils.Ptr("boom"), Applied: 0, Total: 1},
		{Version: "001_init", Applied: 1, Total: 1},
	})

	assert.True(t, set.IsCompleted("001_init"))
	assert.Equal(t, []string{"001_init"}, set.Versions())
}

func TestLoadRevisions(t *testing.T) {
	db := &fakeDB{
		queryFunc: revisionQueries(&fakeRows{data: [][]any{
			revisionRow("001_init", nil, 1, 1),
			revisionRow("002_guests", "syntax error", 0, 2),
		}}),
	}

	set, err := migrator.LoadRevisions(context.Background(), db)
	require.NoError(t, err)

	assert.True(t, set.IsCompleted("001_init"))
	assert.False(t, set.IsCompleted("002_guests"))

	revision := set.GetRevision("001_init")
	require.NotNil(t, revision)
	assert.Equal(t, migrator.StandardRevision, revision.Kind)
	assert.Equal(t, 1200*time.Millisecond, revision.ExecutionTime)
	assert.Equal(t, "1.0.0", revision.StevedoreVersion)

	revision = set.GetRevision("002_guests")
	require.NotNil(t, revision)
	require.NotNil(t, revision.Error)
	assert.Equal(t, "syntax error", *revision.Error)
}

func TestSaveRevision(t *testing.T) {
	db := &fakeDB{}

	err := migrator.SaveRevision(context.Background(), db, &migrator.Revision{
		Version:          "001_init",
		ExecutedAt:       time.Now().UTC(),
		ExecutionTime:    time.Second,
		Kind:             migrator.StandardRevision,
		Applied:          1,
		Total:            1,
		Hash:             "h1:abc=",
		StevedoreVersion: "1.0.0",
	})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "INSERT INTO stevedore_revisions")
}

func TestEnsureRevisionTable(t *testing.T) {
	db := &fakeDB{}

	require.NoError(t, migrator.EnsureRevisionTable(context.Background(), db))

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS "+consts.RevisionTable)
}

func TestIsBootstrapped(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		db := &fakeDB{queryFunc: func(string, ...any) (postgres.Rows, error) {
			return &fakeRows{data: [][]any{{true}}}, nil
		}}

		bootstrapped, err := migrator.IsBootstrapped(context.Background(), db)
		require.NoError(t, err)
		assert.True(t, bootstrapped)
	})

	t.Run("missing", func(t *testing.T) {
		db := &fakeDB{queryFunc: func(string, ...any) (postgres.Rows, error) {
			return &fakeRows{data: [][]any{{false}}}, nil
		}}

		bootstrapped, err := migrator.IsBootstrapped(context.Background(), db)
		require.NoError(t, err)
		assert.False(t, bootstrapped)
	})
}
