package migrator_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/migrator"
)

func TestLoadMigrationDir(t *testing.T) {
	fsys := fstest.MapFS{
		"20250102120000_guests.sql": &fstest.MapFile{Data: []byte("CREATE TABLE guests (id INT);")},
		"20250101120000_init.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE trips (id INT);")},
		"README.md":                 &fstest.MapFile{Data: []byte("not a migration")},
	}

	dir, err := migrator.LoadMigrationDir(fsys)
	require.NoError(t, err)
	require.Len(t, dir.Migrations, 2)

	// Lexical version order, regardless of directory listing order.
	assert.Equal(t, "20250101120000_init", dir.Migrations[0].Version)
	assert.Equal(t, "20250102120000_guests", dir.Migrations[1].Version)
	assert.Equal(t, "CREATE TABLE trips (id INT);", dir.Migrations[0].Script)
}

func TestLoadMigrationDirEmpty(t *testing.T) {
	dir, err := migrator.LoadMigrationDir(fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, dir.Migrations)
}

func TestMigrationDirFilter(t *testing.T) {
	dir := &migrator.MigrationDir{Migrations: []*migrator.Migration{
		{Version: "001_init"},
		{Version: "002_guests"},
		{Version: "003_ports"},
	}}

	t.Run("no_filter_returns_all", func(t *testing.T) {
		selected, err := dir.Filter(nil)
		require.NoError(t, err)
		assert.Len(t, selected, 3)
	})

	t.Run("subset_in_directory_order", func(t *testing.T) {
		selected, err := dir.Filter([]string{"003_ports", "001_init"})
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "001_init", selected[0].Version)
		assert.Equal(t, "003_ports", selected[1].Version)
	})

	t.Run("unknown_version", func(t *testing.T) {
		_, err := dir.Filter([]string{"999_nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown migration version")
	})
}
