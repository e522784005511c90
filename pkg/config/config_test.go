package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voyagekit/stevedore/pkg/config"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@localhost:5432/guides")

	cfg, err := config.LoadConfig(strings.NewReader(`
database:
  url: ${DATABASE_URL}
  connect_timeout_seconds: 5
dir: db/migrations
tables:
  - name: trips
  - name: itinerary
    depends_on: [trips]
    required: true
backup:
  dir: backups
  pattern: kgay_backup_*.sql
`))
	require.NoError(t, err)

	require.Equal(t, "postgres://app@localhost:5432/guides", cfg.Database.URL)
	require.Equal(t, "db/migrations", cfg.Dir)
	require.Len(t, cfg.Tables, 2)
	require.Equal(t, []string{"trips"}, cfg.Tables[1].DependsOn)
	require.True(t, cfg.Tables[1].Required)
	require.Equal(t, "kgay_backup_*.sql", cfg.Backup.Pattern)
	require.Equal(t, "5s", cfg.ConnectTimeout().String())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(strings.NewReader(`database: {url: "postgres://localhost/guides"}`))
	require.NoError(t, err)

	require.Equal(t, "db/migrations", cfg.Dir)
	require.Equal(t, "*_backup_*.sql", cfg.Backup.Pattern)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	_, err := config.LoadConfig(strings.NewReader("database: [not a mapping"))
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		cfg := &config.Config{Database: config.Database{URL: "postgres://localhost/guides"}}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		require.Equal(t, "postgres://localhost/guides", dsn)
	})

	t.Run("missing", func(t *testing.T) {
		cfg := &config.Config{}
		_, err := cfg.DSN()

		var cfgErr *config.Error
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "database.url", cfgErr.Field)
	})
}

func TestRemoteAPIKey(t *testing.T) {
	t.Run("remote_disabled", func(t *testing.T) {
		cfg := &config.Config{}
		key, err := cfg.RemoteAPIKey()
		require.NoError(t, err)
		require.Empty(t, key)
	})

	t.Run("resolved_from_env", func(t *testing.T) {
		t.Setenv("SQL_API_KEY", "sekrit")
		cfg := &config.Config{Remote: config.Remote{URL: "https://db.example.com/sql", APIKeyEnv: "SQL_API_KEY"}}

		key, err := cfg.RemoteAPIKey()
		require.NoError(t, err)
		require.Equal(t, "sekrit", key)
	})

	t.Run("env_not_set", func(t *testing.T) {
		cfg := &config.Config{Remote: config.Remote{URL: "https://db.example.com/sql", APIKeyEnv: "MISSING_KEY_VAR"}}

		_, err := cfg.RemoteAPIKey()

		var cfgErr *config.Error
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestValidateTables(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := &config.Config{Tables: []config.Table{
			{Name: "trips"},
			{Name: "itinerary", DependsOn: []string{"trips"}},
		}}
		require.NoError(t, cfg.ValidateTables())
	})

	t.Run("unknown_dependency", func(t *testing.T) {
		cfg := &config.Config{Tables: []config.Table{
			{Name: "itinerary", DependsOn: []string{"trips"}},
		}}

		err := cfg.ValidateTables()
		var cfgErr *config.Error
		require.ErrorAs(t, err, &cfgErr)
		require.Contains(t, cfgErr.Reason, "unknown table trips")
	})

	t.Run("duplicate_table", func(t *testing.T) {
		cfg := &config.Config{Tables: []config.Table{{Name: "trips"}, {Name: "trips"}}}
		require.Error(t, cfg.ValidateTables())
	})
}
