package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/consts"
	"gopkg.in/yaml.v3"
)

type (
	// Database holds connection settings for the target PostgreSQL instance.
	Database struct {
		// URL is the connection string. Environment references like
		// ${DATABASE_URL} are expanded at load time so credentials stay
		// out of the config file.
		URL string `yaml:"url"`

		// ConnectTimeoutSeconds bounds initial connection acquisition.
		// Zero means the driver default (10s).
		ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds,omitempty"`
	}

	// Remote configures the optional HTTP SQL-execution endpoint used when a
	// direct database connection is unavailable for migrations.
	Remote struct {
		// URL is the SQL-execution endpoint. Empty disables remote execution.
		URL string `yaml:"url,omitempty"`

		// APIKeyEnv names the environment variable holding the API key.
		APIKeyEnv string `yaml:"api_key_env,omitempty"`
	}

	// Table declares one table participating in export/import transfers along
	// with the tables it references via foreign keys.
	Table struct {
		Name string `yaml:"name"`

		// DependsOn lists tables this table references. Parents are inserted
		// before this table and deleted after it.
		DependsOn []string `yaml:"depends_on,omitempty"`

		// Required marks tables expected to be non-empty in the source; an
		// import payload missing a required table is an error rather than
		// an empty table.
		Required bool `yaml:"required,omitempty"`
	}

	// Expectation declares a post-migration probe run by the schema verifier.
	Expectation struct {
		// Migration is the migration version this expectation belongs to.
		Migration string `yaml:"migration"`

		// Kind is one of "table", "function", or "row_count".
		Kind string `yaml:"kind"`

		// Name is the table or function the probe inspects.
		Name string `yaml:"name"`

		// MinRows is the minimum row count for "row_count" probes.
		MinRows int `yaml:"min_rows,omitempty"`
	}

	// Backup configures discovery of backup dump files.
	Backup struct {
		// Dir is the directory containing backup dumps.
		Dir string `yaml:"dir,omitempty"`

		// Pattern is the glob matching backup filenames, e.g.
		// "kgay_backup_*.sql".
		Pattern string `yaml:"pattern,omitempty"`
	}

	// Config represents the project configuration for migration and transfer
	// runs. It is loaded once at process start and passed by reference into
	// each component.
	Config struct {
		// Database contains connection settings for the target instance.
		Database Database `yaml:"database"`

		// Dir specifies the directory where migration files are stored.
		Dir string `yaml:"dir"`

		// Tables lists the tables participating in transfers, in the order
		// used to break topological-sort ties.
		Tables []Table `yaml:"tables,omitempty"`

		// Expectations lists post-migration verification probes.
		Expectations []Expectation `yaml:"expectations,omitempty"`

		// Backup configures backup discovery for restore runs.
		Backup Backup `yaml:"backup,omitempty"`

		// Remote configures the HTTP SQL-execution fallback.
		Remote Remote `yaml:"remote,omitempty"`
	}

	// Error indicates missing or malformed configuration. It is fatal at
	// startup and never retried.
	Error struct {
		Field  string
		Reason string
	}
)

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// LoadConfig parses a project configuration from the provided io.Reader.
//
// The function expects YAML-formatted configuration data. Environment
// references in the database URL are expanded, and defaults are applied for
// the migrations directory and backup pattern.
//
// Example:
//
//	yamlData := `
//	database:
//	  url: ${DATABASE_URL}
//	dir: db/migrations
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		return err
//	}
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	cfg.Database.URL = os.ExpandEnv(cfg.Database.URL)

	if cfg.Dir == "" {
		cfg.Dir = consts.DefaultMigrationsDir
	}
	if cfg.Backup.Pattern == "" {
		cfg.Backup.Pattern = consts.DefaultBackupPattern
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// DSN returns the configured connection string, failing with *Error when it
// is absent. Callers check this before any network activity so a missing
// connection string fails fast.
func (c *Config) DSN() (string, error) {
	if strings.TrimSpace(c.Database.URL) == "" {
		return "", &Error{Field: "database.url", Reason: "connection string is required"}
	}
	return c.Database.URL, nil
}

// ConnectTimeout returns the configured connection timeout, or zero to accept
// the provider default.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeoutSeconds) * time.Second
}

// RemoteAPIKey resolves the remote endpoint API key from the environment.
// Fails with *Error when remote execution is configured without a resolvable
// key.
func (c *Config) RemoteAPIKey() (string, error) {
	if c.Remote.URL == "" {
		return "", nil
	}
	if c.Remote.APIKeyEnv == "" {
		return "", &Error{Field: "remote.api_key_env", Reason: "required when remote.url is set"}
	}

	key := os.Getenv(c.Remote.APIKeyEnv)
	if key == "" {
		return "", &Error{Field: "remote.api_key_env", Reason: fmt.Sprintf("environment variable %s is not set", c.Remote.APIKeyEnv)}
	}
	return key, nil
}

// ValidateTables fails with *Error when a depends_on entry names a table that
// is not itself configured. Cycles are detected separately by the transfer
// planner.
func (c *Config) ValidateTables() error {
	known := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" {
			return &Error{Field: "tables", Reason: "table name is required"}
		}
		if known[t.Name] {
			return &Error{Field: "tables", Reason: fmt.Sprintf("table %s is declared twice", t.Name)}
		}
		known[t.Name] = true
	}

	for _, t := range c.Tables {
		for _, dep := range t.DependsOn {
			if !known[dep] {
				return &Error{
					Field:  "tables",
					Reason: fmt.Sprintf("table %s depends on unknown table %s", t.Name, dep),
				}
			}
		}
	}

	return nil
}
