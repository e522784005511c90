package consts

import "os"

const (
	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the name of the project configuration file
	ConfigFile = "stevedore.yaml"

	// DefaultMigrationsDir is the default directory for migration files
	DefaultMigrationsDir = "db/migrations"

	// DefaultBackupPattern is the default glob used to discover backup dumps
	DefaultBackupPattern = "*_backup_*.sql"

	// RevisionTable is the name of the migration tracking table
	RevisionTable = "stevedore_revisions"
)
