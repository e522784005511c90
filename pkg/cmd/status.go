package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"github.com/voyagekit/stevedore/pkg/config"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"go.uber.org/fx"
)

type statusParams struct {
	fx.In

	Config *config.Config
}

// status creates the status command for showing migration status.
//
// The status command displays the current migration state against the
// revision ledger: which migrations have been applied, which are pending,
// and any that have failed.
//
// Command flags:
//   - --verbose: Show detailed migration information
//
// Example usage:
//
//	# Show basic migration status
//	stevedore status
//
//	# Show detailed information about each migration
//	stevedore status --verbose
func status(p statusParams) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show migration status",
		Description: `Display the current migration status for the configured PostgreSQL instance.

The status command shows:
- Total number of migration files found
- Number of completed, pending, and failed migrations
- Execution history with timing information (when --verbose is used)
- Bootstrap status of the revision ledger

This command is useful for:
- Checking if migrations need to be applied
- Debugging failed migrations
- Auditing migration execution history`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show detailed migration information",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStatus(ctx, cmd, p)
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command, p statusParams) error {
	verbose := cmd.Bool("verbose")

	slog.Info("Checking migration status", "dir", p.Config.Dir)

	migrationDir, err := migrator.LoadMigrationDir(os.DirFS(p.Config.Dir))
	if err != nil {
		return errors.Wrap(err, "failed to load migrations")
	}

	fmt.Printf("Migration Status\n")
	fmt.Printf("Migration directory: %s\n", p.Config.Dir)
	fmt.Println()

	if len(migrationDir.Migrations) == 0 {
		fmt.Println("No migration files found.")
		return nil
	}

	client, err := connect(ctx, p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	bootstrapped, err := migrator.IsBootstrapped(ctx, client)
	if err != nil {
		return errors.Wrap(err, "failed to check bootstrap status")
	}

	if !bootstrapped {
		showUnbootstrappedStatus(migrationDir.Migrations)
		return nil
	}

	revisionSet, err := migrator.LoadRevisions(ctx, client)
	if err != nil {
		return errors.Wrap(err, "failed to load revisions")
	}

	showStatus(migrationDir, revisionSet, verbose)
	return nil
}

func showUnbootstrappedStatus(migrations []*migrator.Migration) {
	fmt.Println("❗ Stevedore infrastructure not initialized")
	fmt.Println("   Run 'stevedore migrate' to initialize and apply migrations")
	fmt.Println()
	fmt.Printf("Found %d migration files:\n", len(migrations))
	for _, migration := range migrations {
		fmt.Printf("  📄 %s\n", migration.Version)
	}
}

func showStatus(dir *migrator.MigrationDir, revisionSet *migrator.RevisionSet, verbose bool) {
	var completed, pending, failed []*migrator.Migration
	for _, migration := range dir.Migrations {
		switch {
		case revisionSet.IsCompleted(migration.Version):
			completed = append(completed, migration)
		case revisionSet.GetRevision(migration.Version) != nil:
			failed = append(failed, migration)
		default:
			pending = append(pending, migration)
		}
	}

	fmt.Printf("Total migrations: %d\n", len(dir.Migrations))
	fmt.Printf("✅ Completed: %d\n", len(completed))
	fmt.Printf("⏳ Pending: %d\n", len(pending))
	fmt.Printf("❌ Failed: %d\n", len(failed))
	fmt.Println()

	if len(completed) > 0 {
		last := completed[len(completed)-1]
		revision := revisionSet.GetRevision(last.Version)
		fmt.Printf("Last applied: %s at %s\n",
			last.Version,
			revision.ExecutedAt.Format("2006-01-02 15:04:05 UTC"))
		fmt.Println()
	}

	if len(failed) > 0 {
		fmt.Println("❌ Failed migrations:")
		for _, migration := range failed {
			revision := revisionSet.GetRevision(migration.Version)
			fmt.Printf("  %s (failed at %s)\n",
				migration.Version,
				revision.ExecutedAt.Format("2006-01-02 15:04:05"))
			if revision.Error != nil {
				fmt.Printf("    Error: %s\n", *revision.Error)
			}
		}
		fmt.Println()
	}

	if len(pending) > 0 {
		fmt.Println("⏳ Pending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %s\n", migration.Version)
		}
		fmt.Println()
	}

	if verbose {
		showVerboseStatus(dir.Migrations, revisionSet)
	}

	switch {
	case len(pending) > 0:
		fmt.Println("💡 Run 'stevedore migrate' to apply pending migrations")
	case len(failed) > 0:
		fmt.Println("💡 Fix failed migrations and run 'stevedore migrate' to retry")
	default:
		fmt.Println("✅ All migrations are up to date")
	}
}

func showVerboseStatus(migrations []*migrator.Migration, revisionSet *migrator.RevisionSet) {
	fmt.Println("📊 Detailed migration history:")
	fmt.Println()

	for _, migration := range migrations {
		revision := revisionSet.GetRevision(migration.Version)

		if revision == nil {
			fmt.Printf("  📄 %s - Not executed\n", migration.Version)
			continue
		}

		status := "✅"
		statusText := "Completed"

		if revision.Error != nil {
			status = "❌"
			statusText = "Failed"
		}

		fmt.Printf("  %s %s - %s\n", status, migration.Version, statusText)
		fmt.Printf("     Executed: %s\n", revision.ExecutedAt.Format("2006-01-02 15:04:05 UTC"))
		fmt.Printf("     Duration: %v\n", revision.ExecutionTime)
		fmt.Printf("     Statements: %d/%d applied\n", revision.Applied, revision.Total)
		fmt.Printf("     Stevedore version: %s\n", revision.StevedoreVersion)

		if revision.Error != nil {
			fmt.Printf("     Error: %s\n", *revision.Error)
		}

		fmt.Println()
	}
}
