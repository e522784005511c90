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
	"github.com/voyagekit/stevedore/pkg/postgres"
	"go.uber.org/fx"
)

type migrateParams struct {
	fx.In

	Config  *config.Config
	Version *Version
}

// migrate creates the migrate command for applying pending migrations.
//
// The migrate command executes pending migrations against the configured
// PostgreSQL instance. With version arguments, only the named migrations are
// considered; already-applied migrations are skipped either way.
//
// Command flags:
//   - --dry-run: Show what would be executed without applying changes
//   - --remote: Execute through the configured HTTP endpoint instead of a
//     direct connection
//
// Example usage:
//
//	# Apply all pending migrations
//	stevedore migrate
//
//	# Apply only the named migrations
//	stevedore migrate 002_add_guests 003_add_bookings
//
//	# Show what would be executed without applying
//	stevedore migrate --dry-run
func migrate(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Aliases:   []string{"apply"},
		Usage:     "Apply pending migrations",
		ArgsUsage: "[version...]",
		Description: `Apply pending migrations to the configured PostgreSQL instance.

Migrations run in version order. Each migration's statements and its ledger
entry commit in a single transaction, so a failure rolls the whole migration
back and it can be retried after fixing the script. Already-applied
migrations are skipped.

After a migration applies, any verification probes configured for it run as
read-only smoke tests. A failed probe exits 2 rather than 1: the migration
itself is already committed.

Migration files are loaded from the configured migrations directory and
follow the naming convention: <version>_<description>.sql`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be executed without applying changes",
				Value: false,
			},
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "Execute migrations through the configured HTTP endpoint",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, p)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, p migrateParams) error {
	dryRun := cmd.Bool("dry-run")
	useRemote := cmd.Bool("remote")
	versions := cmd.Args().Slice()

	slog.Info("Starting migration execution",
		"dir", p.Config.Dir,
		"dry_run", dryRun,
		"remote", useRemote,
		"versions", versions,
	)

	migrationDir, err := migrator.LoadMigrationDir(os.DirFS(p.Config.Dir))
	if err != nil {
		return errors.Wrap(err, "failed to load migrations")
	}

	migrations, err := migrationDir.Filter(versions)
	if err != nil {
		return err
	}

	if len(migrations) == 0 {
		fmt.Printf("No migrations found in %s\n", p.Config.Dir)
		return nil
	}

	slog.Info("Loaded migrations", "count", len(migrations))

	client, err := connect(ctx, p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if dryRun {
		return runDryRun(ctx, client, migrations)
	}

	remote, err := remoteExecutor(p.Config, useRemote)
	if err != nil {
		return err
	}

	exec := migrator.New(migrator.Config{
		Database:         client,
		Remote:           remote,
		StevedoreVersion: p.Version.Version,
	})

	bootstrapped, err := migrator.IsBootstrapped(ctx, client)
	if err != nil {
		return errors.Wrap(err, "failed to check bootstrap status")
	}

	if !bootstrapped {
		fmt.Println("Initializing stevedore migration tracking infrastructure...")
	}

	results, runErr := exec.Execute(ctx, migrations)

	if err := reportResults(results); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	return verifyResults(ctx, client, p.Config, results)
}

func remoteExecutor(cfg *config.Config, useRemote bool) (*migrator.RemoteExecutor, error) {
	if !useRemote {
		return nil, nil
	}

	if cfg.Remote.URL == "" {
		return nil, &config.Error{Field: "remote.url", Reason: "required for --remote"}
	}

	apiKey, err := cfg.RemoteAPIKey()
	if err != nil {
		return nil, err
	}

	return migrator.NewRemoteExecutor(cfg.Remote.URL, apiKey), nil
}

func runDryRun(ctx context.Context, client *postgres.Client, migrations []*migrator.Migration) error {
	revisionSet := migrator.NewRevisionSet(nil)

	bootstrapped, err := migrator.IsBootstrapped(ctx, client)
	if err != nil {
		return errors.Wrap(err, "failed to check bootstrap status")
	}

	if bootstrapped {
		revisionSet, err = migrator.LoadRevisions(ctx, client)
		if err != nil {
			return errors.Wrap(err, "failed to load revisions")
		}
	}

	fmt.Println("Dry run: showing migrations that would be executed")
	fmt.Println()

	pendingCount := 0
	skippedCount := 0

	for _, migration := range migrations {
		if revisionSet.IsCompleted(migration.Version) {
			fmt.Printf("  ⏭  %s (already applied)\n", migration.Version)
			skippedCount++
			continue
		}

		fmt.Printf("  ▶  %s\n", migration.Version)
		pendingCount++
	}

	fmt.Println()
	fmt.Printf("Summary: %d migrations would be executed, %d already applied\n",
		pendingCount, skippedCount)

	if pendingCount == 0 {
		fmt.Println("All migrations are up to date.")
	}

	return nil
}

func reportResults(results []*migrator.Result) error {
	fmt.Println()
	fmt.Println("Migration execution results:")
	fmt.Println()

	var (
		successCount int
		failedCount  int
		skippedCount int
		lastError    error
	)

	for _, result := range results {
		switch result.Status {
		case migrator.StatusSuccess:
			fmt.Printf("  ✅ %s completed in %v (%d/%d statements)\n",
				result.Version,
				result.ExecutionTime,
				result.Applied,
				result.Total,
			)
			successCount++

		case migrator.StatusFailed:
			fmt.Printf("  ❌ %s failed after %v (%d/%d statements)\n",
				result.Version,
				result.ExecutionTime,
				result.Applied,
				result.Total,
			)
			if result.Error != nil {
				fmt.Printf("     Error: %v\n", result.Error)
				lastError = result.Error
			}
			failedCount++

		case migrator.StatusSkipped:
			fmt.Printf("  ⏭  %s (already applied)\n", result.Version)
			skippedCount++
		}
	}

	fmt.Println()
	fmt.Printf("Summary: %d successful, %d failed, %d skipped\n",
		successCount, failedCount, skippedCount)

	if failedCount > 0 {
		fmt.Println()
		fmt.Println("❌ Migration execution failed. Please review the errors above.")
		fmt.Println("   Failed migrations can be retried after fixing the issues.")
		return lastError
	}

	if successCount > 0 {
		fmt.Println()
		fmt.Println("✅ All migrations executed successfully.")
	} else if skippedCount > 0 {
		fmt.Println()
		fmt.Println("ℹ️  All migrations are up to date.")
	}

	return nil
}

// verifyResults runs the configured verification probes for every migration
// that applied in this run. Probes are read-only; a failure here never rolls
// the migration back.
func verifyResults(ctx context.Context, client *postgres.Client, cfg *config.Config, results []*migrator.Result) error {
	verifier := migrator.NewVerifier(client)

	var firstWarning error
	for _, result := range results {
		if result.Status != migrator.StatusSuccess {
			continue
		}

		for _, exp := range expectationsFor(cfg, result.Version) {
			res, err := verifier.Verify(ctx, exp)
			if err != nil {
				fmt.Printf("  ⚠️  %s: %v\n", result.Version, err)
				if firstWarning == nil {
					firstWarning = err
				}
				continue
			}

			fmt.Printf("  ✅ %s: %s %s verified\n", result.Version, res.Expectation.Kind, res.Expectation.Name)
		}
	}

	return firstWarning
}
