package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"github.com/voyagekit/stevedore/pkg/backup"
	"github.com/voyagekit/stevedore/pkg/config"
	"go.uber.org/fx"
)

type restoreParams struct {
	fx.In

	Config *config.Config
}

// restore creates the restore command for replaying the latest backup dump.
//
// Command flags:
//   - --backup-dir: Directory containing backup dumps (default from config)
//   - --pattern: Glob matching backup filenames (default from config)
//
// Example usage:
//
//	# Restore the most recent backup from the configured directory
//	stevedore restore
//
//	# Restore from a specific location
//	stevedore restore --backup-dir /mnt/backups --pattern "prod_backup_*.sql"
func restore(p restoreParams) *cli.Command {
	return &cli.Command{
		Name:  "restore",
		Usage: "Restore the latest backup dump into the database",
		Description: `Locate the most recent backup dump and replay it statement by statement.

Backups are matched by glob pattern and ordered by the date embedded in the
filename (falling back to file modification time). Statements execute
sequentially in dump order with no rollback across statements; a mid-dump
failure reports how far the restore got so the operator can resume
manually.`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backup-dir",
				Usage: "directory containing backup dumps",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "pattern",
				Usage: "glob matching backup filenames",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRestore(ctx, cmd, p)
		},
	}
}

func runRestore(ctx context.Context, cmd *cli.Command, p restoreParams) error {
	dir := cmd.String("backup-dir")
	if dir == "" {
		dir = p.Config.Backup.Dir
	}
	if dir == "" {
		return &config.Error{Field: "backup.dir", Reason: "required for restore"}
	}

	pattern := cmd.String("pattern")
	if pattern == "" {
		pattern = p.Config.Backup.Pattern
	}

	artifact, err := backup.FindLatest(dir, pattern)
	if err != nil {
		return err
	}

	fmt.Printf("Restoring backup %s (%d bytes, %s)\n",
		artifact.Path, artifact.Size, artifact.CreatedAt.Format("2006-01-02"))

	client, err := connect(ctx, p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	restorer := backup.NewRestorer(client)
	slog.Info("Starting restore", "run_id", restorer.RunID(), "path", artifact.Path)

	applied, err := restorer.Restore(ctx, artifact)
	if err != nil {
		return errors.Wrap(err, "restore failed")
	}

	fmt.Printf("Restore complete: %d statements applied.\n", applied)
	return nil
}
