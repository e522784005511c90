package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"github.com/voyagekit/stevedore/pkg/config"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"github.com/voyagekit/stevedore/pkg/transfer"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates and executes the main stevedore CLI application with the given
// version and command-line arguments. This function serves as the main entry
// point for all CLI operations and handles global configuration.
//
// The function creates a CLI application with:
//   - Global --dir flag for specifying the project directory
//   - Command registration and routing
//   - Context propagation for cancellation support
//   - Exit code classification for verification outcomes
//
// Example usage:
//
//	# Run in current directory
//	stevedore migrate
//
//	# Run in a specific directory
//	stevedore --dir /path/to/project status
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "stevedore",
		Usage: "A tool for PostgreSQL migrations and bulk data transfer",
		Description: `stevedore is a CLI tool that applies versioned schema migrations exactly
once, moves table data between databases while preserving referential
integrity, and restores backup dumps.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, os.Chdir(cmd.String("dir"))
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			slog.Error("Error running command", "err", err)
			_ = p.Shutdowner.Shutdown(fx.ExitCode(exitCode(err)))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

// exitCode classifies a command failure. Verification-class failures exit 2
// because the underlying change already committed and only the post-condition
// check failed; everything else is fatal and exits 1.
func exitCode(err error) int {
	var (
		warning  *migrator.VerificationWarning
		mismatch *transfer.VerificationError
	)

	if stderrors.As(err, &warning) || stderrors.As(err, &mismatch) {
		return 2
	}
	return 1
}

func requireConfig(cfg *config.Config) func(context.Context, *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if cfg == nil {
			return ctx, errors.New("stevedore.yaml not found")
		}

		return ctx, nil
	}
}
