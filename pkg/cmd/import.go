package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"github.com/voyagekit/stevedore/pkg/config"
	"github.com/voyagekit/stevedore/pkg/transfer"
	"go.uber.org/fx"
)

type importParams struct {
	fx.In

	Config *config.Config
}

// importCmd creates the import command for replacing target data from a
// transfer payload file.
//
// Command flags:
//   - --in, -i: Payload file to read (required)
//   - --skip-verify: Skip post-import row count verification
//
// Example usage:
//
//	stevedore import --in export.yaml
func importCmd(p importParams) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a transfer payload, replacing target data",
		Description: `Replace the target database's data with the payload's contents.

Existing rows are deleted child-tables-first, then the payload's rows are
inserted parent-tables-first so foreign key constraints hold throughout.
This command REPLACES data in the configured tables; it assumes exclusive
access to the target for the duration of the run.

After the import, each table's row count is compared against the count the
payload declares. A mismatch exits 2: the imported rows remain committed
and the discrepancy needs operator review.`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "in",
				Aliases:  []string{"i"},
				Usage:    "payload file to read",
				Required: true,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "skip-verify",
				Usage: "skip post-import row count verification",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runImport(ctx, cmd, p)
		},
	}
}

func runImport(ctx context.Context, cmd *cli.Command, p importParams) error {
	in := cmd.String("in")
	skipVerify := cmd.Bool("skip-verify")

	plan, err := loadPlan(p.Config)
	if err != nil {
		return err
	}

	payload, err := transfer.LoadPayloadFile(in)
	if err != nil {
		return err
	}

	client, err := connect(ctx, p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	runner := transfer.NewRunner(client)
	slog.Info("Starting import", "run_id", runner.RunID(), "tables", len(plan.InsertOrder), "in", in)

	counts, err := runner.Import(ctx, plan, payload)
	if err != nil {
		return errors.Wrap(err, "import failed")
	}

	for _, count := range counts {
		fmt.Printf("  ✅ %s: %d rows\n", count.Table, count.Rows)
	}

	if skipVerify {
		fmt.Println("Import complete (verification skipped).")
		return nil
	}

	if err := runner.VerifyCounts(ctx, payload); err != nil {
		fmt.Println("⚠️  Row count verification failed. The imported rows remain committed.")
		return err
	}

	fmt.Println("Import complete. All row counts verified.")
	return nil
}
