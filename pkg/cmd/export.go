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

type exportParams struct {
	fx.In

	Config *config.Config
}

// export creates the export command for dumping configured tables into a
// transfer payload file.
//
// Command flags:
//   - --out, -o: Payload file to write (required)
//
// Example usage:
//
//	stevedore export --out export.yaml
func export(p exportParams) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export configured tables to a transfer payload",
		Description: `Export every configured table from the database into a payload file.

Export is read-only. Tables are dumped completely, along with their column
headers and row counts, so a later import can verify it moved everything.
The payload file is the interchange format for moving data between
environments.`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "payload file to write",
				Required: true,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runExport(ctx, cmd, p)
		},
	}
}

func runExport(ctx context.Context, cmd *cli.Command, p exportParams) error {
	out := cmd.String("out")

	plan, err := loadPlan(p.Config)
	if err != nil {
		return err
	}

	client, err := connect(ctx, p.Config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	runner := transfer.NewRunner(client)
	slog.Info("Starting export", "run_id", runner.RunID(), "tables", len(plan.InsertOrder), "out", out)

	payload, err := runner.Export(ctx, plan)
	if err != nil {
		return errors.Wrap(err, "export failed")
	}

	if err := transfer.WritePayloadFile(out, payload); err != nil {
		return err
	}

	total := 0
	for _, data := range payload.Tables {
		total += data.Count
	}

	fmt.Printf("Exported %d tables (%d rows) to %s\n", len(payload.Tables), total, out)
	return nil
}
