package cmd

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/voyagekit/stevedore/pkg/config"
	"github.com/voyagekit/stevedore/pkg/migrator"
	"github.com/voyagekit/stevedore/pkg/postgres"
	"github.com/voyagekit/stevedore/pkg/transfer"
)

// connect opens the configured database connection. A missing connection
// string fails before any network activity.
func connect(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	client, err := postgres.Connect(ctx, dsn, postgres.Options{
		ConnectTimeout: cfg.ConnectTimeout(),
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Connected to database", "dsn", postgres.RedactDSN(dsn))
	return client, nil
}

// loadPlan builds the transfer plan from the configured tables.
func loadPlan(cfg *config.Config) (*transfer.Plan, error) {
	if len(cfg.Tables) == 0 {
		return nil, errors.New("no tables configured for transfer")
	}

	if err := cfg.ValidateTables(); err != nil {
		return nil, err
	}

	tables := make([]transfer.Table, len(cfg.Tables))
	for i, t := range cfg.Tables {
		tables[i] = transfer.Table{
			Name:      t.Name,
			DependsOn: t.DependsOn,
			Required:  t.Required,
		}
	}

	return transfer.NewPlan(tables)
}

// expectationsFor returns the verification probes configured for a migration
// version.
func expectationsFor(cfg *config.Config, version string) []migrator.Expectation {
	var exps []migrator.Expectation
	for _, e := range cfg.Expectations {
		if e.Migration != version {
			continue
		}

		exps = append(exps, migrator.Expectation{
			Kind:    migrator.ExpectationKind(e.Kind),
			Name:    e.Name,
			MinRows: e.MinRows,
		})
	}
	return exps
}
