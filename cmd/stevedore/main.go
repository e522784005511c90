package main

import (
	"context"
	"os"

	"github.com/voyagekit/stevedore/pkg/cmd"
	"github.com/voyagekit/stevedore/pkg/config"
	"go.uber.org/fx"
)

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	fx.New(
		fx.NopLogger,
		fx.Provide(
			context.Background,
			func() *cmd.Version {
				return &cmd.Version{Version: version, Commit: commit, Timestamp: date}
			},
		),
		fx.Supply(os.Args),
		config.Module,
		cmd.Module,
	).Run()
}
