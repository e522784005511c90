package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/voyagekit/stevedore/pkg/consts"
	"go.uber.org/fx"
)

var Module = fx.Module("config", fx.Provide(
	// Function attempts to load the configuration from stevedore.yaml if it
	// exists. Returns nil if the file doesn't exist, allowing commands that
	// don't require config (like help, version) to function properly.
	// A .env file in the working directory is loaded first so that
	// environment references in the config resolve.
	func() (*Config, error) {
		_ = godotenv.Load()

		if _, err := os.Stat(consts.ConfigFile); os.IsNotExist(err) {
			return nil, nil
		}

		return LoadConfigFile(consts.ConfigFile)
	},
))
