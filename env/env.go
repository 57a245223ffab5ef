package env

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const DefaultEnvFile = ".env"

// InitConfig fills every config from the environment. DefaultEnvFile is
// loaded first when it exists.
func InitConfig(configs ...any) error {
	file := DefaultEnvFile
	if _, err := os.Stat(file); err != nil {
		file = ""
	}
	return Load(file, configs...)
}

// Load reads file into the environment and processes configs in order.
// Variables already set take precedence over the file. An empty file
// name skips loading.
func Load(file string, configs ...any) error {
	if file != "" {
		if err := godotenv.Load(file); err != nil {
			return errors.Wrapf(err, "failed to load env file %s", file)
		}
	}

	for _, config := range configs {
		if err := envconfig.Process("", config); err != nil {
			return errors.Wrap(err, "failed to envconfig.Process")
		}
	}

	return nil
}
