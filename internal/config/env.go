package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Runtime holds deployment settings taken from the environment.
type Runtime struct {
	ServerName       string `env:"WORLDCLEAR_SERVER_NAME" envDefault:"local"`
	AdminAddr        string `env:"WORLDCLEAR_ADMIN_ADDR" envDefault:":8080"`
	SQLitePath       string `env:"WORLDCLEAR_SQLITE_PATH" envDefault:"data/worldclear.db"`
	OTLPEndpoint     string `env:"WORLDCLEAR_OTLP_ENDPOINT"`
	GreptimeEndpoint string `env:"GREPTIMEDB_ENDPOINT"`
	GreptimeDatabase string `env:"GREPTIMEDB_DATABASE" envDefault:"public"`
	SweepTable       string `env:"GREPTIMEDB_SWEEP_TABLE" envDefault:"cleanup_sweeps"`
	SnapshotTable    string `env:"GREPTIMEDB_METRICS_TABLE" envDefault:"server_metrics"`
	ConfigTable      string `env:"GREPTIMEDB_CONFIG_TABLE" envDefault:"controller_config"`
}

// LoadRuntime reads an optional dotenv file and then parses the
// environment. A missing dotenv file is not an error.
func LoadRuntime(dotenv string) (Runtime, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return Runtime{}, fmt.Errorf("parse environment: %w", err)
	}
	return rt, nil
}
