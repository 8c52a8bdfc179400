package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"worldclear/internal/config"
	"worldclear/internal/logging"
)

var (
	configPath string
	schemaPath string
	envFile    string
	logLevel   string
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "worldclear",
	Short: "Adaptive cleanup controller for a simulated world",
	Long: "worldclear watches world throughput, sweeps aged items, dense clusters and hostile " +
		"creatures on schedules and under load, and records what it removed.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "config/worldclear.yaml", "Path to controller configuration YAML")
	pf.StringVar(&schemaPath, "schema", "", "Path to CUE schema file (built-in schema when empty)")
	pf.StringVar(&envFile, "env-file", ".env", "Optional dotenv file with runtime settings")
	pf.StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.BoolVar(&jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadConfig reads the configuration file, falling back to the built-in
// defaults when the file does not exist.
func loadConfig() (*config.Config, []string, error) {
	cfg, warns, err := config.Load(configPath, schemaPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		warns = append(cfg.Normalize(), fmt.Sprintf("%s not found, using built-in defaults", configPath))
		return cfg, warns, nil
	}
	return cfg, warns, err
}

func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	level := cfg.General.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(logging.Options{Level: level, JSON: jsonLogs, Output: out})
}
