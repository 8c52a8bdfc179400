package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"worldclear/internal/config"
	"worldclear/internal/stats"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a stats log file",
	Long:  "replay feeds stats records from a JSONL log back into the configured database or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		rt, err := config.LoadRuntime(envFile)
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg, cmd.ErrOrStderr())
		sink, closeSink, err := newSink(cfg, rt, replayPrintOnly, "", log)
		if err != nil {
			return err
		}
		defer closeSink()

		n, err := stats.ReplayLogFile(replayInput, sink, replaySpeed)
		log.Info("replay finished", "records", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to stats log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print records to STDOUT instead of writing to the database")
	replayCmd.MarkFlagRequired("input")
}
