package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"worldclear/internal/config"
	"worldclear/internal/stats"
)

var (
	historyServer    string
	historyLimit     int
	historySnapshots bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sweeps from the SQLite stats store",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := config.LoadRuntime(envFile)
		if err != nil {
			return err
		}
		store, err := stats.OpenSQLite(rt.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if historySnapshots {
			rows, err := store.RecentSnapshots(cmd.Context(), historyServer, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "TIME\tSERVER\tAVG TPS\tOBJECTS\tPARTITIONS\tMEMORY")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%d\t%s / %s\n",
					humanize.Time(r.Timestamp), r.Server, r.AvgThroughput, r.LiveObjects, r.LoadedPartitions,
					humanize.IBytes(r.MemoryUsed), humanize.IBytes(r.MemoryMax))
			}
			return nil
		}

		rows, err := store.RecentSweeps(cmd.Context(), historyServer, historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "TIME\tSERVER\tSCOPE\tCATEGORY\tREMOVED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", humanize.Time(r.Timestamp), r.Server, r.Scope, r.Category, r.Removed)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyServer, "server", "", "Only show rows from this server")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of rows to show")
	historyCmd.Flags().BoolVar(&historySnapshots, "snapshots", false, "Show metric snapshots instead of sweeps")
}
