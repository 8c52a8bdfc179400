package main

import (
	"errors"
	"fmt"
	"log/slog"

	"worldclear/internal/config"
	"worldclear/internal/stats"
)

const defaultStatsLog = "data/worldclear-stats.jsonl"

// newSink builds the stats sink from database.type, the runtime settings
// and the optional JSONL export. The returned func closes whatever was
// opened.
func newSink(cfg *config.Config, rt config.Runtime, printOnly bool, logFile string, log *slog.Logger) (stats.Sink, func() error, error) {
	var (
		base    stats.Sink
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	kind := cfg.Database.Type
	if printOnly {
		kind = "stdout"
	}
	switch kind {
	case "", "none":
		base = stats.Discard{}
	case "stdout":
		base = stats.NewStdoutSink()
	case "file":
		path := logFile
		if path == "" {
			path = defaultStatsLog
		}
		fs, err := stats.NewFileSink(path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, fs.Close)
		base, logFile = fs, ""
	case "sqlite":
		store, err := stats.OpenSQLite(rt.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		base = store
	case "greptime":
		if rt.GreptimeEndpoint == "" {
			log.Warn("GREPTIMEDB_ENDPOINT not set, printing stats to STDOUT")
			base = stats.NewStdoutSink()
			break
		}
		gs, err := stats.NewGreptimeSink(rt.GreptimeEndpoint, rt.GreptimeDatabase, stats.GreptimeTables{
			Sweeps:    rt.SweepTable,
			Snapshots: rt.SnapshotTable,
			Config:    rt.ConfigTable,
		})
		if err != nil {
			return nil, nil, err
		}
		base = gs
	default:
		return nil, nil, fmt.Errorf("unknown database type %q", kind)
	}

	if logFile == "" {
		return base, closeAll, nil
	}
	fs, err := stats.NewFileSink(logFile)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, fs.Close)
	return stats.NewMultiSink(base, fs), closeAll, nil
}
