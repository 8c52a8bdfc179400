package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"worldclear/internal/config"
	"worldclear/internal/logging"
	"worldclear/internal/stats"
	"worldclear/internal/telemetry"
)

func sinkConfig(kind string) *config.Config {
	cfg := config.Default()
	cfg.Database.Type = kind
	return cfg
}

func TestNewSinkPrintOnly(t *testing.T) {
	sink, closeSink, err := newSink(sinkConfig("sqlite"), config.Runtime{}, true, "", logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	defer closeSink()
	if _, ok := sink.(*stats.StdoutSink); !ok {
		t.Fatalf("expected *stats.StdoutSink, got %T", sink)
	}
}

func TestNewSinkNone(t *testing.T) {
	sink, closeSink, err := newSink(sinkConfig("none"), config.Runtime{}, false, "", logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	defer closeSink()
	if _, ok := sink.(stats.Discard); !ok {
		t.Fatalf("expected stats.Discard, got %T", sink)
	}
}

func TestNewSinkGreptimeFallback(t *testing.T) {
	sink, closeSink, err := newSink(sinkConfig("greptime"), config.Runtime{}, false, "", logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	defer closeSink()
	if _, ok := sink.(*stats.StdoutSink); !ok {
		t.Fatalf("expected *stats.StdoutSink fallback, got %T", sink)
	}
}

func TestNewSinkSQLite(t *testing.T) {
	rt := config.Runtime{SQLitePath: filepath.Join(t.TempDir(), "stats.db")}
	sink, closeSink, err := newSink(sinkConfig("sqlite"), rt, false, "", logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	if _, ok := sink.(*stats.SQLiteStore); !ok {
		t.Fatalf("expected *stats.SQLiteStore, got %T", sink)
	}
	if err := closeSink(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewSinkLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.jsonl")
	sink, closeSink, err := newSink(sinkConfig("none"), config.Runtime{}, false, path, logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	defer closeSink()
	ms, ok := sink.(*stats.MultiSink)
	if !ok {
		t.Fatalf("expected *stats.MultiSink, got %T", sink)
	}
	if ms.Len() != 2 {
		t.Fatalf("expected 2 sinks, got %d", ms.Len())
	}
	row := telemetry.SweepRow{Server: "s1", Scope: "overworld", Category: "items", Removed: 3, Timestamp: time.Now()}
	if err := sink.WriteSweep(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected log file to be non-empty")
	}
}

func TestNewSinkFileType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, closeSink, err := newSink(sinkConfig("file"), config.Runtime{}, false, path, logging.Discard())
	if err != nil {
		t.Fatalf("newSink returned error: %v", err)
	}
	defer closeSink()
	if _, ok := sink.(*stats.FileSink); !ok {
		t.Fatalf("expected a single *stats.FileSink, got %T", sink)
	}
}

func TestNewSinkUnknownType(t *testing.T) {
	if _, _, err := newSink(sinkConfig("redis"), config.Runtime{}, false, "", logging.Discard()); err == nil {
		t.Fatalf("expected error for unknown database type")
	}
}

func TestResolveScenario(t *testing.T) {
	sc, err := resolveScenario("steady")
	if err != nil {
		t.Fatalf("resolve built-in: %v", err)
	}
	if len(sc.Scopes) == 0 {
		t.Fatalf("expected scopes in built-in scenario")
	}
	if _, err := resolveScenario("no-such-scenario"); err == nil {
		t.Fatalf("expected error for unknown scenario")
	}
}
