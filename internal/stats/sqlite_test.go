package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"worldclear/internal/telemetry"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "stats.db")
	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	base := time.Unix(1700000000, 0).UTC()
	for i, scope := range []string{"alpha", "beta", "alpha"} {
		row := telemetry.SweepRow{Server: "lobby", Scope: scope, Category: "items", Removed: i + 1, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := st.WriteSweep(row); err != nil {
			t.Fatalf("WriteSweep: %v", err)
		}
	}
	_ = st.WriteSweep(telemetry.SweepRow{Server: "other", Scope: "alpha", Removed: 9, Timestamp: base})
	_ = st.WriteSnapshot(telemetry.SnapshotRow{Server: "lobby", MetricSnapshot: telemetry.MetricSnapshot{AvgThroughput: 18.5, MemoryMax: 2048}, Timestamp: base})
	_ = st.WriteConfig(telemetry.ConfigRow{Server: "lobby", Key: "items.enabled", Value: "true", Timestamp: base})
	_ = st.WriteConfig(telemetry.ConfigRow{Server: "lobby", Key: "items.enabled", Value: "false", Timestamp: base.Add(time.Second)})

	ctx := context.Background()
	sweeps, err := st.RecentSweeps(ctx, "lobby", 2)
	if err != nil {
		t.Fatalf("RecentSweeps: %v", err)
	}
	if len(sweeps) != 2 || sweeps[0].Removed != 3 || sweeps[1].Scope != "beta" {
		t.Fatalf("unexpected sweeps: %+v", sweeps)
	}
	if !sweeps[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("timestamp = %s", sweeps[0].Timestamp)
	}
	all, _ := st.RecentSweeps(ctx, "", 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 sweeps across servers, got %d", len(all))
	}

	snaps, err := st.RecentSnapshots(ctx, "lobby", 10)
	if err != nil || len(snaps) != 1 || snaps[0].AvgThroughput != 18.5 || snaps[0].MemoryMax != 2048 {
		t.Fatalf("snapshots = %+v, %v", snaps, err)
	}

	cfg, err := st.ConfigValues(ctx, "lobby")
	if err != nil || cfg["items.enabled"] != "false" || len(cfg) != 1 {
		t.Fatalf("config = %v, %v", cfg, err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// reopening must not re-run migrations
	st, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	all, _ = st.RecentSweeps(ctx, "", 0)
	if len(all) != 4 {
		t.Fatalf("rows lost on reopen: %d", len(all))
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
