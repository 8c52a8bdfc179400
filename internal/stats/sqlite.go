package stats

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"worldclear/internal/stats/migrations"
	"worldclear/internal/telemetry"
)

// SQLiteStore keeps stats rows in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// OpenSQLite opens path and applies embedded migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := clean + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyMigrations(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var n int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if n > 0 {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteSweep inserts a sweep row.
func (s *SQLiteStore) WriteSweep(r telemetry.SweepRow) error {
	_, err := s.db.Exec(`INSERT INTO cleanup_sweeps (server, scope, category, removed, ts) VALUES (?, ?, ?, ?, ?)`,
		r.Server, r.Scope, r.Category, r.Removed, toMillis(r.Timestamp))
	if err != nil {
		return fmt.Errorf("insert sweep: %w", err)
	}
	return nil
}

// WriteSnapshot inserts a metric snapshot.
func (s *SQLiteStore) WriteSnapshot(r telemetry.SnapshotRow) error {
	_, err := s.db.Exec(`INSERT INTO server_metrics (server, avg_throughput, live_objects, loaded_partitions, memory_used, memory_max, ts)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Server, r.AvgThroughput, r.LiveObjects, r.LoadedPartitions, int64(r.MemoryUsed), int64(r.MemoryMax), toMillis(r.Timestamp))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// WriteConfig upserts a configuration value by server and key.
func (s *SQLiteStore) WriteConfig(r telemetry.ConfigRow) error {
	_, err := s.db.Exec(`INSERT INTO controller_config (server, key, value, ts) VALUES (?, ?, ?, ?)
ON CONFLICT (server, key) DO UPDATE SET value = excluded.value, ts = excluded.ts`,
		r.Server, r.Key, r.Value, toMillis(r.Timestamp))
	if err != nil {
		return fmt.Errorf("upsert config: %w", err)
	}
	return nil
}

// RecentSweeps returns up to limit sweeps, newest first. An empty server
// selects every server.
func (s *SQLiteStore) RecentSweeps(ctx context.Context, server string, limit int) ([]telemetry.SweepRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT server, scope, category, removed, ts FROM cleanup_sweeps
WHERE (? = '' OR server = ?) ORDER BY ts DESC, id DESC LIMIT ?`, server, server, limit)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()
	var out []telemetry.SweepRow
	for rows.Next() {
		var r telemetry.SweepRow
		var ts int64
		if err := rows.Scan(&r.Server, &r.Scope, &r.Category, &r.Removed, &ts); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		r.Timestamp = fromMillis(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSnapshots returns up to limit metric snapshots, newest first.
func (s *SQLiteStore) RecentSnapshots(ctx context.Context, server string, limit int) ([]telemetry.SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT server, avg_throughput, live_objects, loaded_partitions, memory_used, memory_max, ts
FROM server_metrics WHERE (? = '' OR server = ?) ORDER BY ts DESC, id DESC LIMIT ?`, server, server, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	var out []telemetry.SnapshotRow
	for rows.Next() {
		var r telemetry.SnapshotRow
		var used, total, ts int64
		if err := rows.Scan(&r.Server, &r.AvgThroughput, &r.LiveObjects, &r.LoadedPartitions, &used, &total, &ts); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.MemoryUsed, r.MemoryMax = uint64(used), uint64(total)
		r.Timestamp = fromMillis(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ConfigValues returns the published configuration of server keyed by name.
func (s *SQLiteStore) ConfigValues(ctx context.Context, server string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM controller_config WHERE server = ?`, server)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
