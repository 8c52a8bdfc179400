package stats

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"worldclear/internal/telemetry"
)

// greptimeClient is the subset of the ingester client used here.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeTables names the destination tables.
type GreptimeTables struct {
	Sweeps    string
	Snapshots string
	Config    string
}

// DefaultGreptimeTables returns the standard table names.
func DefaultGreptimeTables() GreptimeTables {
	return GreptimeTables{
		Sweeps:    telemetry.SweepTable,
		Snapshots: telemetry.SnapshotTable,
		Config:    telemetry.ConfigTable,
	}
}

// GreptimeSink writes stats rows to GreptimeDB via the ingester client.
type GreptimeSink struct {
	client  greptimeClient
	tables  GreptimeTables
	timeout time.Duration
}

// NewGreptimeSink connects to endpoint ("host" or "host:port", default port
// 4001) and writes into database.
func NewGreptimeSink(endpoint, database string, tables GreptimeTables) (*GreptimeSink, error) {
	host, port := endpoint, 4001
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid greptime port %q: %w", p, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	return &GreptimeSink{client: client, tables: tables, timeout: 5 * time.Second}, nil
}

func (s *GreptimeSink) write(name string, tbl *table.Table) error {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.client.Write(ctx, tbl); err != nil {
		return fmt.Errorf("greptime write %s: %w", name, err)
	}
	return nil
}

// WriteSweep inserts a sweep row.
func (s *GreptimeSink) WriteSweep(r telemetry.SweepRow) error {
	tbl, err := table.New(s.tables.Sweeps)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("server"), tagColumn("scope"), tagColumn("category"),
		fieldColumn("removed", types.INT64),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(r.Server, r.Scope, r.Category, int64(r.Removed), r.Timestamp); err != nil {
		return err
	}
	return s.write(s.tables.Sweeps, tbl)
}

// WriteSnapshot inserts a metric snapshot row.
func (s *GreptimeSink) WriteSnapshot(r telemetry.SnapshotRow) error {
	tbl, err := table.New(s.tables.Snapshots)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("server"),
		fieldColumn("avg_throughput", types.FLOAT64),
		fieldColumn("live_objects", types.INT64),
		fieldColumn("loaded_partitions", types.INT64),
		fieldColumn("memory_used", types.UINT64),
		fieldColumn("memory_max", types.UINT64),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(r.Server, r.AvgThroughput, int64(r.LiveObjects), int64(r.LoadedPartitions),
		r.MemoryUsed, r.MemoryMax, r.Timestamp); err != nil {
		return err
	}
	return s.write(s.tables.Snapshots, tbl)
}

// WriteConfig inserts a configuration value. Rows share server and key
// tags, so queries read the latest value per key.
func (s *GreptimeSink) WriteConfig(r telemetry.ConfigRow) error {
	tbl, err := table.New(s.tables.Config)
	if err != nil {
		return err
	}
	if err := addColumns(tbl,
		tagColumn("server"), tagColumn("key"),
		fieldColumn("value", types.STRING),
	); err != nil {
		return err
	}
	if err := tbl.AddRow(r.Server, r.Key, r.Value, r.Timestamp); err != nil {
		return err
	}
	return s.write(s.tables.Config, tbl)
}

type column func(*table.Table) error

func tagColumn(name string) column {
	return func(t *table.Table) error { return t.AddTagColumn(name, types.STRING) }
}

func fieldColumn(name string, typ types.ColumnType) column {
	return func(t *table.Table) error { return t.AddFieldColumn(name, typ) }
}

// addColumns adds cols followed by the ts time index.
func addColumns(tbl *table.Table, cols ...column) error {
	for _, c := range cols {
		if err := c(tbl); err != nil {
			return err
		}
	}
	return tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)
}
