// Stats rows with greptime tags
package telemetry

import "time"

// Default table names used when writing to GreptimeDB or SQLite.
const (
	SweepTable    = "cleanup_sweeps"
	SnapshotTable = "server_metrics"
	ConfigTable   = "controller_config"
)

// SweepRow records one executed sweep that removed at least one object.
type SweepRow struct {
	Server    string    `json:"server"`   // TAG
	Scope     string    `json:"scope"`    // TAG
	Category  string    `json:"category"` // TAG
	Removed   int       `json:"removed"`  // FIELD
	Timestamp time.Time `json:"ts"`       // TIME INDEX
}

// MetricSnapshot is the periodic aggregate the monitor emits.
type MetricSnapshot struct {
	AvgThroughput    float64 `json:"avg_throughput"`
	LiveObjects      int     `json:"live_objects"`
	LoadedPartitions int     `json:"loaded_partitions"`
	MemoryUsed       uint64  `json:"memory_used"`
	MemoryMax        uint64  `json:"memory_max"`
}

// SnapshotRow is a MetricSnapshot stamped with its origin.
type SnapshotRow struct {
	Server string `json:"server"` // TAG
	MetricSnapshot
	Timestamp time.Time `json:"ts"` // TIME INDEX
}

// ConfigRow is one effective configuration value, upserted by key.
type ConfigRow struct {
	Server    string    `json:"server"` // TAG
	Key       string    `json:"key"`    // TAG
	Value     string    `json:"value"`  // FIELD
	Timestamp time.Time `json:"ts"`     // TIME INDEX
}

// Record kinds in a JSONL stats log.
const (
	KindSweep    = "sweep"
	KindSnapshot = "snapshot"
	KindConfig   = "config"
)

// Record wraps one row for line-oriented logs. Exactly one payload is set.
type Record struct {
	Kind     string       `json:"kind"`
	Sweep    *SweepRow    `json:"sweep,omitempty"`
	Snapshot *SnapshotRow `json:"snapshot,omitempty"`
	Config   *ConfigRow   `json:"config,omitempty"`
}
