// YAML config loader with CUE validation integration
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Lower bounds for scheduling intervals.
const (
	MinRuleInterval    = time.Second
	MinSampleInterval  = 100 * time.Millisecond
	MinRefreshInterval = 100 * time.Millisecond
)

// General holds the global switches.
type General struct {
	Enabled  bool   `yaml:"enabled"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// Throughput configures the monitor.
type Throughput struct {
	Monitoring        bool          `yaml:"monitoring"`
	SampleInterval    time.Duration `yaml:"sample_interval"`
	WarningThreshold  float64       `yaml:"warning_threshold"`
	CriticalThreshold float64       `yaml:"critical_threshold"`
	AutoCleanup       bool          `yaml:"auto_cleanup"`
	Cooldown          time.Duration `yaml:"cooldown"`
	StatsInterval     time.Duration `yaml:"stats_interval"`
	TicksPerSecond    int           `yaml:"ticks_per_second"`
}

// ScopeSettings are per-scope overrides.
type ScopeSettings struct {
	Enabled *bool `yaml:"enabled"`
}

// Items configures consumable cleanup.
type Items struct {
	Enabled            bool                     `yaml:"enabled"`
	LifetimeSeconds    int                      `yaml:"lifetime_seconds"`
	WarningBeforeClear int                      `yaml:"warning_before_clear"`
	BroadcastWarnings  bool                     `yaml:"broadcast_warnings"`
	AllowList          []string                 `yaml:"allow_list"`
	DenyList           []string                 `yaml:"deny_list"`
	Scopes             map[string]ScopeSettings `yaml:"scopes"`
}

// Entities configures density limits.
type Entities struct {
	MaxPerPartition int     `yaml:"max_per_partition"`
	ClusterSize     int     `yaml:"cluster_size"`
	ClusterRadius   float64 `yaml:"cluster_radius"`
}

// Rule is a configured recurring sweep.
type Rule struct {
	Name       string        `yaml:"name"`
	Interval   time.Duration `yaml:"interval"`
	Scopes     []string      `yaml:"scopes"`
	Categories []string      `yaml:"categories"`
	Broadcast  *bool         `yaml:"broadcast"`
}

// BroadcastEnabled defaults to true when unset.
func (r Rule) BroadcastEnabled() bool { return r.Broadcast == nil || *r.Broadcast }

// Cleanup lists the recurring rules.
type Cleanup struct {
	Rules []Rule `yaml:"rules"`
}

// Database selects the stats sink.
type Database struct {
	Type      string `yaml:"type"`
	PoolSize  int    `yaml:"pool_size"`
	QueueSize int    `yaml:"queue_size"`
}

// Dashboard configures the terminal dashboard.
type Dashboard struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Config is the root configuration. A loaded Config is treated as
// immutable; reloads produce a new value.
type Config struct {
	General    General    `yaml:"general"`
	Throughput Throughput `yaml:"throughput"`
	Items      Items      `yaml:"items"`
	Entities   Entities   `yaml:"entities"`
	Cleanup    Cleanup    `yaml:"cleanup"`
	Database   Database   `yaml:"database"`
	Dashboard  Dashboard  `yaml:"dashboard"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: General{Enabled: true, LogLevel: "info"},
		Throughput: Throughput{
			Monitoring:        true,
			SampleInterval:    time.Second,
			WarningThreshold:  18,
			CriticalThreshold: 15,
			AutoCleanup:       true,
			Cooldown:          120 * time.Second,
			StatsInterval:     5 * time.Minute,
			TicksPerSecond:    20,
		},
		Items: Items{
			Enabled:            true,
			LifetimeSeconds:    300,
			WarningBeforeClear: 30,
			BroadcastWarnings:  true,
		},
		Entities: Entities{
			MaxPerPartition: 100,
			ClusterSize:     20,
			ClusterRadius:   5,
		},
		Database:  Database{Type: "none", PoolSize: 10, QueueSize: 256},
		Dashboard: Dashboard{Enabled: true, RefreshInterval: time.Second},
	}
}

// Load reads configPath, validates it against the CUE schema (the built-in
// one when cueSchemaPath is empty), decodes it over Default and normalises
// the result. The returned warnings describe corrected values.
func Load(configPath, cueSchemaPath string) (*Config, []string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read config: %w", err)
	}
	schema := embeddedSchema
	if cueSchemaPath != "" {
		if schema, err = os.ReadFile(cueSchemaPath); err != nil {
			return nil, nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
	}
	return Parse(configPath, data, schema)
}

// Parse is Load for in-memory data.
func Parse(name string, data, schema []byte) (*Config, []string, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, cfg.Normalize(), nil
	}
	if err := ValidateBytes(name, data, schema); err != nil {
		return nil, nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, nil, fmt.Errorf("cannot decode config: %w", err)
	}
	return cfg, cfg.Normalize(), nil
}

// ScopeEnabled reports whether scheduled sweeps may touch scope. Scopes
// without an entry are enabled.
func (c *Config) ScopeEnabled(scope string) bool {
	s, ok := c.Items.Scopes[scope]
	if !ok || s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// Normalize corrects out-of-range values in place and returns a warning for
// each correction.
func (c *Config) Normalize() []string {
	var warns []string
	warn := func(format string, args ...any) {
		warns = append(warns, fmt.Sprintf(format, args...))
	}
	def := Default()

	t := &c.Throughput
	if t.WarningThreshold < 0 || t.WarningThreshold > 20 {
		warn("throughput.warning_threshold %.2f outside [0,20], using %.0f", t.WarningThreshold, def.Throughput.WarningThreshold)
		t.WarningThreshold = def.Throughput.WarningThreshold
	}
	if t.CriticalThreshold < 0 || t.CriticalThreshold > 20 {
		warn("throughput.critical_threshold %.2f outside [0,20], using %.0f", t.CriticalThreshold, def.Throughput.CriticalThreshold)
		t.CriticalThreshold = def.Throughput.CriticalThreshold
	}
	if t.CriticalThreshold >= t.WarningThreshold {
		fixed := t.WarningThreshold - 2
		if fixed < 0 {
			fixed = 0
		}
		warn("throughput.critical_threshold %.2f must be below warning_threshold %.2f, using %.2f", t.CriticalThreshold, t.WarningThreshold, fixed)
		t.CriticalThreshold = fixed
	}
	if t.SampleInterval <= 0 {
		warn("throughput.sample_interval must be positive, using %s", def.Throughput.SampleInterval)
		t.SampleInterval = def.Throughput.SampleInterval
	} else if t.SampleInterval < MinSampleInterval {
		warn("throughput.sample_interval %s below %s, using %s", t.SampleInterval, MinSampleInterval, MinSampleInterval)
		t.SampleInterval = MinSampleInterval
	}
	if t.Cooldown <= 0 {
		warn("throughput.cooldown must be positive, using %s", def.Throughput.Cooldown)
		t.Cooldown = def.Throughput.Cooldown
	}
	if t.StatsInterval <= 0 {
		warn("throughput.stats_interval must be positive, using %s", def.Throughput.StatsInterval)
		t.StatsInterval = def.Throughput.StatsInterval
	}
	if t.TicksPerSecond <= 0 {
		warn("throughput.ticks_per_second must be positive, using %d", def.Throughput.TicksPerSecond)
		t.TicksPerSecond = def.Throughput.TicksPerSecond
	}

	it := &c.Items
	if it.LifetimeSeconds <= 0 {
		warn("items.lifetime_seconds must be positive, using %d", def.Items.LifetimeSeconds)
		it.LifetimeSeconds = def.Items.LifetimeSeconds
	} else if it.LifetimeSeconds < 60 {
		warn("items.lifetime_seconds %d is very short, items may vanish before players collect them", it.LifetimeSeconds)
	}
	if it.WarningBeforeClear < 0 {
		warn("items.warning_before_clear must not be negative, using %d", def.Items.WarningBeforeClear)
		it.WarningBeforeClear = def.Items.WarningBeforeClear
	}
	if it.WarningBeforeClear > it.LifetimeSeconds {
		fixed := it.LifetimeSeconds / 10
		if fixed < 30 {
			fixed = 30
		}
		if fixed > it.LifetimeSeconds {
			fixed = it.LifetimeSeconds / 10
		}
		warn("items.warning_before_clear %d exceeds lifetime %d, using %d", it.WarningBeforeClear, it.LifetimeSeconds, fixed)
		it.WarningBeforeClear = fixed
	}
	it.AllowList = upper(it.AllowList)
	it.DenyList = upper(it.DenyList)

	e := &c.Entities
	if e.MaxPerPartition <= 0 {
		warn("entities.max_per_partition must be positive, using %d", def.Entities.MaxPerPartition)
		e.MaxPerPartition = def.Entities.MaxPerPartition
	}
	if e.ClusterSize <= 0 {
		warn("entities.cluster_size must be positive, using %d", def.Entities.ClusterSize)
		e.ClusterSize = def.Entities.ClusterSize
	}
	if e.ClusterRadius <= 0 {
		warn("entities.cluster_radius must be positive, using %.1f", def.Entities.ClusterRadius)
		e.ClusterRadius = def.Entities.ClusterRadius
	}

	rules := c.Cleanup.Rules[:0]
	for i, r := range c.Cleanup.Rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		if r.Interval <= 0 {
			warn("cleanup rule %q has no positive interval, skipping it", r.Name)
			continue
		}
		if r.Interval < MinRuleInterval {
			warn("cleanup rule %q interval %s below %s, using %s", r.Name, r.Interval, MinRuleInterval, MinRuleInterval)
			r.Interval = MinRuleInterval
		}
		if len(r.Categories) == 0 {
			r.Categories = []string{"items"}
		}
		rules = append(rules, r)
	}
	c.Cleanup.Rules = rules

	d := &c.Database
	if d.Type == "" {
		d.Type = def.Database.Type
	}
	if d.PoolSize <= 0 {
		warn("database.pool_size must be positive, using %d", def.Database.PoolSize)
		d.PoolSize = def.Database.PoolSize
	} else if d.PoolSize > 50 {
		warn("database.pool_size %d is unusually large", d.PoolSize)
	}
	if d.QueueSize <= 0 {
		warn("database.queue_size must be positive, using %d", def.Database.QueueSize)
		d.QueueSize = def.Database.QueueSize
	}

	if c.Dashboard.RefreshInterval <= 0 {
		warn("dashboard.refresh_interval must be positive, using %s", def.Dashboard.RefreshInterval)
		c.Dashboard.RefreshInterval = def.Dashboard.RefreshInterval
	} else if c.Dashboard.RefreshInterval < MinRefreshInterval {
		warn("dashboard.refresh_interval %s below %s, using %s", c.Dashboard.RefreshInterval, MinRefreshInterval, MinRefreshInterval)
		c.Dashboard.RefreshInterval = MinRefreshInterval
	}
	if c.General.Debug {
		c.General.LogLevel = "debug"
	}
	return warns
}

func upper(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// KeyValue is one published configuration entry.
type KeyValue struct {
	Key   string
	Value string
}

// Published lists the effective settings shared with other servers through
// the stats store.
func (c *Config) Published() []KeyValue {
	return []KeyValue{
		{"general.enabled", fmt.Sprint(c.General.Enabled)},
		{"throughput.monitoring", fmt.Sprint(c.Throughput.Monitoring)},
		{"throughput.warning_threshold", fmt.Sprint(c.Throughput.WarningThreshold)},
		{"throughput.critical_threshold", fmt.Sprint(c.Throughput.CriticalThreshold)},
		{"throughput.auto_cleanup", fmt.Sprint(c.Throughput.AutoCleanup)},
		{"throughput.cooldown", c.Throughput.Cooldown.String()},
		{"items.enabled", fmt.Sprint(c.Items.Enabled)},
		{"items.lifetime_seconds", fmt.Sprint(c.Items.LifetimeSeconds)},
		{"items.warning_before_clear", fmt.Sprint(c.Items.WarningBeforeClear)},
		{"entities.max_per_partition", fmt.Sprint(c.Entities.MaxPerPartition)},
		{"entities.cluster_size", fmt.Sprint(c.Entities.ClusterSize)},
		{"entities.cluster_radius", fmt.Sprint(c.Entities.ClusterRadius)},
		{"cleanup.rules", fmt.Sprint(len(c.Cleanup.Rules))},
	}
}
