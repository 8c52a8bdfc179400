// Package controller assembles the cleanup components around a single
// loop and exposes them to the command surfaces.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"worldclear/internal/config"
	"worldclear/internal/logging"
	"worldclear/internal/loop"
	"worldclear/internal/monitor"
	"worldclear/internal/orchestrator"
	"worldclear/internal/scan"
	"worldclear/internal/sweep"
	"worldclear/internal/telemetry"
	"worldclear/internal/world"
)

// ErrDisabled is returned by Run when general.enabled is false.
var ErrDisabled = errors.New("controller disabled by configuration")

// Recorder is the stats sink the controller reports to.
type Recorder interface {
	RecordSweep(scope, category string, removed int)
	RecordMetricSnapshot(telemetry.MetricSnapshot)
	UpsertConfigValue(key, value string)
}

type discardRecorder struct{}

func (discardRecorder) RecordSweep(string, string, int)               {}
func (discardRecorder) RecordMetricSnapshot(telemetry.MetricSnapshot) {}
func (discardRecorder) UpsertConfigValue(string, string)              {}

// Loader re-reads configuration for Reload.
type Loader func() (*config.Config, []string, error)

// Options wires a Controller.
type Options struct {
	Config     *config.Config
	World      world.World
	Principals world.Principals
	Source     monitor.Source
	Recorder   Recorder
	Loader     Loader
	Logger     *slog.Logger
	// Loop is created when nil.
	Loop *loop.Loop
}

// Controller owns the scanner, executor, monitor and orchestrator.
type Controller struct {
	loop     *loop.Loop
	world    world.World
	scanner  *scan.Scanner
	executor *sweep.Executor
	monitor  *monitor.Monitor
	orch     *orchestrator.Orchestrator
	recorder Recorder
	loader   Loader
	log      *slog.Logger
	now      func() time.Time

	mu  sync.RWMutex
	cfg *config.Config
}

// New builds a Controller from opts. Config defaults to config.Default().
func New(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
		cfg.Normalize()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = discardRecorder{}
	}
	lp := opts.Loop
	if lp == nil {
		lp = loop.New(256)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	c := &Controller{
		loop:     lp,
		world:    opts.World,
		recorder: rec,
		loader:   opts.Loader,
		log:      log,
		now:      time.Now,
		cfg:      cfg,
	}
	c.scanner = scan.New(opts.World, opts.Principals, ScanOptions(cfg))
	c.executor = sweep.NewExecutor(opts.World, c.scanner, rec)
	rules, warns := Rules(cfg)
	for _, w := range warns {
		log.Warn("invalid cleanup rule", "detail", w)
	}
	c.orch = orchestrator.New(opts.World, c.scanner, c.executor, lp, OrchestratorSettings(cfg), rules)
	c.orch.AddNotifier(logNotifier{log: log})
	c.monitor = monitor.New(opts.Source, opts.World, c.orch, rec, MonitorSettings(cfg))
	return c
}

type logNotifier struct{ log *slog.Logger }

func (n logNotifier) Broadcast(msg string) { n.log.Info("broadcast", "message", msg) }

// AddNotifier registers an additional broadcast receiver.
func (c *Controller) AddNotifier(n orchestrator.Notifier) { c.orch.AddNotifier(n) }

// Loop returns the loop all controller work runs on.
func (c *Controller) Loop() *loop.Loop { return c.loop }

// Config returns the active configuration snapshot.
func (c *Controller) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Run starts rule timers and sampling, then runs the loop until ctx is
// cancelled. Everything scheduled is cancelled on return.
func (c *Controller) Run(ctx context.Context) error {
	cfg := c.Config()
	if !cfg.General.Enabled {
		return ErrDisabled
	}
	ctx = logging.NewContext(ctx, c.log)
	if err := c.loop.Post(func(ctx context.Context) { c.start(ctx, cfg) }); err != nil {
		return err
	}
	c.loop.Run(ctx)
	c.orch.Stop()
	c.monitor.Stop()
	return nil
}

func (c *Controller) start(ctx context.Context, cfg *config.Config) {
	log := logging.FromContext(ctx)
	c.publish(cfg)
	if cfg.Items.Enabled {
		c.orch.Start(ctx)
	} else {
		log.Info("item cleanup disabled, rule timers not started")
	}
	if cfg.Throughput.Monitoring {
		c.monitor.Start(c.loop)
		log.Info("throughput monitor started", "interval", cfg.Throughput.SampleInterval)
	}
}

func (c *Controller) publish(cfg *config.Config) {
	for _, kv := range cfg.Published() {
		c.recorder.UpsertConfigValue(kv.Key, kv.Value)
	}
}

// Reload re-reads configuration and applies it on the loop. When loading
// fails the active configuration stays in place.
func (c *Controller) Reload(ctx context.Context) error {
	if c.loader == nil {
		return errors.New("reload: no configuration source")
	}
	cfg, warns, err := c.loader()
	if err != nil {
		c.log.Error("reload failed, keeping current configuration", "err", err)
		return fmt.Errorf("reload: %w", err)
	}
	for _, w := range warns {
		c.log.Warn("configuration corrected", "detail", w)
	}
	return c.Apply(ctx, cfg)
}

// Apply installs cfg on the loop.
func (c *Controller) Apply(ctx context.Context, cfg *config.Config) error {
	_, err := loop.Call(ctx, c.loop, func(ctx context.Context) struct{} {
		c.apply(ctx, cfg)
		return struct{}{}
	})
	return err
}

func (c *Controller) apply(ctx context.Context, cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()

	c.scanner.Configure(ScanOptions(cfg))
	c.monitor.Configure(MonitorSettings(cfg))
	if cfg.Throughput.Monitoring && cfg.General.Enabled {
		c.monitor.Start(c.loop)
	} else {
		c.monitor.Stop()
	}
	rules, warns := Rules(cfg)
	for _, w := range warns {
		logging.FromContext(ctx).Warn("invalid cleanup rule", "detail", w)
	}
	c.orch.Reload(ctx, OrchestratorSettings(cfg), rules, cfg.General.Enabled && cfg.Items.Enabled)
	c.publish(cfg)
	logging.FromContext(ctx).Info("configuration applied", "rules", len(c.orch.Rules()))
}

type sweepResult struct {
	n   int
	err error
}

// ManualSweep runs one category on the loop. An empty scope targets every
// scope.
func (c *Controller) ManualSweep(ctx context.Context, scope string, cat orchestrator.Category) (int, error) {
	res, err := loop.Call(ctx, c.loop, func(ctx context.Context) sweepResult {
		n, err := c.orch.ManualSweep(ctx, scope, cat)
		return sweepResult{n, err}
	})
	if err != nil {
		return 0, err
	}
	return res.n, res.err
}

// Emergency runs the emergency sweep on the loop.
func (c *Controller) Emergency(ctx context.Context) (int, error) {
	return loop.Call(ctx, c.loop, c.orch.Emergency)
}

// Clear is the operator command: "items" removes every unprotected
// consumable, "all" runs the emergency sweep, other names are categories.
func (c *Controller) Clear(ctx context.Context, kind, scope string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "all":
		return c.Emergency(ctx)
	case "items", "":
		return c.ManualSweep(ctx, scope, orchestrator.ItemsForce)
	default:
		cat, err := orchestrator.ParseCategory(kind)
		if err != nil {
			return 0, err
		}
		return c.ManualSweep(ctx, scope, cat)
	}
}

// ScopeReport describes one scope.
type ScopeReport struct {
	Name       string               `json:"name"`
	Enabled    bool                 `json:"enabled"`
	Stats      scan.Statistics      `json:"stats"`
	Summary    string               `json:"summary"`
	Overloaded []scan.PartitionLoad `json:"overloaded,omitempty"`
}

func (c *Controller) report(name string) ScopeReport {
	st := c.scanner.Classify(name)
	return ScopeReport{
		Name:       name,
		Enabled:    c.Config().ScopeEnabled(name),
		Stats:      st,
		Summary:    st.String(),
		Overloaded: c.scanner.FindOverloadedPartitions(name),
	}
}

// Scope reports on a single scope.
func (c *Controller) Scope(ctx context.Context, name string) (ScopeReport, error) {
	res, err := loop.Call(ctx, c.loop, func(context.Context) *ScopeReport {
		if !c.world.HasScope(name) {
			return nil
		}
		r := c.report(name)
		return &r
	})
	if err != nil {
		return ScopeReport{}, err
	}
	if res == nil {
		return ScopeReport{}, fmt.Errorf("%w: %q", orchestrator.ErrUnknownScope, name)
	}
	return *res, nil
}

// Scopes reports on every scope.
func (c *Controller) Scopes(ctx context.Context) ([]ScopeReport, error) {
	return loop.Call(ctx, c.loop, func(context.Context) []ScopeReport {
		var out []ScopeReport
		for _, sc := range c.world.Scopes() {
			out = append(out, c.report(sc.Name))
		}
		return out
	})
}

// Status is a read-only view of the controller.
type Status struct {
	Enabled          bool                `json:"enabled"`
	Monitoring       bool                `json:"monitoring"`
	CurrentMetric    float64             `json:"current_metric"`
	AverageMetric    float64             `json:"average_metric"`
	Severity         monitor.Severity    `json:"severity"`
	Band             monitor.Band        `json:"band"`
	LiveObjects      int                 `json:"live_objects"`
	LoadedPartitions int                 `json:"loaded_partitions"`
	Memory           monitor.Memory      `json:"memory"`
	MemorySummary    string              `json:"memory_summary"`
	Tally            sweep.Tally         `json:"tally"`
	CleanupSummary   string              `json:"cleanup_summary"`
	Rules            []orchestrator.Rule `json:"rules"`
	PendingWarnings  int                 `json:"pending_warnings"`
}

// Status reads the accessors. It does not touch the loop.
func (c *Controller) Status() Status {
	cfg := c.Config()
	cur := c.monitor.CurrentMetric()
	mem := c.monitor.Memory()
	tally := c.executor.Tally()
	return Status{
		Enabled:          cfg.General.Enabled,
		Monitoring:       cfg.Throughput.Monitoring,
		CurrentMetric:    cur,
		AverageMetric:    c.monitor.AverageMetric(),
		Severity:         c.monitor.Severity(),
		Band:             monitor.BandFor(cur),
		LiveObjects:      c.monitor.LiveObjects(),
		LoadedPartitions: c.monitor.LoadedPartitions(),
		Memory:           mem,
		MemorySummary:    mem.String(),
		Tally:            tally,
		CleanupSummary:   tally.Summary(c.now()),
		Rules:            c.orch.Rules(),
		PendingWarnings:  c.orch.Pending(),
	}
}
