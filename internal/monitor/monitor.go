// Package monitor samples world throughput, tracks a short moving average
// and escalates to sweeps when throughput degrades.
package monitor

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"worldclear/internal/logging"
	"worldclear/internal/loop"
	"worldclear/internal/telemetry"
	"worldclear/internal/world"
)

const (
	// WindowSize is the number of samples in the moving average.
	WindowSize = 10
	// MaxMetric clamps samples to the nominal tick rate.
	MaxMetric = 20.0
)

// Source yields the instantaneous throughput metric.
type Source interface {
	Throughput() float64
}

// Sweeper runs the sweeps the monitor escalates to.
type Sweeper interface {
	Emergency(ctx context.Context) int
	StandardSweepAllScopes(ctx context.Context) int
}

// Recorder receives periodic metric snapshots. Implementations must not
// block.
type Recorder interface {
	RecordMetricSnapshot(telemetry.MetricSnapshot)
}

// Scheduler runs periodic tasks.
type Scheduler interface {
	Every(d time.Duration, t loop.Task) loop.TaskID
	Cancel(id loop.TaskID)
}

// Memory is a heap usage reading in bytes.
type Memory struct {
	Used uint64 `json:"used"`
	Max  uint64 `json:"max"`
}

// String formats memory as "used / max (pct%)".
func (m Memory) String() string {
	pct := 0.0
	if m.Max > 0 {
		pct = float64(m.Used) / float64(m.Max) * 100
	}
	return fmt.Sprintf("%s / %s (%.1f%%)", humanize.IBytes(m.Used), humanize.IBytes(m.Max), pct)
}

// RuntimeMemory reads the Go heap.
func RuntimeMemory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Memory{Used: ms.HeapAlloc, Max: ms.Sys}
}

// Settings configures sampling and escalation.
type Settings struct {
	SampleInterval    time.Duration
	WarningThreshold  float64
	CriticalThreshold float64
	AutoCleanup       bool
	Cooldown          time.Duration
	StatsInterval     time.Duration
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		SampleInterval:    time.Second,
		WarningThreshold:  18,
		CriticalThreshold: 15,
		AutoCleanup:       true,
		Cooldown:          120 * time.Second,
		StatsInterval:     5 * time.Minute,
	}
}

// Monitor tracks throughput. Accessors are safe to call from any goroutine.
type Monitor struct {
	source   Source
	world    world.World
	sweeper  Sweeper
	recorder Recorder
	memory   func() Memory
	now      func() time.Time

	mu            sync.Mutex
	settings      Settings
	window        []float64
	current       float64
	average       float64
	severity      Severity
	live          int
	partitions    int
	mem           Memory
	lastAuto      time.Time
	sinceSnapshot time.Duration
	task          loop.TaskID
	sched         Scheduler
}

// New creates a Monitor. recorder may be nil.
func New(source Source, w world.World, sweeper Sweeper, recorder Recorder, settings Settings) *Monitor {
	return &Monitor{
		source:   source,
		world:    w,
		sweeper:  sweeper,
		recorder: recorder,
		memory:   RuntimeMemory,
		now:      time.Now,
		settings: settings,
		current:  MaxMetric,
		average:  MaxMetric,
	}
}

// Start schedules sampling on sched. Calling Start twice restarts sampling.
func (m *Monitor) Start(sched Scheduler) {
	m.Stop()
	m.mu.Lock()
	interval := m.settings.SampleInterval
	m.sched = sched
	m.mu.Unlock()
	id := sched.Every(interval, m.Sample)
	m.mu.Lock()
	m.task = id
	m.mu.Unlock()
}

// Stop cancels sampling.
func (m *Monitor) Stop() {
	m.mu.Lock()
	sched, id := m.sched, m.task
	m.sched, m.task = nil, 0
	m.mu.Unlock()
	if sched != nil && id != 0 {
		sched.Cancel(id)
	}
}

// Configure replaces the settings. A changed sample interval takes effect
// on the next Start.
func (m *Monitor) Configure(s Settings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
}

// Sample takes one reading and escalates if needed.
func (m *Monitor) Sample(ctx context.Context) {
	log := logging.FromContext(ctx)
	metric := math.Min(m.source.Throughput(), MaxMetric)

	live, parts := 0, 0
	for _, sc := range m.world.Scopes() {
		live += len(m.world.Objects(sc.Name))
		parts += len(m.world.LoadedPartitions(sc.Name))
	}
	mem := m.memory()

	m.mu.Lock()
	m.window = append(m.window, metric)
	if len(m.window) > WindowSize {
		m.window = m.window[1:]
	}
	sum := 0.0
	for _, v := range m.window {
		sum += v
	}
	m.current = metric
	m.average = sum / float64(len(m.window))
	m.live, m.partitions, m.mem = live, parts, mem

	prev := m.severity
	m.severity = Classify(metric, m.settings.WarningThreshold, m.settings.CriticalThreshold)
	sev := m.severity

	var action func(context.Context) int
	now := m.now()
	if m.settings.AutoCleanup && sev != Normal && m.cooledDownLocked(now) {
		m.lastAuto = now
		if sev == Critical {
			action = m.sweeper.Emergency
		} else {
			action = m.sweeper.StandardSweepAllScopes
		}
	}

	var snap *telemetry.MetricSnapshot
	m.sinceSnapshot += m.settings.SampleInterval
	if m.settings.StatsInterval > 0 && m.sinceSnapshot >= m.settings.StatsInterval {
		m.sinceSnapshot = 0
		snap = &telemetry.MetricSnapshot{
			AvgThroughput:    m.average,
			LiveObjects:      live,
			LoadedPartitions: parts,
			MemoryUsed:       mem.Used,
			MemoryMax:        mem.Max,
		}
	}
	m.mu.Unlock()

	if sev != prev {
		log.Info("throughput severity changed", "from", prev, "to", sev, "metric", metric)
	}
	if action != nil {
		if sev == Critical {
			log.Warn("critical throughput, starting emergency sweep", "metric", metric)
		} else {
			log.Warn("low throughput, starting item sweep", "metric", metric)
		}
		n := action(ctx)
		log.Info("automatic sweep finished", "severity", sev, "removed", n)
	}
	if snap != nil && m.recorder != nil {
		m.recorder.RecordMetricSnapshot(*snap)
	}
}

func (m *Monitor) cooledDownLocked(now time.Time) bool {
	return m.lastAuto.IsZero() || now.Sub(m.lastAuto) >= m.settings.Cooldown
}

// CurrentMetric returns the latest clamped sample.
func (m *Monitor) CurrentMetric() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AverageMetric returns the moving average over the last WindowSize samples.
func (m *Monitor) AverageMetric() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.average
}

// Severity returns the severity of the latest sample.
func (m *Monitor) Severity() Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.severity
}

// LiveObjects returns the object count seen by the latest sample.
func (m *Monitor) LiveObjects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// LoadedPartitions returns the partition count seen by the latest sample.
func (m *Monitor) LoadedPartitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partitions
}

// Memory returns the memory reading of the latest sample.
func (m *Monitor) Memory() Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem
}

// FormattedMetric renders the current and average metric.
func (m *Monitor) FormattedMetric() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("%.2f (avg %.2f)", m.current, m.average)
}
