package stats

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"worldclear/internal/telemetry"
)

// Async stamps rows and writes them to a Sink on a bounded worker pool.
// Enqueueing never blocks: when the queue is full the row is dropped and
// counted. Write errors are logged and dropped.
type Async struct {
	sink   Sink
	server string
	log    *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	closed  bool
	jobs    chan func() error
	wg      sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewAsync starts workers goroutines draining a queue of queueSize rows.
func NewAsync(sink Sink, server string, workers, queueSize int, log *slog.Logger) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Async{
		sink:   sink,
		server: server,
		log:    log,
		now:    time.Now,
		jobs:   make(chan func() error, queueSize),
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.work()
	}
	return a
}

func (a *Async) work() {
	defer a.wg.Done()
	for job := range a.jobs {
		if err := job(); err != nil {
			a.failed.Add(1)
			a.log.Warn("stats sink write failed", "err", err)
		}
	}
}

func (a *Async) enqueue(kind string, job func() error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.jobs <- job:
	default:
		a.dropped.Add(1)
		a.log.Warn("stats queue full, dropping row", "kind", kind)
	}
}

// RecordSweep queues a sweep row.
func (a *Async) RecordSweep(scope, category string, removed int) {
	row := telemetry.SweepRow{Server: a.server, Scope: scope, Category: category, Removed: removed, Timestamp: a.now()}
	a.enqueue(telemetry.KindSweep, func() error { return a.sink.WriteSweep(row) })
}

// RecordMetricSnapshot queues a snapshot row.
func (a *Async) RecordMetricSnapshot(s telemetry.MetricSnapshot) {
	row := telemetry.SnapshotRow{Server: a.server, MetricSnapshot: s, Timestamp: a.now()}
	a.enqueue(telemetry.KindSnapshot, func() error { return a.sink.WriteSnapshot(row) })
}

// UpsertConfigValue queues a configuration value.
func (a *Async) UpsertConfigValue(key, value string) {
	row := telemetry.ConfigRow{Server: a.server, Key: key, Value: value, Timestamp: a.now()}
	a.enqueue(telemetry.KindConfig, func() error { return a.sink.WriteConfig(row) })
}

// Dropped returns how many rows were discarded because the queue was full.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Failed returns how many writes returned an error.
func (a *Async) Failed() int64 { return a.failed.Load() }

// Close stops accepting rows and waits for queued rows to be written.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()
	a.wg.Wait()
}
