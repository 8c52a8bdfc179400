// Package sweep removes candidate objects and keeps the cleanup tally.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"worldclear/internal/logging"
	"worldclear/internal/scan"
	"worldclear/internal/world"
)

func tracer() trace.Tracer { return otel.Tracer("worldclear/sweep") }

// Recorder receives sweep results. Implementations must not block.
type Recorder interface {
	RecordSweep(scope, category string, removed int)
}

// Tally is the running cleanup count. Last and LastTime follow every single
// Execute; LastRun and LastRunTime hold the aggregate of the last finished
// sweep operation (a rule run, manual clear or emergency).
type Tally struct {
	Last        int       `json:"last"`
	LastTime    time.Time `json:"last_time"`
	LastRun     int       `json:"last_run"`
	LastRunTime time.Time `json:"last_run_time"`
	Total       int       `json:"total"`
}

// Summary renders the tally the way operators see it, using the last
// finished operation.
func (t Tally) Summary(now time.Time) string {
	ago := int64(0)
	if !t.LastRunTime.IsZero() {
		ago = int64(now.Sub(t.LastRunTime) / time.Second)
	}
	return fmt.Sprintf("Last cleanup: %d items | %d seconds ago | Total: %d", t.LastRun, ago, t.Total)
}

// Executor terminates candidates and records the outcome.
type Executor struct {
	world    world.World
	scanner  *scan.Scanner
	recorder Recorder
	now      func() time.Time

	mu    sync.Mutex
	tally Tally
}

// NewExecutor creates an Executor. recorder may be nil.
func NewExecutor(w world.World, scanner *scan.Scanner, recorder Recorder) *Executor {
	return &Executor{world: w, scanner: scanner, recorder: recorder, now: time.Now}
}

// Execute terminates every candidate and returns how many were requested.
// The tally is updated even when nothing was removed.
func (e *Executor) Execute(ctx context.Context, scope, label string, candidates scan.CandidateSet) int {
	_, span := tracer().Start(ctx, "sweep.execute", trace.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("category", label),
	))
	defer span.End()

	for _, o := range candidates {
		e.world.Terminate(o.ID)
	}
	n := len(candidates)
	span.SetAttributes(attribute.Int("removed", n))

	e.mu.Lock()
	e.tally.Last = n
	e.tally.LastTime = e.now()
	e.tally.Total += n
	e.mu.Unlock()

	if n > 0 {
		logging.FromContext(ctx).Debug("sweep executed", "scope", scope, "category", label, "removed", n)
		if e.recorder != nil {
			e.recorder.RecordSweep(scope, label, n)
		}
	}
	return n
}

// ExecuteEmergency clears every scope regardless of its enabled flag: all
// consumables except protected ones, then every hostile creature.
func (e *Executor) ExecuteEmergency(ctx context.Context, scopes []world.Scope) int {
	ctx, span := tracer().Start(ctx, "sweep.emergency")
	defer span.End()

	total := 0
	for _, sc := range scopes {
		total += e.Execute(ctx, sc.Name, "items", e.scanner.ScanAged(sc.Name, false))
		total += e.Execute(ctx, sc.Name, "monsters", e.scanner.ScanCategory(sc.Name, world.HostileCreature))
	}
	span.SetAttributes(attribute.Int("removed", total))
	e.Complete(total)
	return total
}

// Complete records removed as the aggregate of a finished operation made up
// of one or more Execute calls.
func (e *Executor) Complete(removed int) {
	e.mu.Lock()
	e.tally.LastRun = removed
	e.tally.LastRunTime = e.now()
	e.mu.Unlock()
}

// Tally returns a copy of the current tally.
func (e *Executor) Tally() Tally {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tally
}
