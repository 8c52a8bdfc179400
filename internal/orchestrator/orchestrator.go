// Package orchestrator decides when sweeps run: recurring rules with an
// optional warning, operator requests and the escalation paths used by the
// throughput monitor.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"worldclear/internal/logging"
	"worldclear/internal/loop"
	"worldclear/internal/scan"
	"worldclear/internal/sweep"
	"worldclear/internal/world"
)

// ErrUnknownScope is returned when a manual sweep names a missing scope.
var ErrUnknownScope = errors.New("unknown scope")

// Notifier delivers operator-facing messages.
type Notifier interface {
	Broadcast(msg string)
}

// Scheduler runs tasks later on the controller loop.
type Scheduler interface {
	Every(d time.Duration, t loop.Task) loop.TaskID
	After(d time.Duration, t loop.Task) loop.TaskID
	Cancel(id loop.TaskID)
}

// Settings are the configuration switches the orchestrator consults.
type Settings struct {
	// Enabled and ItemsEnabled gate rule timers when they fire.
	Enabled      bool
	ItemsEnabled bool
	WarningDelay time.Duration
	// BroadcastWarnings controls the completion notice of the warning
	// threshold sweep.
	BroadcastWarnings bool
	// ScopeEnabled reports whether scheduled sweeps may touch a scope.
	// Nil enables every scope.
	ScopeEnabled func(string) bool
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{Enabled: true, ItemsEnabled: true, WarningDelay: 30 * time.Second, BroadcastWarnings: true}
}

// Orchestrator owns the rule timers and dispatches sweeps to the executor.
type Orchestrator struct {
	world    world.World
	scanner  *scan.Scanner
	executor *sweep.Executor
	sched    Scheduler

	mu        sync.Mutex
	settings  Settings
	rules     []Rule
	ruleTasks []loop.TaskID
	pending   map[loop.TaskID]struct{}
	notifiers []Notifier
}

// New creates an Orchestrator. An empty rule list installs DefaultRule.
func New(w world.World, scanner *scan.Scanner, executor *sweep.Executor, sched Scheduler, settings Settings, rules []Rule) *Orchestrator {
	o := &Orchestrator{
		world:    w,
		scanner:  scanner,
		executor: executor,
		sched:    sched,
		settings: settings,
		pending:  make(map[loop.TaskID]struct{}),
	}
	o.rules = withDefault(rules)
	return o
}

func withDefault(rules []Rule) []Rule {
	if len(rules) == 0 {
		return []Rule{DefaultRule()}
	}
	return append([]Rule(nil), rules...)
}

// AddNotifier registers a message receiver.
func (o *Orchestrator) AddNotifier(n Notifier) {
	o.mu.Lock()
	o.notifiers = append(o.notifiers, n)
	o.mu.Unlock()
}

func (o *Orchestrator) broadcast(msg string) {
	o.mu.Lock()
	ns := append([]Notifier(nil), o.notifiers...)
	o.mu.Unlock()
	for _, n := range ns {
		n.Broadcast(msg)
	}
}

// Rules returns the active rule set.
func (o *Orchestrator) Rules() []Rule {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Rule(nil), o.rules...)
}

func (o *Orchestrator) current() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Start installs one timer per rule.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) {
	log := logging.FromContext(ctx)
	for _, r := range o.rules {
		r := r
		if r.Interval <= 0 {
			log.Warn("skipping rule without interval", "rule", r.Name)
			continue
		}
		id := o.sched.Every(r.Interval, func(ctx context.Context) {
			st := o.current()
			if !st.Enabled || !st.ItemsEnabled {
				return
			}
			o.RunRule(ctx, r)
		})
		o.ruleTasks = append(o.ruleTasks, id)
		log.Info("scheduled cleanup rule", "rule", r.Name, "interval", r.Interval, "categories", r.Categories)
	}
}

func (o *Orchestrator) stopRulesLocked() {
	for _, id := range o.ruleTasks {
		o.sched.Cancel(id)
	}
	o.ruleTasks = nil
}

// Stop cancels rule timers and pending warned sweeps.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRulesLocked()
	for id := range o.pending {
		o.sched.Cancel(id)
		delete(o.pending, id)
	}
}

// Reload swaps settings and rules. Rule timers restart only when start is
// true. Warned sweeps already pending still run.
func (o *Orchestrator) Reload(ctx context.Context, settings Settings, rules []Rule, start bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopRulesLocked()
	o.settings = settings
	o.rules = withDefault(rules)
	if start {
		o.startLocked(ctx)
	}
}

// Pending returns the number of warned sweeps waiting for their delay.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// RunRule runs r now, or after the warning delay when r broadcasts. The
// delayed sweep does not re-check the enable switches.
func (o *Orchestrator) RunRule(ctx context.Context, r Rule) {
	if !r.Broadcast {
		o.executeRule(ctx, r)
		return
	}
	st := o.current()
	o.broadcast(fmt.Sprintf("Cleanup starting in %d seconds!", int(st.WarningDelay/time.Second)))

	o.mu.Lock()
	defer o.mu.Unlock()
	var id loop.TaskID
	id = o.sched.After(st.WarningDelay, func(ctx context.Context) {
		o.mu.Lock()
		delete(o.pending, id)
		o.mu.Unlock()
		o.executeRule(ctx, r)
	})
	if id != 0 {
		o.pending[id] = struct{}{}
	}
}

func (o *Orchestrator) executeRule(ctx context.Context, r Rule) int {
	st := o.current()
	total := 0
	for _, scope := range o.ruleScopes(r) {
		if st.ScopeEnabled != nil && !st.ScopeEnabled(scope) {
			continue
		}
		for _, c := range r.Categories {
			total += o.sweep(ctx, scope, c)
		}
	}
	o.executor.Complete(total)
	if total > 0 {
		logging.FromContext(ctx).Info("cleanup rule finished", "rule", r.Name, "removed", total)
		if r.Broadcast {
			o.broadcast(fmt.Sprintf("Cleared %d entities!", total))
		}
	}
	return total
}

func (o *Orchestrator) ruleScopes(r Rule) []string {
	if len(r.Scopes) == 0 {
		var names []string
		for _, sc := range o.world.Scopes() {
			names = append(names, sc.Name)
		}
		return names
	}
	var names []string
	for _, name := range r.Scopes {
		if o.world.HasScope(name) {
			names = append(names, name)
		}
	}
	return names
}

func (o *Orchestrator) sweep(ctx context.Context, scope string, c Category) int {
	switch c {
	case Items:
		return o.executor.Execute(ctx, scope, string(Items), o.scanner.ScanAged(scope, true))
	case ItemsForce:
		return o.executor.Execute(ctx, scope, string(Items), o.scanner.ScanAged(scope, false))
	case Clusters:
		return o.executor.Execute(ctx, scope, string(Clusters), o.scanner.ScanClusters(scope))
	case Monsters:
		return o.executor.Execute(ctx, scope, string(Monsters), o.scanner.ScanCategory(scope, world.HostileCreature))
	default:
		logging.FromContext(ctx).Warn("ignoring unknown sweep category", "category", c)
		return 0
	}
}

// ManualSweep runs one category immediately, without warning and without
// consulting per-scope switches. An empty scope targets every scope.
func (o *Orchestrator) ManualSweep(ctx context.Context, scope string, c Category) (int, error) {
	if _, err := ParseCategory(string(c)); err != nil {
		return 0, err
	}
	var scopes []string
	if scope == "" {
		for _, sc := range o.world.Scopes() {
			scopes = append(scopes, sc.Name)
		}
	} else {
		if !o.world.HasScope(scope) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
		}
		scopes = []string{scope}
	}
	total := 0
	for _, s := range scopes {
		total += o.sweep(ctx, s, c)
	}
	o.executor.Complete(total)
	logging.FromContext(ctx).Info("manual sweep finished", "scope", scope, "category", c, "removed", total)
	return total, nil
}

// Emergency clears every scope and announces it.
func (o *Orchestrator) Emergency(ctx context.Context) int {
	o.broadcast("Emergency cleanup in progress!")
	n := o.executor.ExecuteEmergency(ctx, o.world.Scopes())
	o.broadcast(fmt.Sprintf("Emergency cleanup complete! Removed %d entities.", n))
	return n
}

// StandardSweepAllScopes removes aged consumables from every enabled scope.
func (o *Orchestrator) StandardSweepAllScopes(ctx context.Context) int {
	st := o.current()
	total := 0
	for _, sc := range o.world.Scopes() {
		if st.ScopeEnabled != nil && !st.ScopeEnabled(sc.Name) {
			continue
		}
		total += o.sweep(ctx, sc.Name, Items)
	}
	o.executor.Complete(total)
	if total > 0 && st.BroadcastWarnings {
		o.broadcast(fmt.Sprintf("Cleared %d items!", total))
	}
	return total
}
