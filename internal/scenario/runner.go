package scenario

import (
	"sync"
	"time"
)

// Runner tracks the active phase and implements world.Pacer.
type Runner struct {
	sc           *Scenario
	stepInterval time.Duration

	mu        sync.Mutex
	current   string
	enteredAt int64
	onChange  func(from, to string)
}

// NewRunner starts in the first phase. onChange may be nil.
func NewRunner(sc *Scenario, stepInterval time.Duration, onChange func(from, to string)) *Runner {
	r := &Runner{sc: sc, stepInterval: stepInterval, onChange: onChange}
	if len(sc.Phases) > 0 {
		r.current = sc.Phases[0].Name
	}
	return r
}

// Multiplier advances phases on time_elapsed triggers and returns the spawn
// multiplier of the phase active at step.
func (r *Runner) Multiplier(step int64) float64 {
	r.mu.Lock()
	from := r.current
	elapsed := time.Duration(step-r.enteredAt) * r.stepInterval
	if next, ok := r.sc.NextPhase(r.current, Event{Type: EventTimeElapsed, Value: int(elapsed / time.Second)}); ok {
		r.current = next
		r.enteredAt = step
	}
	to := r.current
	p, _ := r.sc.phase(to)
	r.mu.Unlock()

	if from != to && r.onChange != nil {
		r.onChange(from, to)
	}
	return p.Multiplier()
}

// Phase returns the active phase name.
func (r *Runner) Phase() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
