// Package scenario describes simulated worlds: their scopes, what spawns in
// them and how spawn pressure changes over time.
package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"worldclear/internal/world"
)

// Scenario defines a world layout with ordered load phases.
type Scenario struct {
	Name        string      `yaml:"name,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Capacity    int         `yaml:"capacity,omitempty"`
	Scopes      []Scope     `yaml:"scopes"`
	Principals  []Principal `yaml:"principals,omitempty"`
	Phases      []Phase     `yaml:"phases,omitempty"`
}

// Scope declares one named scope and its spawn profiles.
type Scope struct {
	Name   string  `yaml:"name"`
	Spawns []Spawn `yaml:"spawns,omitempty"`
}

// Spawn describes how one category appears in a scope. Rate is the expected
// number of new objects per second.
type Spawn struct {
	Category    world.Category `yaml:"category"`
	Kinds       []string       `yaml:"kinds,omitempty"`
	Rate        float64        `yaml:"rate"`
	Center      world.Position `yaml:"center"`
	Radius      float64        `yaml:"radius"`
	OwnerChance float64        `yaml:"owner_chance,omitempty"`
	Owners      []string       `yaml:"owners,omitempty"`
}

// Principal is an actor that may own objects.
type Principal struct {
	ID     string `yaml:"id"`
	Online bool   `yaml:"online"`
	Bypass bool   `yaml:"bypass,omitempty"`
}

// Phase is a stage of the scenario. SpawnMultiplier scales every spawn
// rate; values <= 0 mean 1.
type Phase struct {
	Name            string    `yaml:"name"`
	Description     string    `yaml:"description,omitempty"`
	SpawnMultiplier float64   `yaml:"spawn_multiplier,omitempty"`
	Triggers        []Trigger `yaml:"triggers,omitempty"`
}

// Multiplier returns the effective spawn multiplier.
func (p Phase) Multiplier() float64 {
	if p.SpawnMultiplier <= 0 {
		return 1
	}
	return p.SpawnMultiplier
}

// Trigger moves the scenario to another phase based on an event.
type Trigger struct {
	Event string `yaml:"event"`
	Value int    `yaml:"value"`
	Next  string `yaml:"next"`
}

// Event represents a runtime occurrence that may advance the scenario.
type Event struct {
	Type  string
	Value int
}

// EventTimeElapsed carries the seconds spent in the current phase.
const EventTimeElapsed = "time_elapsed"

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks scope names and phase references.
func (s *Scenario) Validate() error {
	if len(s.Scopes) == 0 {
		return fmt.Errorf("scenario %q declares no scopes", s.Name)
	}
	seen := make(map[string]bool)
	for _, sc := range s.Scopes {
		if sc.Name == "" {
			return fmt.Errorf("scenario %q has a scope without name", s.Name)
		}
		if seen[sc.Name] {
			return fmt.Errorf("scenario %q declares scope %q twice", s.Name, sc.Name)
		}
		seen[sc.Name] = true
	}
	phases := make(map[string]bool)
	for _, p := range s.Phases {
		phases[p.Name] = true
	}
	for _, p := range s.Phases {
		for _, tr := range p.Triggers {
			if !phases[tr.Next] {
				return fmt.Errorf("phase %q triggers unknown phase %q", p.Name, tr.Next)
			}
		}
	}
	return nil
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}

func (s *Scenario) phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// Build creates a world stepping every stepInterval at ticksPerSecond.
// Spawn rates are converted from per second to per step.
func (s *Scenario) Build(stepInterval time.Duration, ticksPerSecond int, pacer world.Pacer, seed int64) *world.Sim {
	perStep := stepInterval.Seconds()
	opts := world.Options{
		Capacity:     s.Capacity,
		TicksPerStep: int64(float64(ticksPerSecond) * perStep),
		Pacer:        pacer,
		Seed:         seed,
	}
	for _, sc := range s.Scopes {
		spec := world.ScopeSpec{Name: sc.Name}
		for _, sp := range sc.Spawns {
			spec.Spawns = append(spec.Spawns, world.SpawnProfile{
				Category:    sp.Category,
				Kinds:       sp.Kinds,
				PerStep:     sp.Rate * perStep,
				Center:      sp.Center,
				Radius:      sp.Radius,
				OwnerChance: sp.OwnerChance,
				Owners:      sp.Owners,
			})
		}
		opts.Scopes = append(opts.Scopes, spec)
	}
	for _, p := range s.Principals {
		opts.Principals = append(opts.Principals, world.Principal{ID: p.ID, Online: p.Online, Bypass: p.Bypass})
	}
	return world.NewSim(opts)
}
