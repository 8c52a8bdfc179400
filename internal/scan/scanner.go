// Package scan selects removal candidates from a scope snapshot. Every
// method is a pure read of the world: nothing is terminated here.
package scan

import (
	"fmt"
	"strings"

	"worldclear/internal/world"
)

// CandidateSet is an ordered list of objects selected for removal.
type CandidateSet []world.Object

// IDs returns the object IDs in order.
func (c CandidateSet) IDs() []string {
	ids := make([]string, len(c))
	for i, o := range c {
		ids[i] = o.ID
	}
	return ids
}

// Options holds the selection parameters taken from configuration.
type Options struct {
	AllowList       []string
	DenyList        []string
	LifetimeSeconds int
	TicksPerSecond  int
	ClusterSize     int
	ClusterRadius   float64
	MaxPerPartition int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		LifetimeSeconds: 300,
		TicksPerSecond:  20,
		ClusterSize:     20,
		ClusterRadius:   5,
		MaxPerPartition: 100,
	}
}

// Scanner evaluates candidate rules against a World.
type Scanner struct {
	world  world.World
	owners world.Principals
	opts   Options
	allow  map[string]struct{}
	deny   map[string]struct{}
}

// New returns a Scanner. owners may be nil, in which case no object is
// protected by its owner.
func New(w world.World, owners world.Principals, opts Options) *Scanner {
	s := &Scanner{world: w, owners: owners}
	s.Configure(opts)
	return s
}

// Configure replaces the selection parameters. Kind lists are matched
// case-insensitively.
func (s *Scanner) Configure(opts Options) {
	s.opts = opts
	s.allow = kindSet(opts.AllowList)
	s.deny = kindSet(opts.DenyList)
}

// Options returns the active parameters.
func (s *Scanner) Options() Options { return s.opts }

func kindSet(kinds []string) map[string]struct{} {
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[strings.ToUpper(strings.TrimSpace(k))] = struct{}{}
	}
	return set
}

func (s *Scanner) maxAge() int64 {
	return int64(s.opts.LifetimeSeconds) * int64(s.opts.TicksPerSecond)
}

func (s *Scanner) protected(o world.Object) bool {
	if _, ok := s.allow[strings.ToUpper(o.Kind)]; ok {
		return true
	}
	return o.Owner != "" && s.owners != nil && s.owners.HasBypass(o.Owner)
}

// ScanAged selects consumables in scope. Allow-listed kinds and objects of
// bypassing owners are never selected. With enforceAge false every other
// consumable is selected; otherwise deny-listed kinds and objects at least
// the configured lifetime old are.
func (s *Scanner) ScanAged(scope string, enforceAge bool) CandidateSet {
	var out CandidateSet
	maxAge := s.maxAge()
	for _, o := range s.world.Objects(scope) {
		if o.Category != world.Consumable || s.protected(o) {
			continue
		}
		if !enforceAge {
			out = append(out, o)
			continue
		}
		if _, denied := s.deny[strings.ToUpper(o.Kind)]; denied {
			out = append(out, o)
			continue
		}
		if o.Age >= maxAge {
			out = append(out, o)
		}
	}
	return out
}

// ScanClusters selects consumables that sit in dense groups. A single pass
// walks consumables in enumeration order; each unprocessed object anchors a
// neighbourhood of the unprocessed objects within ClusterRadius (the anchor
// included). Neighbourhoods of at least ClusterSize are selected and marked
// processed. Smaller ones are left for later anchors.
func (s *Scanner) ScanClusters(scope string) CandidateSet {
	var items []world.Object
	for _, o := range s.world.Objects(scope) {
		if o.Category == world.Consumable {
			items = append(items, o)
		}
	}
	processed := make(map[string]struct{})
	var out CandidateSet
	for _, anchor := range items {
		if _, done := processed[anchor.ID]; done {
			continue
		}
		var nearby []world.Object
		for _, o := range items {
			if _, done := processed[o.ID]; done {
				continue
			}
			if anchor.Position.Distance(o.Position) <= s.opts.ClusterRadius {
				nearby = append(nearby, o)
			}
		}
		if len(nearby) >= s.opts.ClusterSize {
			out = append(out, nearby...)
			for _, o := range nearby {
				processed[o.ID] = struct{}{}
			}
		}
	}
	return out
}

// ScanCategory selects every object of category c in scope.
func (s *Scanner) ScanCategory(scope string, c world.Category) CandidateSet {
	var out CandidateSet
	for _, o := range s.world.Objects(scope) {
		if o.Category == c {
			out = append(out, o)
		}
	}
	return out
}

// Statistics counts a scope's objects by category.
type Statistics struct {
	Total       int `json:"total"`
	Consumables int `json:"consumables"`
	Hostile     int `json:"hostile"`
	Passive     int `json:"passive"`
	Projectiles int `json:"projectiles"`
	Vehicles    int `json:"vehicles"`
	Partitions  int `json:"partitions"`
}

func (s Statistics) String() string {
	return fmt.Sprintf("Total: %d | Items: %d | Monsters: %d | Animals: %d | Partitions: %d",
		s.Total, s.Consumables, s.Hostile, s.Passive, s.Partitions)
}

// Classify counts the objects and loaded partitions of scope.
func (s *Scanner) Classify(scope string) Statistics {
	var st Statistics
	for _, o := range s.world.Objects(scope) {
		st.Total++
		switch o.Category {
		case world.Consumable:
			st.Consumables++
		case world.HostileCreature:
			st.Hostile++
		case world.PassiveCreature:
			st.Passive++
		case world.Projectile:
			st.Projectiles++
		case world.Vehicle:
			st.Vehicles++
		}
	}
	st.Partitions = len(s.world.LoadedPartitions(scope))
	return st
}

// PartitionLoad is a partition and its consumable count.
type PartitionLoad struct {
	Partition world.Partition `json:"partition"`
	Count     int             `json:"count"`
}

// FindOverloadedPartitions reports loaded partitions holding more than
// MaxPerPartition consumables, in loaded-partition order.
func (s *Scanner) FindOverloadedPartitions(scope string) []PartitionLoad {
	counts := make(map[world.Partition]int)
	for _, o := range s.world.Objects(scope) {
		if o.Category == world.Consumable {
			counts[o.Position.Partition()]++
		}
	}
	var out []PartitionLoad
	for _, p := range s.world.LoadedPartitions(scope) {
		if n := counts[p]; n > s.opts.MaxPerPartition {
			out = append(out, PartitionLoad{Partition: p, Count: n})
		}
	}
	return out
}
