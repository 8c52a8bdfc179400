package world

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MaxThroughput is the nominal number of ticks per second.
const MaxThroughput = 20.0

// SpawnProfile describes how one category appears in a scope.
type SpawnProfile struct {
	Category Category
	Kinds    []string
	// PerStep is the expected number of new objects per step.
	PerStep float64
	Center  Position
	Radius  float64
	// OwnerChance is the probability a new object gets a random owner from
	// Owners.
	OwnerChance float64
	Owners      []string
}

// ScopeSpec declares a scope and its spawn profiles.
type ScopeSpec struct {
	Name   string
	Spawns []SpawnProfile
}

// Principal is an actor that may own objects.
type Principal struct {
	ID     string
	Online bool
	Bypass bool
}

// Pacer scales spawn rates, e.g. by scenario phase. step counts from 1.
type Pacer interface {
	Multiplier(step int64) float64
}

// Options configures a Sim.
type Options struct {
	Scopes []ScopeSpec
	// Capacity is the live object count the world sustains at full
	// throughput.
	Capacity     int
	TicksPerStep int64
	Principals   []Principal
	Pacer        Pacer
	Seed         int64
}

type scopeState struct {
	spec    ScopeSpec
	objects []Object
	anchors map[Partition]struct{}
}

// Sim is an in-memory World. All methods are safe for concurrent use.
type Sim struct {
	mu           sync.Mutex
	scopes       []*scopeState
	byName       map[string]*scopeState
	owner        map[string]*scopeState
	dead         map[string]struct{}
	principals   map[string]Principal
	capacity     int
	ticksPerStep int64
	step         int64
	pacer        Pacer
	rand         *rand.Rand
	newID        func() string
}

// NewSim builds a world from opts. The spawn centre of every profile keeps
// its partition loaded even when empty.
func NewSim(opts Options) *Sim {
	if opts.TicksPerStep <= 0 {
		opts.TicksPerStep = 20
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 2000
	}
	s := &Sim{
		byName:       make(map[string]*scopeState),
		owner:        make(map[string]*scopeState),
		dead:         make(map[string]struct{}),
		principals:   make(map[string]Principal),
		capacity:     opts.Capacity,
		ticksPerStep: opts.TicksPerStep,
		pacer:        opts.Pacer,
		rand:         rand.New(rand.NewSource(opts.Seed)),
		newID:        func() string { return uuid.New().String() },
	}
	for _, spec := range opts.Scopes {
		st := &scopeState{spec: spec, anchors: make(map[Partition]struct{})}
		for _, p := range spec.Spawns {
			st.anchors[p.Center.Partition()] = struct{}{}
		}
		s.scopes = append(s.scopes, st)
		s.byName[spec.Name] = st
	}
	for _, p := range opts.Principals {
		s.principals[p.ID] = p
	}
	return s
}

// Scopes returns the scopes in declaration order.
func (s *Sim) Scopes() []Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Scope, 0, len(s.scopes))
	for _, st := range s.scopes {
		out = append(out, Scope{Name: st.spec.Name})
	}
	return out
}

// HasScope reports whether name is a known scope.
func (s *Sim) HasScope(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byName[name]
	return ok
}

// Objects returns a copy of the live objects of scope in spawn order.
func (s *Sim) Objects(scope string) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byName[scope]
	if !ok {
		return nil
	}
	out := make([]Object, 0, len(st.objects))
	for _, o := range st.objects {
		if _, gone := s.dead[o.ID]; gone {
			continue
		}
		out = append(out, o)
	}
	return out
}

// LoadedPartitions returns partitions holding at least one live object plus
// the spawn anchors, sorted by X then Z.
func (s *Sim) LoadedPartitions(scope string) []Partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byName[scope]
	if !ok {
		return nil
	}
	set := make(map[Partition]struct{}, len(st.anchors))
	for p := range st.anchors {
		set[p] = struct{}{}
	}
	for _, o := range st.objects {
		if _, gone := s.dead[o.ID]; gone {
			continue
		}
		set[o.Position.Partition()] = struct{}{}
	}
	out := make([]Partition, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// Terminate removes the object with the given id. Unknown or already
// removed ids are ignored.
func (s *Sim) Terminate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owner[id]; ok {
		s.dead[id] = struct{}{}
	}
}

// HasBypass implements Principals.
func (s *Sim) HasBypass(owner string) bool {
	if owner == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[owner]
	return ok && p.Online && p.Bypass
}

// SetPrincipal adds or replaces a principal.
func (s *Sim) SetPrincipal(p Principal) {
	s.mu.Lock()
	s.principals[p.ID] = p
	s.mu.Unlock()
}

// Add inserts an object into scope, assigning an ID when empty. It returns
// the stored object's ID, or "" when the scope does not exist.
func (s *Sim) Add(scope string, o Object) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(scope, o)
}

func (s *Sim) addLocked(scope string, o Object) string {
	st, ok := s.byName[scope]
	if !ok {
		return ""
	}
	if o.ID == "" {
		o.ID = s.newID()
	}
	o.Kind = strings.ToUpper(o.Kind)
	st.objects = append(st.objects, o)
	s.owner[o.ID] = st
	return o.ID
}

// Live returns the number of live objects across all scopes.
func (s *Sim) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked()
}

func (s *Sim) liveLocked() int {
	return len(s.owner) - len(s.dead)
}

// Throughput models ticks per second degrading as the population grows past
// capacity.
func (s *Sim) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.liveLocked()
	return MaxThroughput * float64(s.capacity) / math.Max(float64(s.capacity), float64(live))
}

// Step advances the world by one step: removed objects are compacted away,
// survivors age by TicksPerStep and the spawn profiles run.
func (s *Sim) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	s.compactLocked()
	for _, st := range s.scopes {
		for i := range st.objects {
			st.objects[i].Age += s.ticksPerStep
		}
	}
	mult := 1.0
	if s.pacer != nil {
		mult = s.pacer.Multiplier(s.step)
	}
	for _, st := range s.scopes {
		for _, p := range st.spec.Spawns {
			n := s.spawnCount(p.PerStep * mult)
			for i := 0; i < n; i++ {
				s.addLocked(st.spec.Name, s.spawn(p))
			}
		}
	}
}

// Steps returns how many times Step has run.
func (s *Sim) Steps() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Sim) compactLocked() {
	if len(s.dead) == 0 {
		return
	}
	for _, st := range s.scopes {
		kept := st.objects[:0]
		for _, o := range st.objects {
			if _, gone := s.dead[o.ID]; gone {
				delete(s.owner, o.ID)
				continue
			}
			kept = append(kept, o)
		}
		st.objects = kept
	}
	s.dead = make(map[string]struct{})
}

func (s *Sim) spawnCount(rate float64) int {
	if rate <= 0 {
		return 0
	}
	n := int(rate)
	if s.rand.Float64() < rate-float64(n) {
		n++
	}
	return n
}

func (s *Sim) spawn(p SpawnProfile) Object {
	angle := s.rand.Float64() * 2 * math.Pi
	r := s.rand.Float64() * p.Radius
	o := Object{
		Category: p.Category,
		Position: Position{
			X: p.Center.X + r*math.Cos(angle),
			Y: p.Center.Y,
			Z: p.Center.Z + r*math.Sin(angle),
		},
	}
	if len(p.Kinds) > 0 {
		o.Kind = p.Kinds[s.rand.Intn(len(p.Kinds))]
	}
	if len(p.Owners) > 0 && s.rand.Float64() < p.OwnerChance {
		o.Owner = p.Owners[s.rand.Intn(len(p.Owners))]
	}
	return o
}
