// Package world models the simulated environment the cleanup controller
// watches: scopes, transient objects and the partitions they occupy.
package world

import (
	"fmt"
	"math"
	"strings"
)

// PartitionSize is the horizontal edge length of a partition in world units.
const PartitionSize = 16

// Category is the closed set of transient object kinds.
type Category uint8

const (
	Consumable Category = iota + 1
	HostileCreature
	PassiveCreature
	Projectile
	Vehicle
)

// Categories lists every category in declaration order.
var Categories = []Category{Consumable, HostileCreature, PassiveCreature, Projectile, Vehicle}

func (c Category) String() string {
	switch c {
	case Consumable:
		return "consumable"
	case HostileCreature:
		return "hostile"
	case PassiveCreature:
		return "passive"
	case Projectile:
		return "projectile"
	case Vehicle:
		return "vehicle"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown object category %q", s)
}

// MarshalText lets categories appear by name in YAML and JSON.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses a category name.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Position is a point in a scope.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance returns the Euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Partition returns the partition containing p.
func (p Position) Partition() Partition {
	return Partition{
		X: int(math.Floor(p.X / PartitionSize)),
		Z: int(math.Floor(p.Z / PartitionSize)),
	}
}

// Partition identifies a PartitionSize x PartitionSize column of a scope.
type Partition struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (p Partition) String() string { return fmt.Sprintf("%d,%d", p.X, p.Z) }

// Object is a transient simulated object. Age is measured in ticks.
type Object struct {
	ID       string
	Category Category
	Kind     string
	Position Position
	Age      int64
	Owner    string
}

// Scope is a named, independent region of the simulation.
type Scope struct {
	Name string
}

// World is the view of the simulation the controller reads from. Objects
// returns a scope's live objects in a stable enumeration order. Terminate
// removes an object; repeated or unknown IDs are ignored.
type World interface {
	Scopes() []Scope
	HasScope(name string) bool
	Objects(scope string) []Object
	LoadedPartitions(scope string) []Partition
	Terminate(id string)
}

// Principals resolves object owners.
type Principals interface {
	// HasBypass reports whether owner is an active principal allowed to keep
	// its objects through sweeps.
	HasBypass(owner string) bool
}
