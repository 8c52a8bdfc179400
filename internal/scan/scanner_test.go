package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worldclear/internal/world"
)

const lifetimeTicks = 300 * 20

func newWorld() *world.Sim {
	return world.NewSim(world.Options{
		Scopes: []world.ScopeSpec{{Name: "alpha"}},
		Principals: []world.Principal{
			{ID: "builder", Online: true, Bypass: true},
			{ID: "visitor", Online: true},
		},
	})
}

func newScanner(w *world.Sim, mutate func(*Options)) *Scanner {
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return New(w, w, opts)
}

func item(kind string, age int64, pos world.Position) world.Object {
	return world.Object{Category: world.Consumable, Kind: kind, Age: age, Position: pos}
}

func TestScanAgedAllowListWins(t *testing.T) {
	w := newWorld()
	w.Add("alpha", item("diamond", lifetimeTicks*2, world.Position{}))
	s := newScanner(w, func(o *Options) {
		o.AllowList = []string{"DIAMOND"}
		o.DenyList = []string{"diamond"}
	})

	assert.Empty(t, s.ScanAged("alpha", true))
	assert.Empty(t, s.ScanAged("alpha", false))
}

func TestScanAgedBypassOwnerProtected(t *testing.T) {
	w := newWorld()
	w.Add("alpha", world.Object{Category: world.Consumable, Kind: "dirt", Age: lifetimeTicks, Owner: "builder"})
	visitor := w.Add("alpha", world.Object{Category: world.Consumable, Kind: "dirt", Age: lifetimeTicks, Owner: "visitor"})
	s := newScanner(w, nil)

	got := s.ScanAged("alpha", false)
	require.Len(t, got, 1)
	assert.Equal(t, visitor, got[0].ID)
}

func TestScanAgedDenyListOverridesAge(t *testing.T) {
	w := newWorld()
	denied := w.Add("alpha", item("rotten_flesh", 0, world.Position{}))
	w.Add("alpha", item("stone", 0, world.Position{}))
	s := newScanner(w, func(o *Options) { o.DenyList = []string{"rotten_flesh"} })

	assert.Equal(t, []string{denied}, s.ScanAged("alpha", true).IDs())
}

func TestScanAgedLifetimeBoundary(t *testing.T) {
	w := newWorld()
	w.Add("alpha", item("stone", lifetimeTicks-1, world.Position{}))
	old := w.Add("alpha", item("stone", lifetimeTicks, world.Position{}))
	w.Add("alpha", world.Object{Category: world.HostileCreature, Age: lifetimeTicks * 3})
	s := newScanner(w, nil)

	assert.Equal(t, []string{old}, s.ScanAged("alpha", true).IDs())
}

func TestScanAgedForceModeIgnoresAge(t *testing.T) {
	w := newWorld()
	a := w.Add("alpha", item("stone", 0, world.Position{}))
	b := w.Add("alpha", item("sand", 1, world.Position{}))
	w.Add("alpha", item("beacon", 0, world.Position{}))
	s := newScanner(w, func(o *Options) { o.AllowList = []string{"beacon"} })

	assert.Equal(t, []string{a, b}, s.ScanAged("alpha", false).IDs())
}

func TestScanAgedUnknownScope(t *testing.T) {
	s := newScanner(newWorld(), nil)
	assert.Empty(t, s.ScanAged("nowhere", false))
	assert.Empty(t, s.ScanClusters("nowhere"))
}

func TestScanClustersThreshold(t *testing.T) {
	w := newWorld()
	for i := 0; i < 19; i++ {
		w.Add("alpha", item("stone", 0, world.Position{X: float64(i) * 0.1}))
	}
	s := newScanner(w, nil)
	assert.Empty(t, s.ScanClusters("alpha"), "19 items are below a threshold of 20")

	w.Add("alpha", item("stone", 0, world.Position{X: 1.9}))
	assert.Len(t, s.ScanClusters("alpha"), 20)
}

func TestScanClustersGreedyAnchors(t *testing.T) {
	w := newWorld()
	var ids []string
	for _, x := range []float64{0, 0.5, 1.0, 1.5, 2.0} {
		ids = append(ids, w.Add("alpha", item("stone", 0, world.Position{X: x})))
	}
	s := newScanner(w, func(o *Options) {
		o.ClusterSize = 3
		o.ClusterRadius = 1
	})

	// The first anchor claims x=0..1. The anchor at 1.5 only sees 1.5 and 2.0.
	assert.Equal(t, ids[:3], s.ScanClusters("alpha").IDs())
}

func TestScanClustersDeterministic(t *testing.T) {
	w := newWorld()
	for i := 0; i < 25; i++ {
		w.Add("alpha", item("stone", 0, world.Position{X: 2 + float64(i)*0.1, Z: 2}))
	}
	for i := 0; i < 5; i++ {
		w.Add("alpha", item("stone", 0, world.Position{X: 40 + float64(i)*10}))
	}
	s := newScanner(w, nil)

	first := s.ScanClusters("alpha").IDs()
	require.Len(t, first, 25)
	assert.Equal(t, first, s.ScanClusters("alpha").IDs())
}

func TestScanCategory(t *testing.T) {
	w := newWorld()
	z := w.Add("alpha", world.Object{Category: world.HostileCreature, Kind: "zombie"})
	w.Add("alpha", world.Object{Category: world.PassiveCreature, Kind: "cow"})
	s := newScanner(w, nil)

	assert.Equal(t, []string{z}, s.ScanCategory("alpha", world.HostileCreature).IDs())
}

func TestClassify(t *testing.T) {
	w := newWorld()
	w.Add("alpha", item("stone", 0, world.Position{}))
	w.Add("alpha", item("stone", 0, world.Position{X: 20}))
	w.Add("alpha", world.Object{Category: world.HostileCreature})
	w.Add("alpha", world.Object{Category: world.PassiveCreature})
	w.Add("alpha", world.Object{Category: world.Vehicle})
	s := newScanner(w, nil)

	st := s.Classify("alpha")
	assert.Equal(t, Statistics{Total: 5, Consumables: 2, Hostile: 1, Passive: 1, Vehicles: 1, Partitions: 2}, st)
	assert.Equal(t, "Total: 5 | Items: 2 | Monsters: 1 | Animals: 1 | Partitions: 2", st.String())
}

func TestFindOverloadedPartitions(t *testing.T) {
	w := newWorld()
	for i := 0; i < 3; i++ {
		w.Add("alpha", item("stone", 0, world.Position{X: 1}))
	}
	w.Add("alpha", item("stone", 0, world.Position{X: 80, Z: 80}))
	for i := 0; i < 5; i++ {
		w.Add("alpha", world.Object{Category: world.HostileCreature, Position: world.Position{X: 80, Z: 80}})
	}
	s := newScanner(w, func(o *Options) { o.MaxPerPartition = 2 })

	got := s.FindOverloadedPartitions("alpha")
	assert.Equal(t, []PartitionLoad{{Partition: world.Partition{}, Count: 3}}, got)
}
