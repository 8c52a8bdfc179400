package scenario

import "worldclear/internal/world"

var defaultPrincipals = []Principal{
	{ID: "builder", Online: true, Bypass: true},
	{ID: "guest", Online: true},
	{ID: "retired-admin", Online: false, Bypass: true},
}

func overworld(itemRate, hostileRate float64) Scope {
	return Scope{
		Name: "overworld",
		Spawns: []Spawn{
			{
				Category:    world.Consumable,
				Kinds:       []string{"COBBLESTONE", "DIRT", "ROTTEN_FLESH", "ARROW", "DIAMOND"},
				Rate:        itemRate,
				Center:      world.Position{X: 0, Y: 64, Z: 0},
				Radius:      48,
				OwnerChance: 0.1,
				Owners:      []string{"builder", "guest"},
			},
			// mob farm drops pile up in one spot
			{
				Category: world.Consumable,
				Kinds:    []string{"BONE", "STRING"},
				Rate:     itemRate / 2,
				Center:   world.Position{X: 120, Y: 40, Z: -80},
				Radius:   2,
			},
			{
				Category: world.HostileCreature,
				Kinds:    []string{"ZOMBIE", "SKELETON", "CREEPER"},
				Rate:     hostileRate,
				Center:   world.Position{X: 0, Y: 64, Z: 0},
				Radius:   96,
			},
			{
				Category: world.PassiveCreature,
				Kinds:    []string{"COW", "SHEEP"},
				Rate:     0.2,
				Center:   world.Position{X: 30, Y: 64, Z: 30},
				Radius:   32,
			},
		},
	}
}

func nether(itemRate float64) Scope {
	return Scope{
		Name: "nether",
		Spawns: []Spawn{
			{
				Category: world.Consumable,
				Kinds:    []string{"NETHERRACK", "GOLD_NUGGET"},
				Rate:     itemRate,
				Center:   world.Position{X: 0, Y: 70, Z: 0},
				Radius:   24,
			},
			{
				Category: world.HostileCreature,
				Kinds:    []string{"PIGLIN", "GHAST"},
				Rate:     0.5,
				Center:   world.Position{X: 0, Y: 70, Z: 0},
				Radius:   64,
			},
			{
				Category: world.Projectile,
				Kinds:    []string{"FIREBALL"},
				Rate:     0.2,
				Center:   world.Position{X: 0, Y: 80, Z: 0},
				Radius:   32,
			},
		},
	}
}

// BuiltIn returns predefined worlds keyed by name.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"steady": {
			Name:        "Steady",
			Description: "A busy but healthy world where scheduled sweeps keep up with drops.",
			Capacity:    3000,
			Scopes:      []Scope{overworld(4, 0.5), nether(1), {Name: "end"}},
			Principals:  defaultPrincipals,
		},
		"item-flood": {
			Name:        "Item Flood",
			Description: "A duplication exploit floods the overworld with drops until throughput collapses.",
			Capacity:    2000,
			Scopes:      []Scope{overworld(4, 0.5), nether(1), {Name: "end"}},
			Principals:  defaultPrincipals,
			Phases: []Phase{
				{
					Name:        "setup",
					Description: "Normal play.",
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 60, Next: "escalation"}},
				},
				{
					Name:            "escalation",
					Description:     "Drops multiply as the exploit spreads.",
					SpawnMultiplier: 8,
					Triggers:        []Trigger{{Event: EventTimeElapsed, Value: 120, Next: "climax"}},
				},
				{
					Name:            "climax",
					Description:     "The exploit peaks.",
					SpawnMultiplier: 20,
					Triggers:        []Trigger{{Event: EventTimeElapsed, Value: 60, Next: "resolution"}},
				},
				{
					Name:        "resolution",
					Description: "The exploit is patched and play returns to normal.",
				},
			},
		},
		"mob-surge": {
			Name:        "Mob Surge",
			Description: "A long night spawns hostile creatures faster than players clear them.",
			Capacity:    1500,
			Scopes:      []Scope{overworld(2, 6), nether(1)},
			Principals:  defaultPrincipals,
			Phases: []Phase{
				{
					Name:        "setup",
					Description: "Dusk.",
					Triggers:    []Trigger{{Event: EventTimeElapsed, Value: 30, Next: "escalation"}},
				},
				{
					Name:            "escalation",
					Description:     "Night falls.",
					SpawnMultiplier: 4,
					Triggers:        []Trigger{{Event: EventTimeElapsed, Value: 240, Next: "resolution"}},
				},
				{
					Name:        "resolution",
					Description: "Sunrise.",
				},
			},
		},
	}
}
