// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
)

func newPCIeCardFloorsFixture(t *testing.T) (*GroupSet, *Group) {
	t.Helper()
	cards := &Group{Name: "pcie_cards_present", Interface: "xyz.openbmc_project.Inventory.Item", Property: "Present",
		Members: []GroupMember{
			{Path: "/inventory/pcie_card0"},
			{Path: "/inventory/pcie_card1"},
			{Path: "/inventory/pcie_card2"},
		}}
	return NewGroupSet([]*Group{cards}), cards
}

func pcieCardFloorsAction(t *testing.T, groups *GroupSet) Action {
	t.Helper()
	raw := json.RawMessage(`{
		"name": "pcie_card_count_floor",
		"cards_group": "pcie_cards_present",
		"floor_indexes": [
			{"count": 1, "floor": 4500},
			{"count": 2, "floor": 6000},
			{"count": 3, "floor": 8000}
		]
	}`)
	action, err := newPCIeCardFloors(raw, groups)
	if err != nil {
		t.Fatalf("newPCIeCardFloors: %v", err)
	}
	return action
}

// TestPCIeCardFloorsSelectsHighestMatchingEntry exercises the step
// function with two of three cards present: the MinCount=2 entry wins
// over MinCount=1, and MinCount=3 does not apply.
func TestPCIeCardFloorsSelectsHighestMatchingEntry(t *testing.T) {
	groups, cards := newPCIeCardFloorsFixture(t)
	action := pcieCardFloorsAction(t, groups)

	cache := NewCache()
	cache.Set("/inventory/pcie_card0", cards.Interface, cards.Property, NewBoolValue(true))
	cache.Set("/inventory/pcie_card1", cards.Interface, cards.Property, NewBoolValue(true))
	cache.Set("/inventory/pcie_card2", cards.Interface, cards.Property, NewBoolValue(false))

	z := NewZone(ZoneConfig{Name: "zone0", Floor: 3000, Ceiling: 10000, DefaultTarget: 3000}, testLogger())
	env := &ActionEnv{Zone: z, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := z.Floor(); got != 6000 {
		t.Fatalf("floor = %d, want 6000", got)
	}
}

// TestPCIeCardFloorsNoCardsClearsHold verifies that zero present cards
// falls below every entry's MinCount and releases the floor hold rather
// than defaulting to an arbitrary floor.
func TestPCIeCardFloorsNoCardsClearsHold(t *testing.T) {
	groups, cards := newPCIeCardFloorsFixture(t)
	action := pcieCardFloorsAction(t, groups)

	cache := NewCache()
	cache.Set("/inventory/pcie_card0", cards.Interface, cards.Property, NewBoolValue(false))
	cache.Set("/inventory/pcie_card1", cards.Interface, cards.Property, NewBoolValue(false))
	cache.Set("/inventory/pcie_card2", cards.Interface, cards.Property, NewBoolValue(false))

	z := NewZone(ZoneConfig{Name: "zone0", Floor: 3000, Ceiling: 10000, DefaultTarget: 3000}, testLogger())
	env := &ActionEnv{Zone: z, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := z.Floor(); got != 3000 {
		t.Fatalf("floor = %d, want 3000 (config floor, hold released)", got)
	}
}

// TestPCIeCardFloorsAllCardsPresentUsesMaxFloor exercises the top of the
// step function: all three cards present selects the MinCount=3 entry.
func TestPCIeCardFloorsAllCardsPresentUsesMaxFloor(t *testing.T) {
	groups, cards := newPCIeCardFloorsFixture(t)
	action := pcieCardFloorsAction(t, groups)

	cache := NewCache()
	cache.Set("/inventory/pcie_card0", cards.Interface, cards.Property, NewBoolValue(true))
	cache.Set("/inventory/pcie_card1", cards.Interface, cards.Property, NewBoolValue(true))
	cache.Set("/inventory/pcie_card2", cards.Interface, cards.Property, NewBoolValue(true))

	z := NewZone(ZoneConfig{Name: "zone0", Floor: 3000, Ceiling: 10000, DefaultTarget: 3000}, testLogger())
	env := &ActionEnv{Zone: z, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := z.Floor(); got != 8000 {
		t.Fatalf("floor = %d, want 8000", got)
	}
}
