// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
)

// TestMappedFloorEntryDefault exercises scenario S1: ambient_temp=30.0
// against an entry keyed at 27 with no matching altitude threshold
// (altitude=6000 against a single {value:5000, floor:4500} pair) falls
// back to the entry's own default_floor of 3000.
func TestMappedFloorEntryDefault(t *testing.T) {
	ambient := &Group{Name: "ambient_temp", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value",
		Members: []GroupMember{{Path: "/sensors/ambient"}}}
	altitude := &Group{Name: "altitude", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value",
		Members: []GroupMember{{Path: "/sensors/altitude"}}}
	groups := NewGroupSet([]*Group{ambient, altitude})

	raw := json.RawMessage(`{
		"name": "mapped_floor0",
		"key_group": "ambient_temp",
		"default_floor": 1000,
		"fan_floors": [
			{
				"key": 27,
				"default_floor": 3000,
				"floors": [
					{"group": "altitude", "floors": [{"value": 5000, "floor": 4500}]}
				]
			}
		]
	}`)

	action, err := newMappedFloor(raw, groups)
	if err != nil {
		t.Fatalf("newMappedFloor: %v", err)
	}

	cache := NewCache()
	cache.Set("/sensors/ambient", ambient.Interface, ambient.Property, NewDoubleValue(30.0))
	cache.Set("/sensors/altitude", altitude.Interface, altitude.Property, NewDoubleValue(6000))

	z := NewZone(ZoneConfig{Name: "zone0", Floor: 500, Ceiling: 10000, DefaultTarget: 500}, testLogger())
	env := &ActionEnv{Zone: z, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := z.Floor(); got != 3000 {
		t.Fatalf("floor = %d, want 3000 (entry default)", got)
	}
}

// TestNetTargetIncreaseAsymmetry exercises scenario S2: a two-member
// integer group {40, 50} against state=35 and delta=10 yields
// max((40-35)*10, (50-35)*10) = 150.
func TestNetTargetIncreaseAsymmetry(t *testing.T) {
	group := &Group{Name: "load", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value",
		Members: []GroupMember{{Path: "/sensors/m0"}, {Path: "/sensors/m1"}}}
	groups := NewGroupSet([]*Group{group})

	raw := json.RawMessage(`{"name":"net_inc0","groups":["load"],"state":35,"delta":10}`)
	action, err := newNetTargetIncrease(raw, groups)
	if err != nil {
		t.Fatalf("newNetTargetIncrease: %v", err)
	}

	cache := NewCache()
	cache.Set("/sensors/m0", group.Interface, group.Property, NewInt64Value(40))
	cache.Set("/sensors/m1", group.Interface, group.Property, NewInt64Value(50))

	z := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 0}, testLogger())
	env := &ActionEnv{Zone: z, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := z.Recalculate(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := z.Target(); got != 150 {
		t.Fatalf("target = %d, want 150", got)
	}
}
