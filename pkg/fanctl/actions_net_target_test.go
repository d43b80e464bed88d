// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNetTargetIncreaseRequestsProportionalDelta(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "temps", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value", Members: []GroupMember{
			{Path: "/sensor/t1"},
			{Path: "/sensor/t2"},
		}},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "temp_increase",
		"groups": []string{"temps"},
		"state":  "40",
		"delta":  100,
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newNetTargetIncrease(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	cache.Set("/sensor/t1", "xyz.openbmc_project.Sensor.Value", "Value", NewDoubleValue(45))
	cache.Set("/sensor/t2", "xyz.openbmc_project.Sensor.Value", "Value", NewDoubleValue(42))

	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 1000}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := zone.Target(); got <= 1000 {
		t.Fatalf("target = %d, want raised above base 1000", got)
	}
}

func TestNetTargetDecreaseGatesZoneWhenNoMemberBelowState(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "temps", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value", Members: []GroupMember{
			{Path: "/sensor/t1"},
		}},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "temp_decrease",
		"groups": []string{"temps"},
		"state":  "40",
		"delta":  100,
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newNetTargetDecrease(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	// Member is above the state threshold, so this group should not allow
	// a decrease at all this cycle.
	cache.Set("/sensor/t1", "xyz.openbmc_project.Sensor.Value", "Value", NewDoubleValue(50))

	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 5000}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	zone.RequestDecrease(1000)
	zone.applyDecreaseStep(context.Background())

	if got := zone.Target(); got != 5000 {
		t.Fatalf("target = %d, want unchanged 5000 since no group member is below the state threshold", got)
	}
}

func TestNetTargetDecreaseAllowsWhenMemberBelowState(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "temps", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value", Members: []GroupMember{
			{Path: "/sensor/t1"},
		}},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "temp_decrease",
		"groups": []string{"temps"},
		"state":  "40",
		"delta":  100,
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newNetTargetDecrease(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	cache.Set("/sensor/t1", "xyz.openbmc_project.Sensor.Value", "Value", NewDoubleValue(30))

	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 5000}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	zone.applyDecreaseStep(context.Background())

	if got := zone.Target(); got >= 5000 {
		t.Fatalf("target = %d, want lowered below 5000", got)
	}
}
