// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
)

func TestCountStateTargetHoldsOnceThresholdReached(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "power_supplies", Interface: "xyz.openbmc_project.State.Chassis", Property: "CurrentPowerState", Members: []GroupMember{
			{Path: "/psu0"},
			{Path: "/psu1"},
		}},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "psu_fault_target",
		"group":  "power_supplies",
		"count":  2,
		"state":  "fault",
		"target": 9000,
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newCountStateTarget(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	cache.Set("/psu0", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("fault"))
	cache.Set("/psu1", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("ok"))

	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 2000}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	ctx := context.Background()
	if err := action.Run(ctx, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := zone.Target(); got != 2000 {
		t.Fatalf("target = %d, want unchanged 2000 below threshold", got)
	}

	cache.Set("/psu1", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("fault"))
	if err := action.Run(ctx, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := zone.Target(); got != 9000 {
		t.Fatalf("target = %d, want held at 9000 once both PSUs fault", got)
	}

	cache.Set("/psu1", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("ok"))
	if err := action.Run(ctx, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := zone.Recalculate(ctx); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	// Releasing the hold doesn't itself request a decrease: the target
	// stays at the last held value until a decrease is separately
	// requested and applied.
	if got := zone.Target(); got != 9000 {
		t.Fatalf("target = %d, want held value 9000 to persist until a decrease is requested", got)
	}
}
