// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTimerBasedActionsByValueRunsActionsOnceStopped(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{
			Name:      "chassis_power",
			Interface: "xyz.openbmc_project.State.Chassis",
			Property:  "CurrentPowerState",
			Value:     NewStringValue("on"),
			HasValue:  true,
			Members: []GroupMember{
				{Path: "/chassis0"},
			},
		},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "power_on_settle",
		"groups": []string{"chassis_power"},
		"timer": map[string]any{
			"interval": 1000,
			"type":     "oneshot",
		},
		"actions": []map[string]any{
			{
				"type": "count_state_floor",
				"args": map[string]any{
					"name":  "settle_floor",
					"group": "chassis_power",
					"count": 1,
					"state": "on",
					"floor": 5000,
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newTimerBasedActions(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}
	tba := action.(*TimerBasedActions)

	cache := NewCache()
	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 0}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	ctx := context.Background()

	// No member matches "on" yet, condition is false: stopping an
	// already-stopped timer runs the actions immediately.
	cache.Set("/chassis0", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("off"))
	if err := tba.Run(ctx, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := zone.Floor(); got != 0 {
		t.Fatalf("floor = %d, want unchanged 0 before any match", got)
	}

	// Now every member matches: starts the timer.
	cache.Set("/chassis0", "xyz.openbmc_project.State.Chassis", "CurrentPowerState", NewStringValue("on"))
	if err := tba.Run(ctx, env); err != nil {
		t.Fatalf("run: %v", err)
	}
	tba.mu.Lock()
	enabled := tba.enabled
	tba.mu.Unlock()
	if !enabled {
		t.Fatalf("timer enabled = false, want true once condition holds")
	}
	if got := zone.Floor(); got != 0 {
		t.Fatalf("floor = %d, want unchanged 0 while the timer is still pending", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := zone.Floor(); got != 5000 {
		t.Fatalf("floor = %d, want 5000 once the oneshot timer expired and ran the nested action", got)
	}
}

func TestTimerBasedActionsByOwnerStartsOnMissingOwner(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{
			Name:      "fan_controller",
			Interface: "xyz.openbmc_project.Control.FanSpeed",
			Property:  "Target",
			Members: []GroupMember{
				{Path: "/fan0", Service: "xyz.openbmc_project.FanSvc"},
			},
		},
	})

	raw, err := json.Marshal(map[string]any{
		"name":   "fan_svc_watchdog",
		"groups": []string{"fan_controller"},
		"timer": map[string]any{
			"interval": 1000,
			"type":     "repeating",
		},
		"actions": []map[string]any{
			{
				"type": "test",
				"args": map[string]any{},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newTimerBasedActions(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}
	tba := action.(*TimerBasedActions)
	if !tba.byOwner {
		t.Fatalf("byOwner = false, want true when the group has no configured value")
	}

	cache := NewCache()
	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 0}, testLogger())
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups}

	// No owner recorded for the service yet: Cache.Owner reports unowned.
	if err := tba.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}
	tba.mu.Lock()
	enabled := tba.enabled
	tba.mu.Unlock()
	if !enabled {
		t.Fatalf("timer enabled = false, want true while the service is unowned")
	}
}
