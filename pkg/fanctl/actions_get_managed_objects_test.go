// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeBroker is a minimal in-memory Broker used to exercise actions that
// read straight from the broker rather than the cache.
type fakeBroker struct {
	objects map[string]map[ObjectPath]map[Interface]map[Property]PropertyValue
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{objects: make(map[string]map[ObjectPath]map[Interface]map[Property]PropertyValue)}
}

func (b *fakeBroker) setObject(service string, path ObjectPath, iface Interface, prop Property, value PropertyValue) {
	svc, ok := b.objects[service]
	if !ok {
		svc = make(map[ObjectPath]map[Interface]map[Property]PropertyValue)
		b.objects[service] = svc
	}
	ifaces, ok := svc[path]
	if !ok {
		ifaces = make(map[Interface]map[Property]PropertyValue)
		svc[path] = ifaces
	}
	props, ok := ifaces[iface]
	if !ok {
		props = make(map[Property]PropertyValue)
		ifaces[iface] = props
	}
	props[prop] = value
}

func (b *fakeBroker) GetProperty(_ context.Context, path ObjectPath, iface Interface, prop Property) (PropertyValue, error) {
	for _, svc := range b.objects {
		if ifaces, ok := svc[path]; ok {
			if props, ok := ifaces[iface]; ok {
				if v, ok := props[prop]; ok {
					return v, nil
				}
			}
		}
	}
	return PropertyValue{}, wrapf(ErrPropertyNotFound, string(path))
}

func (b *fakeBroker) SetProperty(_ context.Context, _ ObjectPath, _ Interface, _ Property, _ PropertyValue) error {
	return nil
}

func (b *fakeBroker) GetManagedObjects(_ context.Context, service string) (map[ObjectPath]map[Interface]map[Property]PropertyValue, error) {
	objects, ok := b.objects[service]
	if !ok {
		return nil, wrapf(ErrUnknownService, service)
	}
	return objects, nil
}

func (b *fakeBroker) ServiceOwner(_ context.Context, service string) (string, error) {
	if _, ok := b.objects[service]; ok {
		return ":1.1", nil
	}
	return "", nil
}

func TestGetManagedObjectsRefreshesCacheAndRunsNestedActions(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "psu_faults", Interface: "xyz.openbmc_project.State.Chassis", Property: "Fault", Members: []GroupMember{
			{Path: "/psu0", Service: "xyz.openbmc_project.PSU0"},
		}},
	})

	broker := newFakeBroker()
	broker.setObject("xyz.openbmc_project.PSU0", "/psu0", "xyz.openbmc_project.State.Chassis", "Fault", NewBoolValue(true))

	raw, err := json.Marshal(map[string]any{
		"name":   "psu_refresh",
		"groups": []string{"psu_faults"},
		"actions": []map[string]any{
			{
				"type": "count_state_floor",
				"args": map[string]any{
					"name":  "psu_fault_floor",
					"group": "psu_faults",
					"count": 1,
					"state": true,
					"floor": 8000,
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newGetManagedObjects(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 1000, Ceiling: 10000, DefaultTarget: 1000}, testLogger())
	mgr, err := NewManager(broker, testLogger())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups, Manager: mgr}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	v, err := cache.Get("/psu0", "xyz.openbmc_project.State.Chassis", "Fault")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if b, _ := v.Bool(); !b {
		t.Fatalf("cached fault value = %v, want true", b)
	}

	if got := zone.Floor(); got != 8000 {
		t.Fatalf("floor = %d, want 8000 from the nested count_state_floor action", got)
	}
}

func TestGetManagedObjectsFallsBackToPerMemberRefresh(t *testing.T) {
	groups := NewGroupSet([]*Group{
		{Name: "sensor_values", Interface: "xyz.openbmc_project.Sensor.Value", Property: "Value", Members: []GroupMember{
			{Path: "/sensor/t0"},
		}},
	})

	broker := newFakeBroker()
	broker.setObject("", "/sensor/t0", "xyz.openbmc_project.Sensor.Value", "Value", NewDoubleValue(55))

	raw, err := json.Marshal(map[string]any{
		"name":   "sensor_refresh",
		"groups": []string{"sensor_values"},
	})
	if err != nil {
		t.Fatal(err)
	}

	action, err := newGetManagedObjects(raw, groups)
	if err != nil {
		t.Fatalf("build action: %v", err)
	}

	cache := NewCache()
	zone := NewZone(ZoneConfig{Name: "zone0", Floor: 0, Ceiling: 10000, DefaultTarget: 0}, testLogger())
	mgr, err := NewManager(broker, testLogger())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	env := &ActionEnv{Zone: zone, Cache: cache, Params: NewParameterStore(), Groups: groups, Manager: mgr}

	if err := action.Run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	v, err := cache.Get("/sensor/t0", "xyz.openbmc_project.Sensor.Value", "Value")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	if f, _ := v.AsFloat64(); f != 55 {
		t.Fatalf("cached value = %v, want 55", f)
	}
}
