// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"errors"
	"testing"
)

func TestPropertyStoreGetSetRoundTrip(t *testing.T) {
	s := NewPropertyStore(nil, "test.owner")
	ctx := context.Background()

	path := ObjectPath("/xyz/openbmc_project/sensors/fan_tach/fan0")
	iface := Interface("xyz.openbmc_project.Sensor.Value")

	if _, err := s.GetProperty(ctx, path, iface, "Value"); !errors.Is(err, ErrPropertyNotFound) {
		t.Fatalf("GetProperty on empty store: err = %v, want ErrPropertyNotFound", err)
	}

	if err := s.SetProperty(ctx, path, iface, "Value", NewDoubleValue(4000)); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}

	v, err := s.GetProperty(ctx, path, iface, "Value")
	if err != nil {
		t.Fatalf("GetProperty after set: %v", err)
	}
	if f, _ := v.Double(); f != 4000 {
		t.Fatalf("Value = %v, want 4000", f)
	}

	owner, err := s.ServiceOwner(ctx, "xyz.openbmc_project.FanSensor")
	if err != nil || owner != "test.owner" {
		t.Fatalf("ServiceOwner = %q, %v, want \"test.owner\", nil", owner, err)
	}
}

func TestPropertyStoreGetManagedObjectsReturnsIndependentCopy(t *testing.T) {
	seed := map[ObjectPath]map[Interface]map[Property]PropertyValue{
		"/a": {"iface": {"p": NewBoolValue(true)}},
	}
	s := NewPropertyStore(seed, "owner")

	objs, err := s.GetManagedObjects(context.Background(), "")
	if err != nil {
		t.Fatalf("GetManagedObjects: %v", err)
	}
	objs["/a"]["iface"]["p"] = NewBoolValue(false)

	v, err := s.GetProperty(context.Background(), "/a", "iface", "p")
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	b, _ := v.Bool()
	if !b {
		t.Fatalf("mutating GetManagedObjects result leaked into the store: p = %v, want true", b)
	}
}
