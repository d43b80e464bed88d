// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import "context"

// ObjectPath identifies a D-Bus-style object, e.g. "/xyz/openbmc_project/sensors/fan_tach/fan0".
type ObjectPath string

// Interface identifies a D-Bus-style interface, e.g. "xyz.openbmc_project.Sensor.Value".
type Interface string

// Property identifies a property name within an interface, e.g. "Value".
type Property string

// Broker is the object-broker client contract (C1): the thin abstraction
// over the system bus that the rest of the control engine depends on so
// it can be driven against an in-process fake in tests. A production
// Broker implementation is expected to subscribe to PropertiesChanged
// and InterfacesAdded/Removed signals and forward them to a Manager's
// signal trigger dispatch.
type Broker interface {
	// GetProperty fetches a single property's live value directly from
	// the broker, bypassing the cache. Used during startup enumeration
	// and by actions that explicitly require a fresh read.
	GetProperty(ctx context.Context, path ObjectPath, iface Interface, prop Property) (PropertyValue, error)

	// SetProperty writes a property value, used by actions such as
	// override_fan_target and dbus_zone's mode/target/floor/ceiling
	// publication.
	SetProperty(ctx context.Context, path ObjectPath, iface Interface, prop Property, value PropertyValue) error

	// GetManagedObjects enumerates every interface/property under a
	// service name's object tree, used by the get_managed_objects
	// action and by startup cache population.
	GetManagedObjects(ctx context.Context, service string) (map[ObjectPath]map[Interface]map[Property]PropertyValue, error)

	// ServiceOwner returns the current D-Bus unique name owning the
	// given service, or "" if nothing currently owns it. Used to
	// detect the "missing owner" condition actions such as
	// missing_owner_target and default_floor_on_missing_owner react to.
	ServiceOwner(ctx context.Context, service string) (string, error)
}
