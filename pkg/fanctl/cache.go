// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"fmt"
	"sync"
)

type cacheKey struct {
	path  ObjectPath
	iface Interface
	prop  Property
}

// Cache is the property cache (C2): the single in-process source of truth
// for every object/interface/property value the control engine has
// observed, populated from startup GetManagedObjects enumeration and kept
// current by PropertiesChanged/InterfacesAdded/InterfacesRemoved signal
// triggers. Reads never block on the bus; only the signal dispatch path
// writes to it, preserving the single-writer invariant from the
// concurrency model.
type Cache struct {
	mu     sync.RWMutex
	values map[cacheKey]PropertyValue
	owners map[string]string // service name -> current D-Bus unique name owner
}

// NewCache returns an empty property cache.
func NewCache() *Cache {
	return &Cache{
		values: make(map[cacheKey]PropertyValue),
		owners: make(map[string]string),
	}
}

// Get returns the cached value for the given tuple.
func (c *Cache) Get(path ObjectPath, iface Interface, prop Property) (PropertyValue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[cacheKey{path, iface, prop}]
	if !ok {
		return PropertyValue{}, fmt.Errorf("%w: %s %s %s", ErrPropertyNotFound, path, iface, prop)
	}
	return v, nil
}

// Set stores or overwrites a cached value. Equivalent to the real engine's
// PropertiesChanged signal handler updating the cache in place.
func (c *Cache) Set(path ObjectPath, iface Interface, prop Property, value PropertyValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[cacheKey{path, iface, prop}] = value
}

// Remove deletes every cached property under path/iface, used when an
// InterfacesRemoved signal reports an object leaving the bus.
func (c *Cache) Remove(path ObjectPath, iface Interface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.values {
		if k.path == path && k.iface == iface {
			delete(c.values, k)
		}
	}
}

// SetOwner records the current D-Bus unique name owner of a service, or
// clears it when owner is "".
func (c *Cache) SetOwner(service, owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner == "" {
		delete(c.owners, service)
		return
	}
	c.owners[service] = owner
}

// Owner returns the recorded owner of service and whether it is currently owned.
func (c *Cache) Owner(service string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[service]
	return owner, ok
}

// Refresh re-reads a single property straight from broker and stores it,
// the get_managed_objects action's fallback path for a member with no
// ObjectManager ancestor to batch-enumerate through.
func (c *Cache) Refresh(ctx context.Context, broker Broker, path ObjectPath, iface Interface, prop Property) error {
	v, err := broker.GetProperty(ctx, path, iface, prop)
	if err != nil {
		return err
	}
	c.Set(path, iface, prop, v)
	return nil
}
