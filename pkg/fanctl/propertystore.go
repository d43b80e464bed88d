// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"sync"
)

// PropertyStore is a thread-safe in-memory object tree implementing
// Broker's object-graph shape, for target main packages that have no
// real D-Bus connection to talk to (a self-hosted mock backend, or a
// board that only exposes sensors/actuators through sysfs and fronts
// them with a synthetic object tree locally instead of a system bus).
// Embed it in a board-specific broker and override the methods that
// need to reach real hardware.
type PropertyStore struct {
	mu    sync.Mutex
	owner string
	tree  map[ObjectPath]map[Interface]map[Property]PropertyValue
}

// NewPropertyStore constructs a PropertyStore seeded with the given
// object tree (which it takes ownership of) and a default service owner
// string returned from ServiceOwner.
func NewPropertyStore(seed map[ObjectPath]map[Interface]map[Property]PropertyValue, owner string) *PropertyStore {
	if seed == nil {
		seed = map[ObjectPath]map[Interface]map[Property]PropertyValue{}
	}
	return &PropertyStore{tree: seed, owner: owner}
}

// GetProperty implements Broker.
func (s *PropertyStore) GetProperty(_ context.Context, path ObjectPath, iface Interface, prop Property) (PropertyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byIface, ok := s.tree[path]; ok {
		if byProp, ok := byIface[iface]; ok {
			if v, ok := byProp[prop]; ok {
				return v, nil
			}
		}
	}
	return PropertyValue{}, ErrPropertyNotFound
}

// SetProperty implements Broker.
func (s *PropertyStore) SetProperty(_ context.Context, path ObjectPath, iface Interface, prop Property, value PropertyValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree[path] == nil {
		s.tree[path] = map[Interface]map[Property]PropertyValue{}
	}
	if s.tree[path][iface] == nil {
		s.tree[path][iface] = map[Property]PropertyValue{}
	}
	s.tree[path][iface][prop] = value
	return nil
}

// GetManagedObjects implements Broker. The service argument is ignored:
// a PropertyStore backs a single local object tree, not a multi-service
// bus.
func (s *PropertyStore) GetManagedObjects(_ context.Context, _ string) (map[ObjectPath]map[Interface]map[Property]PropertyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ObjectPath]map[Interface]map[Property]PropertyValue, len(s.tree))
	for path, byIface := range s.tree {
		ifaceCopy := make(map[Interface]map[Property]PropertyValue, len(byIface))
		for iface, byProp := range byIface {
			propCopy := make(map[Property]PropertyValue, len(byProp))
			for prop, v := range byProp {
				propCopy[prop] = v
			}
			ifaceCopy[iface] = propCopy
		}
		out[path] = ifaceCopy
	}
	return out, nil
}

// ServiceOwner implements Broker, always returning the owner string this
// store was constructed with.
func (s *PropertyStore) ServiceOwner(_ context.Context, _ string) (string, error) {
	return s.owner, nil
}

var _ Broker = (*PropertyStore)(nil)
