// SPDX-License-Identifier: BSD-3-Clause

package fanctl

// GroupMember identifies one object path participating in a group, with
// an optional per-member service name override used when a member lives
// under a D-Bus service distinct from the group's default.
type GroupMember struct {
	Path    ObjectPath
	Service string
}

// Group (C3) names a set of object paths that share an interface and
// property, used by triggers to know what to subscribe to and by actions
// to know what to iterate when evaluating a rule.
type Group struct {
	Name      string
	Interface Interface
	Property  Property
	Members   []GroupMember
	// Value is the group's configured expected value, if any. Some
	// actions (e.g. call_actions_based_on_timer) drive themselves off
	// whether every member's cached value matches this when it's set,
	// falling back to the members' service ownership state when it isn't.
	Value    PropertyValue
	HasValue bool
}

// MemberPaths returns the bare object paths of every member, in
// configuration order.
func (g *Group) MemberPaths() []ObjectPath {
	paths := make([]ObjectPath, len(g.Members))
	for i, m := range g.Members {
		paths[i] = m.Path
	}
	return paths
}

// GroupSet resolves group names to *Group instances and is shared by the
// Zone, trigger registry and every action that references a "group" key
// in its JSON configuration.
type GroupSet struct {
	groups map[string]*Group
}

// NewGroupSet builds a GroupSet from a slice of groups, keyed by name.
func NewGroupSet(groups []*Group) *GroupSet {
	gs := &GroupSet{groups: make(map[string]*Group, len(groups))}
	for _, g := range groups {
		gs.groups[g.Name] = g
	}
	return gs
}

// Get looks up a group by name.
func (gs *GroupSet) Get(name string) (*Group, error) {
	g, ok := gs.groups[name]
	if !ok {
		return nil, fanctlUnknownGroup(name)
	}
	return g, nil
}

func fanctlUnknownGroup(name string) error {
	return wrapf(ErrUnknownGroup, name)
}
