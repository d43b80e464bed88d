// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Action (C5) is a single configured rule evaluated against a Zone
// whenever one of its triggers fires. Concrete actions are registered by
// type name via Register and constructed from raw JSON by the config
// loader.
type Action interface {
	// Run evaluates the action against the given zone and manager
	// context, applying its effect (typically a Zone.RequestIncrease,
	// RequestDecrease, SetFloor or a ParameterStore write).
	Run(ctx context.Context, env *ActionEnv) error
}

// ActionEnv bundles everything an Action needs to evaluate itself:
// the zone it is running against, the resolved groups it was configured
// with, and the shared engine-wide cache and parameter store.
type ActionEnv struct {
	Zone    *Zone
	Cache   *Cache
	Params  *ParameterStore
	Groups  *GroupSet
	Manager *Manager
}

// Factory constructs an Action from its raw JSON configuration object and
// the engine's resolved group set, the way each *_action.cpp constructor
// takes the JSON object plus the Zone's groups vector.
type Factory func(raw json.RawMessage, groups *GroupSet) (Action, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register adds a named action factory to the global registry. Concrete
// action files call this from an init() func, giving an explicit,
// grep-able registration site per action type instead of relying on
// reflection-based self-registration.
func Register(actionType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[actionType]; exists {
		panic(wrapf(ErrActionAlreadyRegistered, actionType))
	}
	registry[actionType] = factory
}

// Build looks up actionType in the registry and constructs an Action from
// raw using its factory.
func Build(actionType string, raw json.RawMessage, groups *GroupSet) (Action, error) {
	registryMu.Lock()
	factory, ok := registry[actionType]
	registryMu.Unlock()
	if !ok {
		return nil, wrapf(ErrUnknownAction, actionType)
	}
	a, err := factory(raw, groups)
	if err != nil {
		return nil, fmt.Errorf("building action %q: %w", actionType, err)
	}
	return a, nil
}

// resolveGroups is a small helper shared by action constructors that take
// a "groups": [...] JSON array of group names.
func resolveGroups(names []string, groups *GroupSet) ([]*Group, error) {
	resolved := make([]*Group, 0, len(names))
	for _, name := range names {
		g, err := groups.Get(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, g)
	}
	return resolved, nil
}

// subActionJSON is the {"type": "...", "args": {...}} shape used
// wherever one action wraps a nested list of actions to run, such as
// call_actions_based_on_timer and get_managed_objects. It mirrors the
// top-level events.json action shape so config authors only learn one
// action syntax.
type subActionJSON struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args"`
}

// buildActions constructs a list of Actions from a nested subActionJSON
// array, resolving every sub-action's group names against groups.
func buildActions(raw []subActionJSON, groups *GroupSet) ([]Action, error) {
	actions := make([]Action, 0, len(raw))
	for _, sa := range raw {
		action, err := Build(sa.Type, sa.Args, groups)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}
