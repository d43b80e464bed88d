// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("get_managed_objects", newGetManagedObjects)
}

type getManagedObjectsJSON struct {
	Name    string          `json:"name"`
	Groups  []string        `json:"groups"`
	Actions []subActionJSON `json:"actions"`
}

// GetManagedObjects refreshes the cache for every member of its configured
// groups directly from the broker rather than waiting on the next signal,
// batching the refresh once per distinct owning service when a member
// declares one, then runs a nested list of actions against the refreshed
// values. It's used after a name-owner-changed event to re-seed the cache
// for a service that just came back, since that service's own
// PropertiesChanged signals were missed while it was down.
type GetManagedObjects struct {
	name    string
	groups  []*Group
	actions []Action
}

func newGetManagedObjects(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j getManagedObjectsJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	resolved, err := resolveGroups(j.Groups, groups)
	if err != nil {
		return nil, err
	}

	actions, err := buildActions(j.Actions, groups)
	if err != nil {
		return nil, err
	}

	return &GetManagedObjects{name: j.Name, groups: resolved, actions: actions}, nil
}

func (a *GetManagedObjects) Run(ctx context.Context, env *ActionEnv) error {
	broker := env.Manager.Broker()

	refreshedServices := make(map[string]bool)
	for _, g := range a.groups {
		for _, member := range g.Members {
			if member.Service != "" && !refreshedServices[member.Service] {
				refreshedServices[member.Service] = true
				if err := a.refreshService(ctx, env, broker, member.Service); err != nil {
					// The service may have vanished between the
					// triggering event and this run; fall back to a
					// per-member read instead of failing the whole
					// action.
					_ = env.Cache.Refresh(ctx, broker, member.Path, g.Interface, g.Property)
				}
				continue
			}
			if member.Service == "" {
				_ = env.Cache.Refresh(ctx, broker, member.Path, g.Interface, g.Property)
			}
		}
	}

	for _, action := range a.actions {
		if err := action.Run(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (a *GetManagedObjects) refreshService(ctx context.Context, env *ActionEnv, broker Broker, service string) error {
	objects, err := broker.GetManagedObjects(ctx, service)
	if err != nil {
		return err
	}
	for path, ifaces := range objects {
		for iface, props := range ifaces {
			for prop, value := range props {
				env.Cache.Set(path, iface, prop, value)
			}
		}
	}
	return nil
}
