// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("net_target_increase", newNetTargetIncrease)
	Register("net_target_decrease", newNetTargetDecrease)
}

type netTargetJSON struct {
	Name        string `json:"name"`
	Groups      []string `json:"groups"`
	State       json.Number `json:"state"`
	StateSource *struct {
		Group    string `json:"group"`
		Modifier *struct {
			Operation string      `json:"operation"`
			Value     json.Number `json:"value"`
		} `json:"modifier"`
	} `json:"state_source"`
	Delta int64 `json:"delta"`
}

type netTargetBase struct {
	name        string
	groups      []*Group
	state       PropertyValue
	stateSource *Group
	modOp       string
	modValue    float64
	delta       int64
}

func parseNetTargetBase(raw json.RawMessage, groups *GroupSet) (*netTargetBase, error) {
	var j netTargetJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	resolved, err := resolveGroups(j.Groups, groups)
	if err != nil {
		return nil, err
	}

	b := &netTargetBase{name: j.Name, groups: resolved, delta: j.Delta}

	switch {
	case j.StateSource != nil:
		g, err := groups.Get(j.StateSource.Group)
		if err != nil {
			return nil, err
		}
		b.stateSource = g
		if j.StateSource.Modifier != nil {
			b.modOp = j.StateSource.Modifier.Operation
			b.modValue, _ = j.StateSource.Modifier.Value.Float64()
		}
	case len(j.State) > 0:
		if f, err := j.State.Float64(); err == nil {
			b.state = NewDoubleValue(f)
		} else {
			b.state = NewStringValue(j.State.String())
		}
	default:
		return nil, fmt.Errorf("%w: net target action missing state or state_source", ErrInvalidJSON)
	}

	return b, nil
}

func (b *netTargetBase) resolveState(env *ActionEnv) (PropertyValue, bool) {
	if b.stateSource == nil {
		return b.state, true
	}
	if len(b.stateSource.Members) == 0 {
		return PropertyValue{}, false
	}
	member := b.stateSource.Members[0]
	v, err := env.Cache.Get(member.Path, b.stateSource.Interface, b.stateSource.Property)
	if err != nil {
		return PropertyValue{}, false
	}
	if b.modOp != "" {
		if f, ok := v.AsFloat64(); ok {
			switch b.modOp {
			case "add":
				f += b.modValue
			case "subtract":
				f -= b.modValue
			case "multiply":
				f *= b.modValue
			case "divide":
				if b.modValue != 0 {
					f /= b.modValue
				}
			}
			v = NewDoubleValue(f)
		}
	}
	return v, true
}

// NetTargetIncrease requests a zone target increase proportional to how
// far group members exceed a state threshold, or a flat delta for
// boolean/string equality groups.
type NetTargetIncrease struct{ *netTargetBase }

func newNetTargetIncrease(raw json.RawMessage, groups *GroupSet) (Action, error) {
	b, err := parseNetTargetBase(raw, groups)
	if err != nil {
		return nil, err
	}
	return &NetTargetIncrease{b}, nil
}

func (a *NetTargetIncrease) Run(ctx context.Context, env *ActionEnv) error {
	stateValue, ok := a.resolveState(env)
	if !ok {
		return nil
	}

	netDelta := env.Zone.GetIncDelta()

	for _, group := range a.groups {
		if a.stateSource != nil && a.stateSource.Name == group.Name {
			continue
		}
		for _, member := range group.Members {
			value, err := env.Cache.Get(member.Path, group.Interface, group.Property)
			if err != nil {
				continue
			}

			if vf, isNum := value.AsFloat64(); isNum {
				sf, sok := stateValue.AsFloat64()
				if !sok || vf < sf {
					continue
				}
				var inc int64
				if value.Kind() == KindDouble {
					inc = int64((vf - sf) * float64(a.delta))
				} else {
					factor := int64(vf) - int64(sf)
					if factor < 1 {
						factor = 1
					}
					inc = factor * a.delta
				}
				if inc > netDelta {
					netDelta = inc
				}
				continue
			}

			if value.Equal(stateValue) && a.delta > netDelta {
				netDelta = a.delta
			}
		}
	}

	env.Zone.RequestIncrease(ctx, netDelta)
	return nil
}

// NetTargetDecrease is the symmetric decrease-side counterpart to
// NetTargetIncrease: it requests a decrease proportional to how far group
// members are below the state threshold, so a single returning-to-normal
// group member doesn't prematurely unwind the whole zone's target.
type NetTargetDecrease struct{ *netTargetBase }

func newNetTargetDecrease(raw json.RawMessage, groups *GroupSet) (Action, error) {
	b, err := parseNetTargetBase(raw, groups)
	if err != nil {
		return nil, err
	}
	return &NetTargetDecrease{b}, nil
}

func (a *NetTargetDecrease) Run(ctx context.Context, env *ActionEnv) error {
	stateValue, ok := a.resolveState(env)
	if !ok {
		return nil
	}

	// The net decrease is the smallest across members that still satisfy
	// the "below state" condition, so the most demanding member gates how
	// far the target is allowed to unwind this cycle.
	var netDelta int64 = -1

	for _, group := range a.groups {
		if a.stateSource != nil && a.stateSource.Name == group.Name {
			continue
		}

		groupDelta := int64(-1)
		for _, member := range group.Members {
			value, err := env.Cache.Get(member.Path, group.Interface, group.Property)
			if err != nil {
				continue
			}

			vf, isNum := value.AsFloat64()
			if !isNum {
				continue
			}
			sf, sok := stateValue.AsFloat64()
			if !sok {
				continue
			}
			if vf >= sf {
				groupDelta = 0
				break
			}
			factor := int64(sf) - int64(vf)
			if factor < 1 {
				factor = 1
			}
			dec := factor * a.delta
			if groupDelta < 0 || dec < groupDelta {
				groupDelta = dec
			}
		}

		// A group with any member at or above the state threshold, or no
		// readable member below it, blocks the zone's decrease timer from
		// stepping the target down at all this cycle, not just from this
		// group's contribution.
		env.Zone.SetDecreaseAllowed(group.Name, groupDelta > 0)

		if groupDelta >= 0 && (netDelta < 0 || groupDelta < netDelta) {
			netDelta = groupDelta
		}
	}

	if netDelta > 0 {
		env.Zone.RequestDecrease(netDelta)
	}
	return nil
}
