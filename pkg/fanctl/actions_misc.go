// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("override_fan_target", newOverrideFanTarget)
	Register("set_parameter_from_group", newSetParameterFromGroup)
	Register("set_parameter_from_group_max", newSetParameterFromGroupMax)
	Register("target_from_group_max", newTargetFromGroupMax)
	Register("missing_owner_target", newMissingOwnerTarget)
	Register("default_floor_on_missing_owner", newDefaultFloorOnMissingOwner)
	Register("count_state_floor", newCountStateFloor)
	Register("test", newTestAction)
}

// OverrideFanTarget locks a configured set of fans at a fixed target once
// at least Count group members equal State, and unlocks them once the
// count drops back below threshold.
type OverrideFanTarget struct {
	name    string
	group   *Group
	count   int
	state   PropertyValue
	target  int64
	fans    []*Fan
	locked  bool
}

type overrideFanTargetJSON struct {
	Name   string      `json:"name"`
	Group  string      `json:"group"`
	Count  int         `json:"count"`
	State  json.Number `json:"state"`
	Target int64       `json:"target"`
}

func newOverrideFanTarget(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j overrideFanTargetJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	g, err := groups.Get(j.Group)
	if err != nil {
		return nil, err
	}
	state := NewStringValue(j.State.String())
	if f, err := j.State.Float64(); err == nil {
		state = NewDoubleValue(f)
	}
	return &OverrideFanTarget{name: j.Name, group: g, count: j.Count, state: state, target: j.Target}, nil
}

// BindFans attaches the control-side fans this override locks/unlocks.
// Called by the Manager when wiring a zone's fan list to this action.
func (a *OverrideFanTarget) BindFans(fans []*Fan) { a.fans = fans }

func (a *OverrideFanTarget) Run(ctx context.Context, env *ActionEnv) error {
	count := 0
	for _, member := range a.group.Members {
		v, err := env.Cache.Get(member.Path, a.group.Interface, a.group.Property)
		if err != nil {
			continue
		}
		if v.Equal(a.state) {
			count++
		}
	}

	shouldLock := count >= a.count
	if shouldLock && !a.locked {
		a.locked = true
		for _, f := range a.fans {
			_ = f.Lock(ctx, a.target)
		}
	} else if !shouldLock && a.locked {
		a.locked = false
		for _, f := range a.fans {
			_ = f.Unlock(ctx)
		}
	}
	return nil
}

// SetParameterFromGroup reads a single member's property (optionally
// maxed across members) and writes it into the parameter store.
type SetParameterFromGroup struct {
	name  string
	group *Group
	param string
	max   bool
}

type setParameterJSON struct {
	Name      string `json:"name"`
	Group     string `json:"group"`
	Parameter string `json:"parameter"`
}

func newSetParameterFromGroup(raw json.RawMessage, groups *GroupSet) (Action, error) {
	return buildSetParameterFromGroup(raw, groups, false)
}

func newSetParameterFromGroupMax(raw json.RawMessage, groups *GroupSet) (Action, error) {
	return buildSetParameterFromGroup(raw, groups, true)
}

func buildSetParameterFromGroup(raw json.RawMessage, groups *GroupSet, max bool) (Action, error) {
	var j setParameterJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	g, err := groups.Get(j.Group)
	if err != nil {
		return nil, err
	}
	return &SetParameterFromGroup{name: j.Name, group: g, param: j.Parameter, max: max}, nil
}

func (a *SetParameterFromGroup) Run(ctx context.Context, env *ActionEnv) error {
	if a.max {
		if v, ok := groupMaxValue(env.Cache, a.group); ok {
			env.Params.Set(a.param, v)
		} else {
			env.Params.Delete(a.param)
		}
		return nil
	}

	if len(a.group.Members) == 0 {
		env.Params.Delete(a.param)
		return nil
	}
	member := a.group.Members[0]
	v, err := env.Cache.Get(member.Path, a.group.Interface, a.group.Property)
	if err != nil {
		env.Params.Delete(a.param)
		return nil
	}
	env.Params.Set(a.param, v)
	return nil
}

// TargetFromGroupMax maps each configured group's max member value
// through a piecewise (value -> target) table, applying asymmetric
// hysteresis, and submits the maximum mapped target across all its
// groups directly as the zone's target via a hold.
type TargetFromGroupMax struct {
	name       string
	groups     []*Group
	table      []targetEntry
	posHyst    float64
	negHyst    float64
	lastValues map[string]float64
}

type targetEntry struct {
	Value  float64
	Target int64
}

type targetFromGroupMaxJSON struct {
	Name   string  `json:"name"`
	Groups []string `json:"groups"`
	Map    []struct {
		Value  float64 `json:"value"`
		Target int64   `json:"target"`
	} `json:"map"`
	PosHysteresis float64 `json:"pos_hysteresis"`
	NegHysteresis float64 `json:"neg_hysteresis"`
}

func newTargetFromGroupMax(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j targetFromGroupMaxJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	resolved, err := resolveGroups(j.Groups, groups)
	if err != nil {
		return nil, err
	}
	t := &TargetFromGroupMax{
		name:       j.Name,
		groups:     resolved,
		posHyst:    j.PosHysteresis,
		negHyst:    j.NegHysteresis,
		lastValues: make(map[string]float64),
	}
	for _, e := range j.Map {
		t.table = append(t.table, targetEntry{Value: e.Value, Target: e.Target})
	}
	return t, nil
}

func (a *TargetFromGroupMax) Run(ctx context.Context, env *ActionEnv) error {
	var best int64
	haveBest := false

	for _, g := range a.groups {
		value, ok := groupMaxNumeric(env.Cache, g)
		if !ok {
			continue
		}

		last, seen := a.lastValues[g.Name]
		applied := value
		if seen {
			// Asymmetric hysteresis: only accept a change once it clears
			// the hysteresis band in the direction of travel, so small
			// oscillations around a table boundary don't chatter.
			if value > last && value-last < a.posHyst {
				applied = last
			} else if value < last && last-value < a.negHyst {
				applied = last
			}
		}
		a.lastValues[g.Name] = applied

		target, ok := a.lookup(applied)
		if !ok {
			continue
		}
		if !haveBest || target > best {
			best = target
			haveBest = true
		}
	}

	if haveBest {
		env.Zone.SetTargetHold(ctx, a.name, best, true)
	} else {
		env.Zone.SetTargetHold(ctx, a.name, 0, false)
	}
	return nil
}

func (a *TargetFromGroupMax) lookup(value float64) (int64, bool) {
	var chosen *targetEntry
	for i := range a.table {
		e := &a.table[i]
		if value >= e.Value {
			chosen = e
			continue
		}
		break
	}
	if chosen == nil {
		return 0, false
	}
	return chosen.Target, true
}

// MissingOwnerTarget holds a fixed target when the configured service no
// longer owns its D-Bus interface (e.g. the sensor daemon has crashed),
// and releases the hold once ownership is restored.
type MissingOwnerTarget struct {
	name    string
	service string
	target  int64
}

type missingOwnerJSON struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Target  int64  `json:"target"`
	Floor   int64  `json:"floor"`
}

func newMissingOwnerTarget(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j missingOwnerJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return &MissingOwnerTarget{name: j.Name, service: j.Service, target: j.Target}, nil
}

func (a *MissingOwnerTarget) Run(ctx context.Context, env *ActionEnv) error {
	_, owned := env.Cache.Owner(a.service)
	env.Zone.SetTargetHold(ctx, a.name, a.target, !owned)
	return nil
}

// DefaultFloorOnMissingOwner raises the zone's floor hold to a configured
// value whenever the configured service does not currently own its
// interface.
type DefaultFloorOnMissingOwner struct {
	name    string
	service string
	floor   int64
}

func newDefaultFloorOnMissingOwner(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j missingOwnerJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return &DefaultFloorOnMissingOwner{name: j.Name, service: j.Service, floor: j.Floor}, nil
}

func (a *DefaultFloorOnMissingOwner) Run(ctx context.Context, env *ActionEnv) error {
	_, owned := env.Cache.Owner(a.service)
	env.Zone.SetFloorHold(ctx, a.name, a.floor, !owned)
	// While the owning service is down, its own requested floor changes
	// can't be trusted, so block other floor-affecting actions from this
	// source until ownership returns.
	env.Zone.SetFloorChangeAllowed(ctx, a.name, owned)
	return nil
}

// CountStateFloor raises the zone's floor once at least Count members of
// Group equal State, the floor-arbitration counterpart to
// override_fan_target.
type CountStateFloor struct {
	name  string
	group *Group
	count int
	state PropertyValue
	floor int64
}

type countStateJSON struct {
	Name  string      `json:"name"`
	Group string      `json:"group"`
	Count int         `json:"count"`
	State any         `json:"state"`
	Floor int64       `json:"floor"`
}

func newCountStateFloor(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j countStateJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	g, err := groups.Get(j.Group)
	if err != nil {
		return nil, err
	}
	var state PropertyValue
	switch s := j.State.(type) {
	case float64:
		state = NewDoubleValue(s)
	case bool:
		state = NewBoolValue(s)
	case string:
		state = NewStringValue(s)
	default:
		return nil, fmt.Errorf("%w: count_state_floor: unsupported state %v", ErrInvalidJSON, j.State)
	}
	return &CountStateFloor{name: j.Name, group: g, count: j.Count, state: state, floor: j.Floor}, nil
}

func (a *CountStateFloor) Run(ctx context.Context, env *ActionEnv) error {
	count := 0
	for _, member := range a.group.Members {
		v, err := env.Cache.Get(member.Path, a.group.Interface, a.group.Property)
		if err != nil {
			continue
		}
		if v.Equal(a.state) {
			count++
		}
	}
	env.Zone.SetFloorHold(ctx, a.name, a.floor, count >= a.count)
	return nil
}

// TestAction is a no-op action used to exercise the trigger/action
// pipeline in tests. It is omittable from production configs.
type TestAction struct{}

func newTestAction(raw json.RawMessage, groups *GroupSet) (Action, error) {
	return &TestAction{}, nil
}

func (a *TestAction) Run(ctx context.Context, env *ActionEnv) error { return nil }
