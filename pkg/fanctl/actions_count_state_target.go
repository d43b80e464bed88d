// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("count_state_target", newCountStateTarget)
}

// CountStateTarget holds a zone target once at least Count members of
// Group equal State, the target-arbitration counterpart to
// CountStateFloor.
type CountStateTarget struct {
	name   string
	group  *Group
	count  int
	state  PropertyValue
	target int64
}

type countStateTargetJSON struct {
	Name   string      `json:"name"`
	Group  string      `json:"group"`
	Count  int         `json:"count"`
	State  any         `json:"state"`
	Target int64       `json:"target"`
}

func newCountStateTarget(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j countStateTargetJSON
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
		return nil, fmt.Errorf("%w: count_state_target: unsupported state %v", ErrInvalidJSON, j.State)
	}
	return &CountStateTarget{name: j.Name, group: g, count: j.Count, state: state, target: j.Target}, nil
}

// Run counts group members currently equal to the configured state and
// holds the zone target at the configured value once that count reaches
// the threshold, releasing the hold once it drops back below it.
func (a *CountStateTarget) Run(ctx context.Context, env *ActionEnv) error {
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
	env.Zone.SetTargetHold(ctx, a.name, a.target, count >= a.count)
	return nil
}
