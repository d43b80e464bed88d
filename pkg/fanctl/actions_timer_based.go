// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

func init() {
	Register("call_actions_based_on_timer", newTimerBasedActions)
}

type timerBasedActionsJSON struct {
	Name   string          `json:"name"`
	Groups []string        `json:"groups"`
	Timer  timerConfigJSON `json:"timer"`
	Actions []subActionJSON `json:"actions"`
}

type timerConfigJSON struct {
	IntervalUS int64  `json:"interval"`
	Type       string `json:"type"`
}

type timerMode int

const (
	timerModeOneshot timerMode = iota
	timerModeRepeating
)

// TimerBasedActions wraps a nested list of actions behind a start/stop
// timer: by_owner mode starts the timer whenever any configured group
// member's service has no owner and stops it once every member's service
// is owned again; by_value mode starts it once every member matches its
// group's configured value and stops it once any member doesn't. Stopping
// an already-stopped timer runs the wrapped actions immediately, so a
// state change that resolves before the timer next expires still takes
// effect.
type TimerBasedActions struct {
	name    string
	groups  []*Group
	byOwner bool
	delay   time.Duration
	mode    timerMode
	actions []Action

	mu      sync.Mutex
	timer   *time.Timer
	enabled bool
}

func newTimerBasedActions(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j timerBasedActionsJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	resolved, err := resolveGroups(j.Groups, groups)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("%w: call_actions_based_on_timer requires at least one group", ErrInvalidJSON)
	}

	var mode timerMode
	switch j.Timer.Type {
	case "oneshot":
		mode = timerModeOneshot
	case "repeating":
		mode = timerModeRepeating
	default:
		return nil, fmt.Errorf("%w: call_actions_based_on_timer: unsupported timer type %q", ErrInvalidJSON, j.Timer.Type)
	}

	actions, err := buildActions(j.Actions, groups)
	if err != nil {
		return nil, err
	}

	byOwner := false
	for _, g := range resolved {
		if !g.HasValue {
			byOwner = true
			break
		}
	}

	return &TimerBasedActions{
		name:    j.Name,
		groups:  resolved,
		byOwner: byOwner,
		delay:   time.Duration(j.Timer.IntervalUS) * time.Microsecond,
		mode:    mode,
		actions: actions,
	}, nil
}

// Run evaluates the start/stop condition and adjusts the timer.
func (a *TimerBasedActions) Run(ctx context.Context, env *ActionEnv) error {
	var condition bool
	if a.byOwner {
		condition = a.anyMemberUnowned(env)
	} else {
		condition = a.allMembersMatchValue(env)
	}

	if condition {
		a.startTimer(ctx, env)
	} else {
		a.stopTimer(ctx, env)
	}
	return nil
}

func (a *TimerBasedActions) anyMemberUnowned(env *ActionEnv) bool {
	for _, g := range a.groups {
		for _, member := range g.Members {
			if member.Service == "" {
				continue
			}
			if _, owned := env.Cache.Owner(member.Service); !owned {
				return true
			}
		}
	}
	return false
}

func (a *TimerBasedActions) allMembersMatchValue(env *ActionEnv) bool {
	for _, g := range a.groups {
		if !g.HasValue {
			continue
		}
		for _, member := range g.Members {
			v, err := env.Cache.Get(member.Path, g.Interface, g.Property)
			if err != nil || !v.Equal(g.Value) {
				return false
			}
		}
	}
	return true
}

func (a *TimerBasedActions) startTimer(ctx context.Context, env *ActionEnv) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enabled {
		return
	}
	a.enabled = true

	delay := a.delay
	if delay <= 0 {
		delay = time.Millisecond
	}
	a.timer = time.AfterFunc(delay, func() { a.expire(ctx, env) })
}

func (a *TimerBasedActions) stopTimer(ctx context.Context, env *ActionEnv) {
	a.mu.Lock()
	wasEnabled := a.enabled
	if wasEnabled {
		a.enabled = false
		if a.timer != nil {
			a.timer.Stop()
		}
	}
	a.mu.Unlock()

	if !wasEnabled {
		// The condition resolved between the timer firing and this run,
		// so catch up by running the actions now instead of waiting for
		// a start/stop cycle that will never come.
		a.runActions(ctx, env)
	}
}

func (a *TimerBasedActions) expire(ctx context.Context, env *ActionEnv) {
	a.mu.Lock()
	if a.mode == timerModeRepeating && a.enabled {
		a.timer = time.AfterFunc(a.delay, func() { a.expire(ctx, env) })
	} else {
		a.enabled = false
	}
	a.mu.Unlock()

	a.runActions(ctx, env)
}

func (a *TimerBasedActions) runActions(ctx context.Context, env *ActionEnv) {
	for _, action := range a.actions {
		_ = action.Run(ctx, env)
	}
}
