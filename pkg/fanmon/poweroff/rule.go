// SPDX-License-Identifier: BSD-3-Clause

package poweroff

import (
	"context"
	"log/slog"
	"sync"

	"github.com/u-bmc/fand/pkg/fanmon"
)

// Validity restricts when a Rule is eligible to be evaluated.
type Validity int

const (
	// ValidityAtPgood evaluates the rule only around the moment power-good
	// is asserted, matching scenario S5's "at power-on" framing.
	ValidityAtPgood Validity = iota
	// ValidityRuntime evaluates the rule continuously during normal runtime.
	ValidityRuntime
)

// Rule (C13 data model) pairs a Cause with an Action under a Validity
// window, and tracks whether the action is currently active so repeated
// satisfied() polls don't restart an already-running action.
type Rule struct {
	Cause    Cause
	Action   Action
	Validity Validity

	mu     sync.Mutex
	active bool
}

// Engine evaluates a set of Rules against a live FanHealth source on
// every monitor tick.
type Engine struct {
	rules  []*Rule
	logger *slog.Logger
}

// NewEngine constructs a power-off rule engine over the given rules.
func NewEngine(rules []*Rule, logger *slog.Logger) *Engine {
	return &Engine{rules: rules, logger: logger.With("component", "fanmon.poweroff")}
}

// Evaluate runs every runtime-validity rule's cause against health,
// starting newly-satisfied rules' actions and canceling ones that are no
// longer satisfied. atPgood additionally evaluates ValidityAtPgood rules;
// callers pass atPgood=true only for the evaluation immediately following
// a power-good assertion.
func (e *Engine) Evaluate(ctx context.Context, health fanmon.FanHealth, atPgood bool) {
	for _, rule := range e.rules {
		if rule.Validity == ValidityAtPgood && !atPgood {
			continue
		}

		satisfied := rule.Cause.Satisfied(health)

		rule.mu.Lock()
		switch {
		case satisfied && !rule.active:
			rule.active = true
			rule.mu.Unlock()
			e.logger.WarnContext(ctx, "power-off cause satisfied", "cause", rule.Cause.Name(), "action", rule.Action.Name())
			rule.Action.Start(ctx)
		case !satisfied && rule.active:
			rule.active = false
			rule.mu.Unlock()
			if !rule.Action.Cancel(false) {
				e.logger.InfoContext(ctx, "power-off action could not be canceled", "action", rule.Action.Name())
			}
		default:
			rule.mu.Unlock()
		}
	}
}

// ForceCancelAll cancels every active rule's action unconditionally, used
// when the system has already powered off through some other path.
func (e *Engine) ForceCancelAll() {
	for _, rule := range e.rules {
		rule.mu.Lock()
		if rule.active {
			rule.active = false
			rule.mu.Unlock()
			rule.Action.Cancel(true)
			continue
		}
		rule.mu.Unlock()
	}
}
