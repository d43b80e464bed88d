// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"log/slog"
	"time"

	"github.com/qmuntal/stateless"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Inventory is the narrow D-Bus-like surface the Fan monitor writes
// present/functional inventory state through, and reads presence from.
// Implementations may suppress individual write failures but must always
// update their own cache, matching monitor/fan.cpp's updateInventory
// behavior of caching the new state even when the bus write fails.
type Inventory interface {
	SetPresent(ctx context.Context, fru string, present bool) error
	SetFunctional(ctx context.Context, fru string, functional bool) error
}

// FanError models the FRU-level fault record created/cleared as a Fan's
// aggregate functional state changes, consumed by the power-off rule
// engine's severity escalation (scenario S5).
type FanError struct {
	FRU      string
	Severity string
	At       time.Time
}

// fanHealthState is the Fan's aggregate presence/functional severity,
// driven by a github.com/qmuntal/stateless state machine the way
// monitor/fan.cpp's updateInventory combines presence and rotor health
// into a single FanHealth escalation level.
type fanHealthState string

const (
	fanHealthOK       fanHealthState = "ok"
	fanHealthWarning  fanHealthState = "warning"
	fanHealthCritical fanHealthState = "critical"
)

// fanHealthTrigger is fired once per reconciliation (Tick or
// PresenceChanged), carrying the freshly observed (present, functional)
// combination into the state machine.
type fanHealthTrigger string

const (
	fanTriggerRecovered fanHealthTrigger = "recovered"
	fanTriggerFault     fanHealthTrigger = "fault"
	fanTriggerMissing   fanHealthTrigger = "missing"
)

// Fan (C11) groups one or more rotors (TachSensors) under a single FRU,
// aggregates their functional state, and feeds FanHealth.
type Fan struct {
	FRU    string
	Rotors []*TachSensor

	present              bool
	suppressRecoveryOnce bool // one tick of grace after presence returns, before trusting a "functional" reading
	skipTimer            bool // suppress rule-engine side effects during startup/enumeration gaps
	missingOwner         bool

	inventory Inventory
	trust     *TrustGroup

	sm        *stateless.StateMachine
	lastError *FanError

	logger *slog.Logger
	tracer trace.Tracer
}

// NewFan constructs a Fan over the given rotors, backed by inventory for
// D-Bus present/functional writes.
func NewFan(fru string, rotors []*TachSensor, inventory Inventory, logger *slog.Logger) *Fan {
	f := &Fan{
		FRU:       fru,
		Rotors:    rotors,
		present:   true,
		inventory: inventory,
		logger:    logger.With("fan", fru),
		tracer:    otel.Tracer("fanmon.fan"),
	}
	f.sm = f.newHealthStateMachine()
	return f
}

// newHealthStateMachine wires the warning/critical escalation levels
// monitor/fan.cpp computes inline into an explicit stateless.StateMachine:
// OK, Warning (present but a rotor is out of range) and Critical (not
// present). Repeated triggers for the state already occupied re-enter it
// so FanError.At keeps advancing for as long as the fault persists.
func (f *Fan) newHealthStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(fanHealthOK)

	sm.Configure(fanHealthOK).
		OnEntry(f.onEnterHealthOK).
		PermitReentry(fanTriggerRecovered).
		Permit(fanTriggerFault, fanHealthWarning).
		Permit(fanTriggerMissing, fanHealthCritical)

	sm.Configure(fanHealthWarning).
		OnEntry(f.onEnterHealthWarning).
		Permit(fanTriggerRecovered, fanHealthOK).
		PermitReentry(fanTriggerFault).
		Permit(fanTriggerMissing, fanHealthCritical)

	sm.Configure(fanHealthCritical).
		OnEntry(f.onEnterHealthCritical).
		Permit(fanTriggerRecovered, fanHealthOK).
		Permit(fanTriggerFault, fanHealthWarning).
		PermitReentry(fanTriggerMissing)

	return sm
}

func (f *Fan) onEnterHealthOK(_ context.Context, _ ...any) error {
	f.lastError = nil
	return nil
}

func (f *Fan) onEnterHealthWarning(_ context.Context, _ ...any) error {
	f.lastError = &FanError{FRU: f.FRU, Severity: "warning", At: time.Now()}
	return nil
}

func (f *Fan) onEnterHealthCritical(_ context.Context, _ ...any) error {
	f.lastError = &FanError{FRU: f.FRU, Severity: "critical", At: time.Now()}
	return nil
}

// SetTrustGroup installs the trust group (C12) whose Trusted method gates
// whether an out-of-range rotor is allowed to flip the fan nonfunctional.
func (f *Fan) SetTrustGroup(tg *TrustGroup) { f.trust = tg }

// Present reports the fan's last known presence.
func (f *Fan) Present() bool { return f.present }

// RotorFunctional reports each rotor's current functional flag, in rotor order.
func (f *Fan) RotorFunctional() []bool {
	out := make([]bool, len(f.Rotors))
	for i, r := range f.Rotors {
		out[i] = r.Functional
	}
	return out
}

// Functional reports the fan's aggregate functional state: functional iff
// every rotor is functional (or the trust group says the reading should
// not be trusted).
func (f *Fan) Functional() bool {
	if f.trust != nil && !f.trust.Trusted() {
		return true
	}
	for _, r := range f.Rotors {
		if !r.Functional {
			return false
		}
	}
	return true
}

// PresenceChanged updates the fan's presence and, on a transition to
// present, arms suppressRecoveryOnce so the very next reconciliation
// doesn't trust a stale "functional" reading enough to clear a fault that
// hasn't actually been re-confirmed yet, mirroring monitor/fan.cpp's
// presenceChanged.
func (f *Fan) PresenceChanged(ctx context.Context, present bool) error {
	wasPresent := f.present
	f.present = present
	if present && !wasPresent {
		f.suppressRecoveryOnce = true
	}
	return f.updateInventory(ctx)
}

// PowerStateChanged notifies the fan of a chassis power transition; while
// powered off, timer-driven rule-engine side effects are suppressed via
// skipTimer so a fan spinning down at shutdown isn't reported as failed.
func (f *Fan) PowerStateChanged(poweredOn bool) {
	f.skipTimer = !poweredOn
}

// Tick advances every rotor's fault-detection state machine with a fresh
// reading, then reconciles the fan's aggregate functional state into
// inventory. now/tach/target triples are supplied per rotor index.
func (f *Fan) Tick(ctx context.Context, now time.Time, readings []RotorSample) error {
	ctx, span := f.tracer.Start(ctx, "fanmon.fan.monitorTick", trace.WithAttributes(attribute.String("fan", f.FRU)))
	defer span.End()

	for i, r := range readings {
		if i >= len(f.Rotors) {
			break
		}
		f.Rotors[i].Update(now, r.Tach, r.Target)
	}

	return f.updateInventory(ctx)
}

func (f *Fan) updateInventory(ctx context.Context) error {
	functional := f.Functional()

	if err := f.inventory.SetPresent(ctx, f.FRU, f.present); err != nil {
		f.logger.WarnContext(ctx, "failed to write presence to inventory", "error", err)
	}
	if err := f.inventory.SetFunctional(ctx, f.FRU, functional); err != nil {
		f.logger.WarnContext(ctx, "failed to write functional state to inventory", "error", err)
		// Cache is still updated above regardless of the write outcome;
		// there is no separate cache to roll back here since Present()
		// and Functional() are computed, not stored.
	}

	f.reconcileHealth(ctx, functional)
	return nil
}

// reconcileHealth fires the health state machine trigger matching the
// freshly computed (present, functional) pair. skipTimer suppresses the
// fire entirely, the same as the original code never entering its
// severity if-block while powered off.
func (f *Fan) reconcileHealth(ctx context.Context, functional bool) {
	if f.skipTimer {
		return
	}

	suppressed := f.suppressRecoveryOnce
	f.suppressRecoveryOnce = false

	var trig fanHealthTrigger
	switch {
	case !f.present:
		trig = fanTriggerMissing
	case !functional || suppressed:
		trig = fanTriggerFault
	default:
		trig = fanTriggerRecovered
	}

	if err := f.sm.FireCtx(ctx, trig); err != nil {
		f.logger.WarnContext(ctx, "fan health state transition rejected", "trigger", string(trig), "error", err)
	}
}

// LastError returns the most recently recorded FanError, if any.
func (f *Fan) LastError() *FanError { return f.lastError }
