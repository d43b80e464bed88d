// SPDX-License-Identifier: BSD-3-Clause

package poweroff

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// PowerInterface is the narrow D-Bus surface a power-off Action invokes,
// mockable for tests exactly as PowerInterfaceBase is in the original
// rule engine.
type PowerInterface interface {
	HardPowerOff(ctx context.Context) error
	SoftPowerOff(ctx context.Context) error
	ThermalAlert(ctx context.Context, asserted bool) error
}

// DumpCreator requests a BMC dump be captured before a power off
// executes, so the failure that triggered the rule is diagnosable
// afterwards.
type DumpCreator interface {
	CreateDump(ctx context.Context) error
}

// PrePowerOffFunc runs immediately before the power off call, e.g. to
// persist the triggering FanError.
type PrePowerOffFunc func(ctx context.Context)

// Action is the common surface every power-off action type implements:
// start the action's timer(s), and attempt to cancel it.
type Action interface {
	Name() string
	Start(ctx context.Context)
	// Cancel attempts to stop the action before it completes. force
	// bypasses any "cannot cancel" restriction, used when something else
	// already powered off the system.
	Cancel(force bool) bool
}

type baseAction struct {
	name    string
	power   PowerInterface
	dumper  DumpCreator
	preFunc PrePowerOffFunc
	logger  *slog.Logger
}

func (b *baseAction) createDump(ctx context.Context) {
	if b.dumper == nil {
		return
	}
	if err := b.dumper.CreateDump(ctx); err != nil {
		b.logger.ErrorContext(ctx, "failed to create BMC dump", "error", err)
	}
}

// HardPowerOff executes an unconditional power off after Delay.
type HardPowerOff struct {
	baseAction
	Delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	enabled bool
}

// NewHardPowerOff constructs a HardPowerOff action.
func NewHardPowerOff(delay time.Duration, power PowerInterface, dumper DumpCreator, pre PrePowerOffFunc, logger *slog.Logger) *HardPowerOff {
	return &HardPowerOff{
		baseAction: baseAction{name: "Hard Power Off", power: power, dumper: dumper, preFunc: pre, logger: logger},
		Delay:      delay,
	}
}

func (a *HardPowerOff) Name() string { return a.name }

func (a *HardPowerOff) Start(ctx context.Context) {
	a.mu.Lock()
	a.enabled = true
	a.timer = time.AfterFunc(a.Delay, func() { a.fire(ctx) })
	a.mu.Unlock()
}

func (a *HardPowerOff) fire(ctx context.Context) {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = false
	a.mu.Unlock()

	if a.preFunc != nil {
		a.preFunc(ctx)
	}
	a.logger.InfoContext(ctx, "executing hard power off", "action", a.name)
	if err := a.power.HardPowerOff(ctx); err != nil {
		a.logger.ErrorContext(ctx, "hard power off call failed", "error", err)
	}
	a.createDump(ctx)
}

// Cancel always succeeds; the hard-power-off timer can always be stopped
// before it fires.
func (a *HardPowerOff) Cancel(force bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.enabled = false
	return true
}

// SoftPowerOff requests an orderly power off after Delay.
type SoftPowerOff struct {
	baseAction
	Delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	enabled bool
}

// NewSoftPowerOff constructs a SoftPowerOff action.
func NewSoftPowerOff(delay time.Duration, power PowerInterface, dumper DumpCreator, pre PrePowerOffFunc, logger *slog.Logger) *SoftPowerOff {
	return &SoftPowerOff{
		baseAction: baseAction{name: "Soft Power Off", power: power, dumper: dumper, preFunc: pre, logger: logger},
		Delay:      delay,
	}
}

func (a *SoftPowerOff) Name() string { return a.name }

func (a *SoftPowerOff) Start(ctx context.Context) {
	a.mu.Lock()
	a.enabled = true
	a.timer = time.AfterFunc(a.Delay, func() { a.fire(ctx) })
	a.mu.Unlock()
}

func (a *SoftPowerOff) fire(ctx context.Context) {
	a.mu.Lock()
	if !a.enabled {
		a.mu.Unlock()
		return
	}
	a.enabled = false
	a.mu.Unlock()

	if a.preFunc != nil {
		a.preFunc(ctx)
	}
	a.logger.InfoContext(ctx, "executing soft power off", "action", a.name)
	if err := a.power.SoftPowerOff(ctx); err != nil {
		a.logger.ErrorContext(ctx, "soft power off call failed", "error", err)
	}
	a.createDump(ctx)
}

// Cancel always succeeds.
func (a *SoftPowerOff) Cancel(force bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.enabled = false
	return true
}

// epowState is EpowPowerOff's staged escalation level, driven by a
// github.com/qmuntal/stateless state machine instead of the pair of bare
// bools the timers used to gate each other with.
type epowState string

const (
	epowServiceMode   epowState = "service_mode"
	epowMeltdownArmed epowState = "meltdown_armed"
	epowCancelled     epowState = "cancelled"
	epowCompleted     epowState = "completed"
)

type epowTrigger string

const (
	epowTriggerServiceExpired  epowTrigger = "service_expired"
	epowTriggerMeltdownExpired epowTrigger = "meltdown_expired"
	epowTriggerCancel          epowTrigger = "cancel"
	epowTriggerForceCancel     epowTrigger = "force_cancel"
)

// EpowPowerOff implements the two-stage EPOW sequence (SPEC_FULL.md
// section 2.1 / scenario S6): a cancelable service-mode timer, followed
// on expiry by an uncancelable meltdown timer that performs a hard power
// off.
type EpowPowerOff struct {
	baseAction
	ServiceModeDelay time.Duration
	MeltdownDelay    time.Duration

	mu            sync.Mutex
	sm            *stateless.StateMachine
	serviceTimer  *time.Timer
	meltdownTimer *time.Timer
}

// NewEpowPowerOff constructs an EpowPowerOff action.
func NewEpowPowerOff(serviceModeDelay, meltdownDelay time.Duration, power PowerInterface, dumper DumpCreator, pre PrePowerOffFunc, logger *slog.Logger) *EpowPowerOff {
	a := &EpowPowerOff{
		baseAction:       baseAction{name: "EPOW Power Off", power: power, dumper: dumper, preFunc: pre, logger: logger},
		ServiceModeDelay: serviceModeDelay,
		MeltdownDelay:    meltdownDelay,
	}
	a.sm = a.newStateMachine()
	return a
}

// newStateMachine configures the escalation levels: ServiceMode can only
// move forward to MeltdownArmed (entering it arms the uncancelable
// meltdown timer and asserts the thermal alert) or sideways to Cancelled;
// MeltdownArmed can only complete or be force-cancelled.
func (a *EpowPowerOff) newStateMachine() *stateless.StateMachine {
	sm := stateless.NewStateMachine(epowServiceMode)

	sm.Configure(epowServiceMode).
		Permit(epowTriggerServiceExpired, epowMeltdownArmed).
		Permit(epowTriggerCancel, epowCancelled)

	sm.Configure(epowMeltdownArmed).
		OnEntry(a.onEnterMeltdownArmed).
		Permit(epowTriggerMeltdownExpired, epowCompleted).
		Permit(epowTriggerForceCancel, epowCancelled)

	sm.Configure(epowCancelled)
	sm.Configure(epowCompleted)

	return sm
}

// onEnterMeltdownArmed runs synchronously inside the FireCtx call that
// serviceModeExpired makes while already holding a.mu, so it must not
// re-lock it.
func (a *EpowPowerOff) onEnterMeltdownArmed(ctx context.Context, _ ...any) error {
	a.meltdownTimer = time.AfterFunc(a.MeltdownDelay, func() { a.meltdownExpired(ctx) })

	a.logger.WarnContext(ctx, "EPOW service mode timer expired, arming meltdown timer", "action", a.name)
	if err := a.power.ThermalAlert(ctx, true); err != nil {
		a.logger.ErrorContext(ctx, "failed to assert thermal alert", "error", err)
	}
	return nil
}

func (a *EpowPowerOff) Name() string { return a.name }

func (a *EpowPowerOff) Start(ctx context.Context) {
	a.mu.Lock()
	a.serviceTimer = time.AfterFunc(a.ServiceModeDelay, func() { a.serviceModeExpired(ctx) })
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "starting EPOW service mode timer", "action", a.name)
}

func (a *EpowPowerOff) serviceModeExpired(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Fire fails silently (wrong source state) if Cancel already moved the
	// machine to Cancelled between the timer firing and acquiring the lock.
	_ = a.sm.FireCtx(ctx, epowTriggerServiceExpired)
}

func (a *EpowPowerOff) meltdownExpired(ctx context.Context) {
	a.mu.Lock()
	err := a.sm.FireCtx(ctx, epowTriggerMeltdownExpired)
	a.mu.Unlock()
	if err != nil {
		return
	}

	a.logger.ErrorContext(ctx, "EPOW meltdown timer expired, executing hard power off", "action", a.name)
	if a.preFunc != nil {
		a.preFunc(ctx)
	}
	if err := a.power.HardPowerOff(ctx); err != nil {
		a.logger.ErrorContext(ctx, "hard power off call failed", "error", err)
	}
	a.createDump(ctx)
}

// Cancel stops the service-mode timer if it is still running. The
// meltdown timer, once armed, can only be stopped with force=true (e.g.
// something else already powered off the system) — scenario S6 expects
// it to otherwise run to completion regardless of subsequent health
// changes.
func (a *EpowPowerOff) Cancel(force bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.sm.MustState() {
	case epowServiceMode:
		if a.serviceTimer != nil {
			a.serviceTimer.Stop()
		}
		_ = a.sm.Fire(epowTriggerCancel)
		return true
	case epowMeltdownArmed:
		if !force {
			return false
		}
		if a.meltdownTimer != nil {
			a.meltdownTimer.Stop()
		}
		_ = a.sm.Fire(epowTriggerForceCancel)
		return true
	default:
		return false
	}
}
