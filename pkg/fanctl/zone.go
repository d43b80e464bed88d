// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ZoneConfig is the static, JSON-derived configuration of a Zone.
type ZoneConfig struct {
	Name            string
	Floor           int64
	Ceiling         int64
	DefaultTarget   int64
	IncreaseDelta   int64         // seeded net increase delta (getIncDelta's baseline)
	IncreaseDelay   time.Duration // one-shot window during which a smaller increase request is ignored
	DecreaseDelay   time.Duration // period of the repeating decrease-step timer; 0 disables decreases entirely
	RequestsInMS    bool          // not read by Zone; IncreaseDelay and DecreaseDelay are used as given
	PollingInterval time.Duration // not read by Zone; recalculation runs only from Manager dispatch
}

// pendingFloorHold is a SetFloorHold call deferred because at least one
// floor_change_allowed gate was false at the time it was requested.
type pendingFloorHold struct {
	key   string
	value int64
	hold  bool
}

// Zone (C7) arbitrates a single fan target from floor/ceiling bounds,
// accumulated increase/decrease requests and named holds, then fans the
// resulting target out to its member Fans. Target mutation driven by
// actions happens on the manager's single dispatch goroutine; the
// decrease-step timer runs on its own goroutine and only ever touches
// Zone's own mutex-guarded state and its fan-out list, never shared
// manager state, so the two never race on anything but z.mu.
type Zone struct {
	cfg ZoneConfig

	mu          sync.Mutex
	target      int64
	requestBase int64 // last target established by an arbitration step, the increase baseline
	floor       int64
	ceiling     int64

	floorHolds  map[string]int64
	targetHolds map[string]int64

	decreaseAllowed    map[string]bool // decrease_allowed[ident]; decreases apply only while every gate is true
	floorChangeAllowed map[string]bool // floor_change_allowed[ident]; a false gate defers SetFloorHold
	pendingFloorHold   *pendingFloorHold

	incDelta int64
	decDelta int64

	increaseTimer *time.Timer

	fans []*Fan

	logger *slog.Logger
	tracer trace.Tracer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewZone constructs a Zone from its static configuration.
func NewZone(cfg ZoneConfig, logger *slog.Logger) *Zone {
	return &Zone{
		cfg:                cfg,
		target:             cfg.DefaultTarget,
		requestBase:        cfg.DefaultTarget,
		floor:              cfg.Floor,
		ceiling:            cfg.Ceiling,
		floorHolds:         make(map[string]int64),
		targetHolds:        make(map[string]int64),
		decreaseAllowed:    make(map[string]bool),
		floorChangeAllowed: make(map[string]bool),
		logger:             logger.With("zone", cfg.Name),
		tracer:             otel.Tracer("fanctl.zone"),
	}
}

// AddFan attaches a control-side Fan to this zone's fan-out list.
func (z *Zone) AddFan(f *Fan) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.fans = append(z.fans, f)
}

// Name returns the zone's configured name.
func (z *Zone) Name() string { return z.cfg.Name }

// Target returns the current arbitrated target.
func (z *Zone) Target() int64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.target
}

// Floor returns the current effective floor, honoring any floor hold.
func (z *Zone) Floor() int64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.effectiveFloorLocked()
}

func (z *Zone) effectiveFloorLocked() int64 {
	floor := z.floor
	for _, held := range z.floorHolds {
		if held > floor {
			floor = held
		}
	}
	return floor
}

// SetFloor sets the zone's base floor value, e.g. from a missing_owner or
// default_floor action.
func (z *Zone) SetFloor(floor int64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.floor = floor
}

// SetCeiling sets the zone's ceiling, clamping the current target if needed.
func (z *Zone) SetCeiling(ceiling int64) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.ceiling = ceiling
	if z.target > ceiling {
		z.target = ceiling
		z.requestBase = ceiling
	}
}

// Start launches the zone's repeating decrease-step timer. A zero
// DecreaseDelay disables the decrease timer entirely, matching the
// documented zero-interval behavior: the zone can still be raised but
// never automatically steps back down.
func (z *Zone) Start(ctx context.Context) {
	if z.cfg.DecreaseDelay <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	z.cancel = cancel
	z.wg.Add(1)
	go z.runDecreaseTimer(ctx)
}

// Stop cancels the zone's decrease-step timer and any pending one-shot
// increase-window timer, and blocks until the decrease goroutine exits.
func (z *Zone) Stop() {
	if z.cancel != nil {
		z.cancel()
	}
	z.wg.Wait()

	z.mu.Lock()
	if z.increaseTimer != nil {
		z.increaseTimer.Stop()
	}
	z.mu.Unlock()
}

func (z *Zone) runDecreaseTimer(ctx context.Context) {
	defer z.wg.Done()
	ticker := time.NewTicker(z.cfg.DecreaseDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			z.applyDecreaseStep(ctx)
		}
	}
}

// SetFloorHold installs or clears a named floor hold, mirroring
// Zone::setFloorHold: the value is clamped to the ceiling first; while
// any floor_change_allowed gate is false the change is deferred until a
// gate re-opens; otherwise the effective floor is recomputed and, if the
// current target now falls below it, an increase request for the
// shortfall is issued.
func (z *Zone) SetFloorHold(ctx context.Context, key string, value int64, hold bool) {
	z.mu.Lock()
	if value > z.ceiling {
		value = z.ceiling
	}

	if !z.floorChangeAllowedLocked() {
		z.pendingFloorHold = &pendingFloorHold{key: key, value: value, hold: hold}
		z.mu.Unlock()
		return
	}

	shortfall := z.applyFloorHoldLocked(key, value, hold)
	z.mu.Unlock()

	if shortfall > 0 {
		z.RequestIncrease(ctx, shortfall)
	}
}

// applyFloorHoldLocked mutates the hold table and returns the amount by
// which the current target now falls short of the new effective floor
// (0 if the target already satisfies it). Caller must hold z.mu.
func (z *Zone) applyFloorHoldLocked(key string, value int64, hold bool) int64 {
	if hold {
		z.floorHolds[key] = value
	} else {
		delete(z.floorHolds, key)
	}
	newFloor := z.effectiveFloorLocked()
	if z.target < newFloor {
		return newFloor - z.target
	}
	return 0
}

// SetFloorChangeAllowed sets a named floor_change_allowed gate. Turning
// the last false gate true re-applies any floor hold request that was
// deferred while a gate was closed.
func (z *Zone) SetFloorChangeAllowed(ctx context.Context, ident string, allowed bool) {
	z.mu.Lock()
	z.floorChangeAllowed[ident] = allowed

	if !allowed || !z.floorChangeAllowedLocked() || z.pendingFloorHold == nil {
		z.mu.Unlock()
		return
	}

	pending := z.pendingFloorHold
	z.pendingFloorHold = nil
	shortfall := z.applyFloorHoldLocked(pending.key, pending.value, pending.hold)
	z.mu.Unlock()

	if shortfall > 0 {
		z.RequestIncrease(ctx, shortfall)
	}
}

func (z *Zone) floorChangeAllowedLocked() bool {
	for _, allowed := range z.floorChangeAllowed {
		if !allowed {
			return false
		}
	}
	return true
}

// SetDecreaseAllowed sets a named decrease_allowed gate. While any gate
// is false, the decrease-step timer still fires and resets decDelta, but
// never actually lowers the target.
func (z *Zone) SetDecreaseAllowed(ident string, allowed bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.decreaseAllowed[ident] = allowed
}

func (z *Zone) decreaseAllowedLocked() bool {
	for _, allowed := range z.decreaseAllowed {
		if !allowed {
			return false
		}
	}
	return true
}

// SetTargetHold installs or clears a named target hold, e.g. from the
// override_fan_target action. While any target hold is active, automatic
// increase/decrease arbitration is bypassed and the target is pinned to
// the maximum of all active target holds.
func (z *Zone) SetTargetHold(ctx context.Context, key string, value int64, hold bool) {
	z.mu.Lock()
	if hold {
		z.targetHolds[key] = value
	} else {
		delete(z.targetHolds, key)
	}

	holdValue, held := z.targetHoldLocked()
	if !held {
		z.mu.Unlock()
		return
	}
	newTarget := holdValue
	if newTarget > z.ceiling {
		newTarget = z.ceiling
	}
	changed := newTarget != z.target
	z.target = newTarget
	z.requestBase = newTarget
	fans := z.fansLocked()
	z.mu.Unlock()

	if changed {
		z.fanOut(ctx, fans, newTarget)
	}
}

func (z *Zone) targetHoldLocked() (int64, bool) {
	if len(z.targetHolds) == 0 {
		return 0, false
	}
	var max int64
	first := true
	for _, v := range z.targetHolds {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max, true
}

func (z *Zone) fansLocked() []*Fan {
	return append([]*Fan(nil), z.fans...)
}

func (z *Zone) fanOut(ctx context.Context, fans []*Fan, target int64) {
	z.logger.DebugContext(ctx, "zone target changed", "target", target)
	for _, f := range fans {
		if err := f.SetTarget(ctx, target); err != nil {
			z.logger.WarnContext(ctx, "failed to set fan target", "fan", f.Name(), "error", err)
		}
	}
}

// GetIncDelta returns the seeded net increase delta used as the baseline
// netDelta for net_target_increase, mirroring Zone::getIncDelta in the
// original control engine.
func (z *Zone) GetIncDelta() int64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.cfg.IncreaseDelta
}

// RequestIncrease implements Zone::request_increase: if delta exceeds the
// delta already in effect for the current increase window AND the target
// has room below the ceiling AND no target hold is active, the excess
// over the prior delta is applied
// to requestBase immediately, requestBase and target are advanced
// together, and the one-shot increase_delay window is (re)armed. A
// smaller or equal delta within the same window is a no-op, so repeated
// small requests can't each nudge the target a little further.
func (z *Zone) RequestIncrease(ctx context.Context, delta int64) {
	if delta <= 0 {
		return
	}

	z.mu.Lock()
	if delta <= z.incDelta || z.target >= z.ceiling || len(z.targetHolds) > 0 {
		z.mu.Unlock()
		return
	}

	newTarget := z.requestBase + (delta - z.incDelta)
	if newTarget > z.ceiling {
		newTarget = z.ceiling
	}
	if floor := z.effectiveFloorLocked(); newTarget < floor {
		newTarget = floor
	}

	z.target = newTarget
	z.requestBase = newTarget
	z.incDelta = delta
	fans := z.fansLocked()

	z.armIncreaseTimerLocked()
	z.mu.Unlock()

	z.fanOut(ctx, fans, newTarget)
}

// armIncreaseTimerLocked (re)starts the one-shot increase_delay timer
// whose expiration resets incDelta to 0, reopening the window for a
// smaller request to take effect again. Caller must hold z.mu.
func (z *Zone) armIncreaseTimerLocked() {
	delay := z.cfg.IncreaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	if z.increaseTimer != nil {
		z.increaseTimer.Stop()
	}
	z.increaseTimer = time.AfterFunc(delay, func() {
		z.mu.Lock()
		z.incDelta = 0
		z.mu.Unlock()
	})
}

// RequestDecrease requests the target be lowered by delta once the next
// decrease-step timer fires. Only the smallest requested decrease within
// a decrease_interval period wins, since a larger fan speed drop can mask
// the condition that demanded a smaller one.
func (z *Zone) RequestDecrease(delta int64) {
	if delta <= 0 {
		return
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.decDelta == 0 || delta < z.decDelta {
		z.decDelta = delta
	}
}

// applyDecreaseStep is the repeating decrease_interval timer's expiration
// handler: if every decrease_allowed gate is true, decDelta is non-zero,
// no increase window is currently open (incDelta==0), and no target hold
// is active, the target steps down by decDelta, floor-clamped.
// decDelta is always reset to 0 regardless of whether the step applied.
func (z *Zone) applyDecreaseStep(ctx context.Context) {
	z.mu.Lock()
	decDelta := z.decDelta
	z.decDelta = 0

	if decDelta <= 0 || z.incDelta != 0 || !z.decreaseAllowedLocked() || len(z.targetHolds) > 0 {
		z.mu.Unlock()
		return
	}

	newTarget := z.target - decDelta
	if floor := z.effectiveFloorLocked(); newTarget < floor {
		newTarget = floor
	}
	changed := newTarget != z.target
	z.target = newTarget
	z.requestBase = newTarget
	fans := z.fansLocked()
	z.mu.Unlock()

	if changed {
		z.fanOut(ctx, fans, newTarget)
	}
}

// Recalculate re-clamps the current target into [floor, ceiling] and,
// while a target hold is active, re-pins it to the hold value. It is
// called once per control dispatch cycle after all actions for this
// zone's triggers have run, as a safety net for floor/ceiling changes
// (e.g. SetFloor, SetCeiling, a default_floor action) that don't
// themselves issue an increase request the way SetFloorHold does.
// Increase/decrease requests already took effect and fanned out when
// RequestIncrease was called or the decrease timer last fired.
func (z *Zone) Recalculate(ctx context.Context) error {
	ctx, span := z.tracer.Start(ctx, "fanctl.zone.recalculate",
		trace.WithAttributes(attribute.String("zone", z.cfg.Name)))
	defer span.End()

	z.mu.Lock()
	floor := z.effectiveFloorLocked()
	ceiling := z.ceiling
	newTarget := z.target

	if holdValue, held := z.targetHoldLocked(); held {
		newTarget = holdValue
	}
	if newTarget < floor {
		newTarget = floor
	}
	if newTarget > ceiling {
		newTarget = ceiling
	}

	changed := newTarget != z.target
	z.target = newTarget
	z.requestBase = newTarget
	fans := z.fansLocked()
	z.mu.Unlock()

	span.SetAttributes(
		attribute.Int64("zone.floor", floor),
		attribute.Int64("zone.ceiling", ceiling),
		attribute.Int64("zone.target", newTarget),
	)

	if changed {
		z.fanOut(ctx, fans, newTarget)
	}
	return nil
}
