// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestZoneIncreaseDelayOrdering exercises scenario S3: request_increase(100)
// at t=0 applies immediately, request_increase(50) at t=1s is a no-op
// because 50 is not greater than the in-effect delta of 100, and
// request_increase(150) at t=2s (still inside the same 5s window) applies
// only the excess over the prior delta (50 more, to 150 total).
func TestZoneIncreaseDelayOrdering(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         0,
		Ceiling:       10000,
		DefaultTarget: 0,
		IncreaseDelay: 5 * time.Second,
	}, testLogger())

	ctx := context.Background()

	z.RequestIncrease(ctx, 100)
	if got := z.Target(); got != 100 {
		t.Fatalf("target after request_increase(100) = %d, want 100", got)
	}

	z.RequestIncrease(ctx, 50)
	if got := z.Target(); got != 100 {
		t.Fatalf("target after request_increase(50) = %d, want unchanged 100 (50 <= inc_delta)", got)
	}

	z.RequestIncrease(ctx, 150)
	if got := z.Target(); got != 150 {
		t.Fatalf("target after request_increase(150) = %d, want 150 (100 + excess of 50)", got)
	}
}

// TestZoneFloorHoldRaisesNeverLowers exercises the mapped_floor-adjacent
// invariant that a floor hold can only raise, never lower, the effective
// floor below the zone's configured base.
func TestZoneFloorHoldRaisesNeverLowers(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         2000,
		Ceiling:       10000,
		DefaultTarget: 2000,
	}, testLogger())

	ctx := context.Background()

	z.SetFloorHold(ctx, "mapped_floor", 3000, true)
	if got := z.Floor(); got != 3000 {
		t.Fatalf("floor = %d, want 3000", got)
	}

	z.SetFloorHold(ctx, "mapped_floor", 1000, true)
	if got := z.Floor(); got != 2000 {
		t.Fatalf("floor with lower hold = %d, want base floor 2000", got)
	}

	z.SetFloorHold(ctx, "mapped_floor", 0, false)
	if got := z.Floor(); got != 2000 {
		t.Fatalf("floor after hold cleared = %d, want 2000", got)
	}
}

// TestZoneSetFloorHoldIssuesIncreaseWhenTargetBelowNewFloor exercises the
// set_floor_hold contract: raising the floor above the current target
// issues an increase request for the shortfall rather than waiting for a
// separate recalculation to clamp it up.
func TestZoneSetFloorHoldIssuesIncreaseWhenTargetBelowNewFloor(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         2000,
		Ceiling:       10000,
		DefaultTarget: 2000,
	}, testLogger())

	z.SetFloorHold(context.Background(), "mapped_floor", 3000, true)

	if got := z.Target(); got != 3000 {
		t.Fatalf("target = %d, want 3000 (raised by the implied increase request)", got)
	}
}

// TestZoneSetFloorHoldClampsToCeiling exercises the documented clamp: a
// requested floor hold above the ceiling is clamped down to it first.
func TestZoneSetFloorHoldClampsToCeiling(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         2000,
		Ceiling:       5000,
		DefaultTarget: 2000,
	}, testLogger())

	z.SetFloorHold(context.Background(), "mapped_floor", 9000, true)

	if got := z.Floor(); got != 5000 {
		t.Fatalf("floor = %d, want clamped to ceiling 5000", got)
	}
}

// TestZoneSetFloorHoldDeferredUntilGateOpens exercises the
// floor_change_allowed gate: a SetFloorHold requested while any gate is
// false does not take effect until the last closed gate opens, at which
// point it is applied automatically.
func TestZoneSetFloorHoldDeferredUntilGateOpens(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         2000,
		Ceiling:       10000,
		DefaultTarget: 2000,
	}, testLogger())

	ctx := context.Background()
	z.SetFloorChangeAllowed(ctx, "pending_reload", false)

	z.SetFloorHold(ctx, "mapped_floor", 3000, true)
	if got := z.Floor(); got != 2000 {
		t.Fatalf("floor = %d, want unchanged 2000 while gated", got)
	}

	z.SetFloorChangeAllowed(ctx, "pending_reload", true)
	if got := z.Floor(); got != 3000 {
		t.Fatalf("floor = %d, want 3000 once the gate reopened", got)
	}
	if got := z.Target(); got != 3000 {
		t.Fatalf("target = %d, want raised to 3000 once the deferred hold applied", got)
	}
}

// TestZoneDecreaseGatedOff exercises decrease_allowed: with a gate closed,
// a requested decrease is discarded by the decrease step rather than
// applied, even though decDelta was set.
func TestZoneDecreaseGatedOff(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         0,
		Ceiling:       10000,
		DefaultTarget: 5000,
	}, testLogger())

	z.SetDecreaseAllowed("thermal_alert", false)
	z.RequestDecrease(1000)
	z.applyDecreaseStep(context.Background())

	if got := z.Target(); got != 5000 {
		t.Fatalf("target = %d, want unchanged 5000 while decrease is gated off", got)
	}
}

// TestZoneDecreaseStepAppliesOnceAllowed confirms a gated decrease request
// applies once every decrease_allowed gate opens.
func TestZoneDecreaseStepAppliesOnceAllowed(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         0,
		Ceiling:       10000,
		DefaultTarget: 5000,
	}, testLogger())

	z.SetDecreaseAllowed("thermal_alert", false)
	z.RequestDecrease(1000)
	z.SetDecreaseAllowed("thermal_alert", true)
	z.applyDecreaseStep(context.Background())

	if got := z.Target(); got != 4000 {
		t.Fatalf("target = %d, want 4000 after the decrease step", got)
	}
}

// TestZoneDecreaseSuppressedDuringIncreaseWindow confirms the decrease
// step is a no-op while an increase window is open (inc_delta != 0).
func TestZoneDecreaseSuppressedDuringIncreaseWindow(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         0,
		Ceiling:       10000,
		DefaultTarget: 5000,
		IncreaseDelay: time.Hour,
	}, testLogger())

	ctx := context.Background()
	z.RequestIncrease(ctx, 500)
	z.RequestDecrease(1000)
	z.applyDecreaseStep(ctx)

	if got := z.Target(); got != 5500 {
		t.Fatalf("target = %d, want 5500 (decrease suppressed while increase window is open)", got)
	}
}

// TestZoneRecalculateClampsToFloor exercises the second half of scenario
// S1: once mapped_floor raises the floor to 3000, the zone's target is
// clamped up to at least that floor.
func TestZoneRecalculateClampsToFloor(t *testing.T) {
	z := NewZone(ZoneConfig{
		Name:          "zone0",
		Floor:         2000,
		Ceiling:       10000,
		DefaultTarget: 2000,
	}, testLogger())

	z.SetFloor(3000)
	if err := z.Recalculate(context.Background()); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	if got := z.Target(); got != 3000 {
		t.Fatalf("target = %d, want 3000", got)
	}
}
