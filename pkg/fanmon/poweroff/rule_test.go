// SPDX-License-Identifier: BSD-3-Clause

package poweroff

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/u-bmc/fand/pkg/fanmon"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakePower struct {
	mu        sync.Mutex
	hardCalls int32
	alert     bool
}

func (f *fakePower) HardPowerOff(ctx context.Context) error {
	atomic.AddInt32(&f.hardCalls, 1)
	return nil
}
func (f *fakePower) SoftPowerOff(ctx context.Context) error { return nil }
func (f *fakePower) ThermalAlert(ctx context.Context, asserted bool) error {
	f.mu.Lock()
	f.alert = asserted
	f.mu.Unlock()
	return nil
}

type fakeDump struct{ calls int32 }

func (d *fakeDump) CreateDump(ctx context.Context) error {
	atomic.AddInt32(&d.calls, 1)
	return nil
}

// TestHardPowerOffOnMissingFans exercises scenario S5: two missing fans
// against a MissingFanFRUCause(2) triggers exactly one hard power off and
// one dump request.
func TestHardPowerOffOnMissingFans(t *testing.T) {
	power := &fakePower{}
	dump := &fakeDump{}

	action := NewHardPowerOff(0, power, dump, nil, testLogger())
	rule := &Rule{Cause: MissingFanFRUCause{Count: 2}, Action: action, Validity: ValidityAtPgood}
	engine := NewEngine([]*Rule{rule}, testLogger())

	health := fanmon.FanHealth{
		"fan0": {Present: false, RotorFunc: []bool{true}},
		"fan1": {Present: false, RotorFunc: []bool{true}},
	}

	engine.Evaluate(context.Background(), health, true)

	// Delay is 0, allow the AfterFunc goroutine to run.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&power.hardCalls) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if got := atomic.LoadInt32(&power.hardCalls); got != 1 {
		t.Fatalf("hard power off calls = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&dump.calls); got != 1 {
		t.Fatalf("dump calls = %d, want 1", got)
	}

	// Re-evaluating the same satisfied cause must not restart the action.
	engine.Evaluate(context.Background(), health, true)
	time.Sleep(10 * time.Millisecond)
	if got := atomic.LoadInt32(&power.hardCalls); got != 1 {
		t.Fatalf("hard power off calls after re-evaluate = %d, want 1", got)
	}
}

// TestEpowMeltdownUncancelable exercises scenario S6: once the meltdown
// timer is armed, canceling without force must fail and the hard power
// off must still fire.
func TestEpowMeltdownUncancelable(t *testing.T) {
	power := &fakePower{}
	action := NewEpowPowerOff(10*time.Millisecond, 20*time.Millisecond, power, nil, nil, testLogger())

	action.Start(context.Background())
	time.Sleep(30 * time.Millisecond) // past service mode expiry, meltdown armed

	if ok := action.Cancel(false); ok {
		t.Fatalf("Cancel(false) succeeded while meltdown armed, want failure")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&power.hardCalls) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt32(&power.hardCalls); got != 1 {
		t.Fatalf("hard power off calls = %d, want 1", got)
	}
}
