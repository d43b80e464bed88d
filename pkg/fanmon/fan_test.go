// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeInventory struct {
	present    map[string]bool
	functional map[string]bool
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{present: map[string]bool{}, functional: map[string]bool{}}
}

func (f *fakeInventory) SetPresent(_ context.Context, fru string, present bool) error {
	f.present[fru] = present
	return nil
}

func (f *fakeInventory) SetFunctional(_ context.Context, fru string, functional bool) error {
	f.functional[fru] = functional
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestFanHealthEscalatesToWarningAndBack exercises the OK->Warning->OK
// path of the health state machine: a rotor going out of range raises a
// warning FanError, and a recovered reading clears it.
func TestFanHealthEscalatesToWarningAndBack(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	rotor.Factor = 1
	rotor.Deviation = 0.15
	rotor.Method = MethodCount
	rotor.Threshold = 1
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())

	base := time.Unix(0, 0)
	if err := fan.Tick(context.Background(), base, []RotorSample{{Tach: 0, Target: 4000}}); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fan.LastError() == nil || fan.LastError().Severity != "warning" {
		t.Fatalf("lastError = %+v, want warning", fan.LastError())
	}

	if err := fan.Tick(context.Background(), base.Add(time.Second), []RotorSample{{Tach: 4000, Target: 4000}}); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fan.LastError() != nil {
		t.Fatalf("lastError = %+v, want nil after recovery", fan.LastError())
	}
}

// TestFanHealthMissingIsCriticalRegardlessOfRotors confirms presence loss
// escalates straight to critical even while every rotor still reads
// functional, matching monitor/fan.cpp's severity rule.
func TestFanHealthMissingIsCriticalRegardlessOfRotors(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())

	if err := fan.PresenceChanged(context.Background(), false); err != nil {
		t.Fatalf("PresenceChanged: %v", err)
	}
	if fan.LastError() == nil || fan.LastError().Severity != "critical" {
		t.Fatalf("lastError = %+v, want critical", fan.LastError())
	}
}

// TestFanHealthSuppressesOneTickAfterPresenceRestored exercises the grace
// window: presence returning does not trust an immediately-functional
// rotor reading until the next tick re-confirms it.
func TestFanHealthSuppressesOneTickAfterPresenceRestored(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())

	if err := fan.PresenceChanged(context.Background(), false); err != nil {
		t.Fatalf("PresenceChanged(false): %v", err)
	}
	if err := fan.PresenceChanged(context.Background(), true); err != nil {
		t.Fatalf("PresenceChanged(true): %v", err)
	}
	if fan.LastError() == nil || fan.LastError().Severity != "warning" {
		t.Fatalf("lastError = %+v, want warning (grace tick, not yet recovered)", fan.LastError())
	}

	base := time.Unix(0, 0)
	if err := fan.Tick(context.Background(), base, []RotorSample{{Tach: 4000, Target: 4000}}); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fan.LastError() != nil {
		t.Fatalf("lastError = %+v, want nil after confirmed recovery", fan.LastError())
	}
}

// TestFanHealthSkipTimerSuppressesEscalation confirms that while skipTimer
// is armed (chassis powered off), rotor faults still update inventory but
// never record a FanError, so shutdown spin-down isn't reported as failed.
func TestFanHealthSkipTimerSuppressesEscalation(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	rotor.Factor = 1
	rotor.Deviation = 0.15
	rotor.Method = MethodCount
	rotor.Threshold = 1
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())
	fan.PowerStateChanged(false)

	if err := fan.Tick(context.Background(), time.Unix(0, 0), []RotorSample{{Tach: 0, Target: 4000}}); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fan.LastError() != nil {
		t.Fatalf("lastError = %+v, want nil while skipTimer is armed", fan.LastError())
	}
	if inv.functional["fan0"] {
		t.Fatalf("inventory functional = true, want false (inventory still reflects rotor truth)")
	}
}
