// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"testing"
	"time"

	"github.com/u-bmc/fand/pkg/fanmon/presence"
)

type fakeTachReader struct {
	samples map[string][]RotorSample
}

func (r *fakeTachReader) ReadRotors(_ context.Context, fru string, _ int) ([]RotorSample, error) {
	return r.samples[fru], nil
}

// TestMonitorTickAppliesPresenceDetectorBeforeRead confirms a tick
// consults the configured presence.Detector for a fan ahead of reading
// its rotors, so a fan physically removed is reported missing the same
// poll it's pulled rather than a poll later.
func TestMonitorTickAppliesPresenceDetectorBeforeRead(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())

	detector := presence.NewDetector("fan0", testLogger(),
		presence.NewGPIOMethod("gpio0", &fakeGPIOLine{value: 0}, 1),
	)

	reader := &fakeTachReader{samples: map[string][]RotorSample{
		"fan0": {{Tach: 4000, Target: 4000}},
	}}

	m, err := NewMonitor([]*Fan{fan}, reader, testLogger(),
		WithPresenceDetectors(map[string]*presence.Detector{"fan0": detector}))
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.tick(context.Background(), time.Unix(0, 0))

	if fan.Present() {
		t.Fatalf("Present() = true, want false after detector reports absent")
	}
	if fan.LastError() == nil || fan.LastError().Severity != "critical" {
		t.Fatalf("lastError = %+v, want critical", fan.LastError())
	}
}

// TestMonitorTickWithoutDetectorLeavesPresenceUnchanged confirms a fan
// with no configured presence.Detector keeps its prior presence value,
// so boards without redundant presence methods are unaffected.
func TestMonitorTickWithoutDetectorLeavesPresenceUnchanged(t *testing.T) {
	inv := newFakeInventory()
	rotor := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	fan := NewFan("fan0", []*TachSensor{rotor}, inv, testLogger())

	reader := &fakeTachReader{samples: map[string][]RotorSample{
		"fan0": {{Tach: 4000, Target: 4000}},
	}}

	m, err := NewMonitor([]*Fan{fan}, reader, testLogger())
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	m.tick(context.Background(), time.Unix(0, 0))

	if !fan.Present() {
		t.Fatalf("Present() = false, want true (unchanged, no detector configured)")
	}
}

type fakeGPIOLine struct {
	value int
	err   error
}

func (f *fakeGPIOLine) Value(_ context.Context) (int, error) { return f.value, f.err }
