// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"testing"
	"time"
)

// TestTachCountMethodFault exercises scenario S4: threshold=3,
// count_interval=1s, tach stuck at 0 against target=4000 (15% deviation)
// from t=0 counts 1,2,3 at t=1s,2s,3s and flips nonfunctional at the
// third count tick, and an in-range reading immediately restores
// functional state.
func TestTachCountMethodFault(t *testing.T) {
	s := NewTachSensor("fan0-rotor0", "xyz.openbmc_project.Sensor.Value")
	s.Factor = 1
	s.Offset = 0
	s.Method = MethodCount
	s.Deviation = 0.15
	s.Threshold = 3
	s.CountInterval = time.Second

	base := time.Unix(0, 0)

	// Going out of range at t=0 starts the count timer without counting.
	s.Update(base, 0, 4000)
	if s.Counter != 0 {
		t.Fatalf("counter = %d, want 0 when first out of range", s.Counter)
	}

	s.Update(base.Add(1*time.Second), 0, 4000)
	if !s.Functional {
		t.Fatalf("functional=false after first count tick, want true")
	}
	if s.Counter != 1 {
		t.Fatalf("counter = %d, want 1", s.Counter)
	}

	s.Update(base.Add(2*time.Second), 0, 4000)
	if s.Counter != 2 {
		t.Fatalf("counter = %d, want 2", s.Counter)
	}
	if !s.Functional {
		t.Fatalf("functional=false after second tick, want true")
	}

	s.Update(base.Add(3*time.Second), 0, 4000)
	if s.Counter != 3 {
		t.Fatalf("counter = %d, want 3", s.Counter)
	}
	if s.Functional {
		t.Fatalf("functional=true after third tick, want false")
	}

	// In-range reading at t=4s restores functional immediately.
	s.Update(base.Add(4*time.Second), 4000, 4000)
	if !s.Functional {
		t.Fatalf("functional=false after recovery tick, want true")
	}
}

// TestTachTimebasedFault exercises the timeout-based fault path: a rotor
// out of range continuously for Timeout flips nonfunctional, and returns
// functional immediately once back in range.
func TestTachTimebasedFault(t *testing.T) {
	s := NewTachSensor("fan1-rotor0", "xyz.openbmc_project.Sensor.Value")
	s.Factor = 1
	s.Method = MethodTimebased
	s.Deviation = 0.15
	s.Timeout = 2 * time.Second

	base := time.Unix(0, 0)

	s.Update(base, 0, 4000)
	if !s.Functional {
		t.Fatalf("functional=false immediately, want true")
	}

	s.Update(base.Add(3*time.Second), 0, 4000)
	if s.Functional {
		t.Fatalf("functional=true after exceeding timeout, want false")
	}

	s.Update(base.Add(4*time.Second), 4000, 4000)
	if !s.Functional {
		t.Fatalf("functional=false after returning to range, want true")
	}
}
