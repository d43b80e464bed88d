// SPDX-License-Identifier: BSD-3-Clause

package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLine struct {
	value int
	err   error
}

func (f *fakeLine) Value(_ context.Context) (int, error) { return f.value, f.err }

func TestGPIOMethodPresentMatchesActiveValue(t *testing.T) {
	m := NewGPIOMethod("gpio0", &fakeLine{value: 1}, 1)
	present, err := m.Present(context.Background())
	if err != nil || !present {
		t.Fatalf("Present() = %v, %v, want true, nil", present, err)
	}

	m = NewGPIOMethod("gpio0", &fakeLine{value: 0}, 1)
	present, err = m.Present(context.Background())
	if err != nil || present {
		t.Fatalf("Present() = %v, %v, want false, nil", present, err)
	}
}

func TestGPIOMethodPropagatesReadError(t *testing.T) {
	wantErr := errors.New("line closed")
	m := NewGPIOMethod("gpio0", &fakeLine{err: wantErr}, 1)
	if _, err := m.Present(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wraps %v", err, wantErr)
	}
}

func TestTachMethodPresentOnNonzeroReading(t *testing.T) {
	m := NewTachMethod("tach0", func() float64 { return 0 })
	if present, _ := m.Present(context.Background()); present {
		t.Fatalf("Present() = true for zero tach, want false")
	}

	m = NewTachMethod("tach0", func() float64 { return 4000 })
	if present, _ := m.Present(context.Background()); !present {
		t.Fatalf("Present() = false for nonzero tach, want true")
	}
}

// TestDetectorTieResolvesToPresent exercises the documented tie-break
// rule: an even split of votes resolves to present, so with two methods
// a missing fan needs both agreeing it's absent.
func TestDetectorTieResolvesToPresent(t *testing.T) {
	d := NewDetector("fan0", testLogger(),
		NewGPIOMethod("gpio", &fakeLine{value: 1}, 1),
		NewTachMethod("tach", func() float64 { return 0 }),
	)

	present, conflict := d.Evaluate(context.Background())
	if !present {
		t.Fatalf("present = false, want true (tie resolves present)")
	}
	if !conflict {
		t.Fatalf("conflict = false, want true (methods disagreed)")
	}
}

func TestDetectorAllMethodsAbsentReportsAbsent(t *testing.T) {
	d := NewDetector("fan0", testLogger(),
		NewGPIOMethod("gpio", &fakeLine{value: 0}, 1),
		NewTachMethod("tach", func() float64 { return 0 }),
	)

	present, conflict := d.Evaluate(context.Background())
	if present {
		t.Fatalf("present = true, want false")
	}
	if conflict {
		t.Fatalf("conflict = true, want false (methods agreed)")
	}
}

func TestDetectorNoWorkingMethodsDefaultsPresent(t *testing.T) {
	d := NewDetector("fan0", testLogger(),
		NewGPIOMethod("gpio", &fakeLine{err: errors.New("read failed")}, 1),
	)

	present, conflict := d.Evaluate(context.Background())
	if !present {
		t.Fatalf("present = false, want true (no working methods defaults present)")
	}
	if conflict {
		t.Fatalf("conflict = true, want false")
	}
}
