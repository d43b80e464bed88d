// SPDX-License-Identifier: BSD-3-Clause

// Package presence implements fan presence detection (C15): GPIO-line and
// tach-based detection methods with redundant-policy reconciliation and
// conflict reporting.
package presence

import (
	"context"
	"fmt"
	"log/slog"
)

// Method is one vote on whether a fan is physically present.
type Method interface {
	Name() string
	Present(ctx context.Context) (bool, error)
}

// TachMethod treats a nonzero tach reading as evidence of presence. It is
// driven by the caller feeding in the latest tach sample rather than
// reading hardware itself, so it composes with fanmon.TachSensor without
// an import cycle.
type TachMethod struct {
	name string
	read func() float64
}

// NewTachMethod constructs a tach-based presence method backed by read,
// which should return the sensor's latest tach value.
func NewTachMethod(name string, read func() float64) *TachMethod {
	return &TachMethod{name: name, read: read}
}

func (m *TachMethod) Name() string { return m.name }

func (m *TachMethod) Present(ctx context.Context) (bool, error) {
	return m.read() != 0, nil
}

// GPIOLine is the narrow surface this package needs from a GPIO chip
// handle, satisfied by an adapter over pkg/gpio's go-gpiocdev wrapper.
type GPIOLine interface {
	Value(ctx context.Context) (int, error)
}

// GPIOMethod treats an asserted GPIO line as evidence of presence.
type GPIOMethod struct {
	name    string
	line    GPIOLine
	active  int
}

// NewGPIOMethod constructs a GPIO-line-based presence method. activeValue
// is the line value (0 or 1) that indicates "present".
func NewGPIOMethod(name string, line GPIOLine, activeValue int) *GPIOMethod {
	return &GPIOMethod{name: name, line: line, active: activeValue}
}

func (m *GPIOMethod) Name() string { return m.name }

func (m *GPIOMethod) Present(ctx context.Context) (bool, error) {
	v, err := m.line.Value(ctx)
	if err != nil {
		return false, fmt.Errorf("reading GPIO presence line %s: %w", m.name, err)
	}
	return v == m.active, nil
}

// Detector reconciles one or more redundant presence Methods for a single
// fan slot, logging a conflict whenever methods disagree rather than
// silently picking one.
type Detector struct {
	FRU     string
	methods []Method
	logger  *slog.Logger
}

// NewDetector constructs a Detector over the given redundant methods.
func NewDetector(fru string, logger *slog.Logger, methods ...Method) *Detector {
	return &Detector{FRU: fru, methods: methods, logger: logger.With("fru", fru)}
}

// Evaluate polls every method and returns the majority-vote presence
// result. Disagreements are logged as conflicts but do not block a
// result: ties resolve to "present", so a fan is reported absent only
// when a strict majority of working methods report it absent (with two
// methods, both must).
func (d *Detector) Evaluate(ctx context.Context) (present bool, conflict bool) {
	var votes, total int
	for _, m := range d.methods {
		p, err := m.Present(ctx)
		if err != nil {
			d.logger.WarnContext(ctx, "presence method failed", "method", m.Name(), "error", err)
			continue
		}
		total++
		if p {
			votes++
		}
	}

	if total == 0 {
		return true, false
	}

	conflict = votes != 0 && votes != total
	if conflict {
		d.logger.WarnContext(ctx, "presence methods disagree", "votes_present", votes, "total", total)
	}

	return votes*2 >= total, conflict
}
