// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RotorSample is a single fan rotor's tach/target reading for one tick.
type RotorSample struct {
	Tach   float64
	Target uint64
}

// TachReader supplies the latest rotor readings for a fan, typically
// backed by the property cache a sibling control-side broker maintains.
type TachReader interface {
	ReadRotors(ctx context.Context, fru string, rotorCount int) ([]RotorSample, error)
}

// Monitor (C9-C11) owns the set of monitored Fans and drives their
// per-tick fault-detection state machines on a fixed interval.
type Monitor struct {
	cfg    *config
	fans   []*Fan
	reader TachReader
	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// NewMonitor constructs a Monitor over the given fans, reading rotor
// samples from reader on every tick.
func NewMonitor(fans []*Fan, reader TachReader, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:    cfg,
		fans:   fans,
		reader: reader,
		logger: logger.With("component", "fanmon.monitor"),
		tracer: otel.Tracer("fanmon.monitor"),
	}, nil
}

// Fans returns the monitored fans.
func (m *Monitor) Fans() []*Fan { return m.fans }

// Run polls every fan on the configured interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrEngineAlreadyStarted
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

// Stop cancels the monitor's polling loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) tick(ctx context.Context, now time.Time) {
	for _, fan := range m.fans {
		if detector, ok := m.cfg.presenceDetectors[fan.FRU]; ok {
			present, _ := detector.Evaluate(ctx)
			if present != fan.Present() {
				if err := fan.PresenceChanged(ctx, present); err != nil {
					m.logger.WarnContext(ctx, "failed to apply presence change", "fan", fan.FRU, "error", err)
				}
			}
		}

		readings, err := m.reader.ReadRotors(ctx, fan.FRU, len(fan.Rotors))
		if err != nil {
			m.logger.WarnContext(ctx, "failed to read rotor samples", "fan", fan.FRU, "error", err)
			continue
		}

		if err := fan.Tick(ctx, now, readings); err != nil {
			m.logger.WarnContext(ctx, "fan tick failed", "fan", fan.FRU, "error", err)
		}
	}
}

// Health snapshots every monitored fan's current present/functional state.
func (m *Monitor) Health() FanHealth {
	return BuildFanHealth(m.fans)
}
