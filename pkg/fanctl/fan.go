// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"sync"
)

// FanConfig is the static configuration of a control-side Fan: the set of
// D-Bus object paths (one per tach sensor/cooling-zone actuator) that a
// single logical fan's target is written to.
type FanConfig struct {
	Name      string
	Service   string
	Targets   []ObjectPath
	Interface Interface
	Property  Property
}

// Fan (C7 control side) fans a zone's arbitrated target out to every
// actuator object path it owns, and maintains a lock stack so that a
// single in-flight override (e.g. from override_fan_target) can suspend
// normal zone-driven writes without losing the value the zone would have
// otherwise applied.
type Fan struct {
	cfg    FanConfig
	broker Broker

	mu        sync.Mutex
	locks     []int64 // lock stack; top of stack (last element) wins while non-empty
	lastValue int64
}

// NewFan constructs a control-side Fan bound to a Broker used to publish
// its target writes.
func NewFan(cfg FanConfig, broker Broker) *Fan {
	return &Fan{cfg: cfg, broker: broker}
}

// Name returns the fan's configured name.
func (f *Fan) Name() string { return f.cfg.Name }

// Lock pushes an override value onto the lock stack, suspending
// zone-driven SetTarget calls until a matching Unlock.
func (f *Fan) Lock(ctx context.Context, value int64) error {
	f.mu.Lock()
	f.locks = append(f.locks, value)
	f.mu.Unlock()
	return f.write(ctx, value)
}

// Unlock pops the most recently pushed lock. If no locks remain, the last
// zone-requested value is re-applied so the fan resumes tracking the
// zone's arbitrated target.
func (f *Fan) Unlock(ctx context.Context) error {
	f.mu.Lock()
	if len(f.locks) > 0 {
		f.locks = f.locks[:len(f.locks)-1]
	}
	var value int64
	if len(f.locks) > 0 {
		value = f.locks[len(f.locks)-1]
	} else {
		value = f.lastValue
	}
	f.mu.Unlock()
	return f.write(ctx, value)
}

// SetTarget applies a zone-arbitrated target, unless a lock is currently
// held, in which case the locked value continues to win and the
// zone-requested value is only remembered for when the lock clears.
func (f *Fan) SetTarget(ctx context.Context, target int64) error {
	f.mu.Lock()
	f.lastValue = target
	locked := len(f.locks) > 0
	f.mu.Unlock()

	if locked {
		return nil
	}
	return f.write(ctx, target)
}

func (f *Fan) write(ctx context.Context, value int64) error {
	var firstErr error
	for _, path := range f.cfg.Targets {
		if err := f.broker.SetProperty(ctx, path, f.cfg.Interface, f.cfg.Property, NewInt64Value(value)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
