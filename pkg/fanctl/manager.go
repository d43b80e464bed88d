// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arunsworld/nursery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PowerState mirrors the handful of chassis power states the control
// manager cares about for gating which zones/triggers are active.
type PowerState int

const (
	PowerStateOff PowerState = iota
	PowerStateOn
	PowerStateTransitioning
)

// dispatchEvent is the single kind of message ever sent to the Manager's
// dispatch channel. Every producer (signal listener, timer goroutine,
// parameter-change notifier) only ever sends a dispatchEvent; only the
// dispatch loop goroutine reads the engine state the event references,
// preserving the single-writer invariant from the concurrency model.
type dispatchEvent struct {
	trigger *Trigger
}

// Manager (C8) is the control manager: it owns every Zone, the resolved
// GroupSet, the property Cache and ParameterStore, and the single
// dispatch loop that serializes all trigger firings.
type Manager struct {
	cfg *config

	broker Broker
	cache  *Cache
	params *ParameterStore
	groups *GroupSet

	zones    map[string]*Zone
	triggers []*Trigger

	events chan dispatchEvent

	mu         sync.RWMutex
	powerState PowerState

	logger *slog.Logger
	tracer trace.Tracer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager constructs a Manager. Zones, groups and triggers are added
// via AddZone/SetGroups/AddTrigger before Start is called.
func NewManager(broker Broker, logger *slog.Logger, opts ...Option) (*Manager, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:    cfg,
		broker: broker,
		cache:  NewCache(),
		params: NewParameterStore(),
		groups: NewGroupSet(nil),
		zones:  make(map[string]*Zone),
		events: make(chan dispatchEvent, cfg.eventQueueDepth),
		logger: logger.With("component", "fanctl.manager"),
		tracer: otel.Tracer("fanctl.manager"),
	}, nil
}

// Cache returns the manager's shared property cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Broker returns the manager's underlying object-broker client, used by
// actions that need to issue a fresh read outside the cache (e.g.
// get_managed_objects).
func (m *Manager) Broker() Broker { return m.broker }

// Params returns the manager's shared parameter store.
func (m *Manager) Params() *ParameterStore { return m.params }

// SetGroups installs the resolved group set used by every action.
func (m *Manager) SetGroups(groups *GroupSet) { m.groups = groups }

// AddZone registers a zone under its configured name.
func (m *Manager) AddZone(z *Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[z.Name()] = z
}

// zonesLocked returns a snapshot of every registered zone.
func (m *Manager) zonesLocked() []*Zone {
	zones := make([]*Zone, 0, len(m.zones))
	for _, z := range m.zones {
		zones = append(zones, z)
	}
	return zones
}

// Zone looks up a registered zone by name.
func (m *Manager) Zone(name string) (*Zone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[name]
	if !ok {
		return nil, wrapf(ErrUnknownZone, name)
	}
	return z, nil
}

// ZoneNames returns every registered zone's name, in no particular order.
func (m *Manager) ZoneNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.zones))
	for name := range m.zones {
		names = append(names, name)
	}
	return names
}

// AddTrigger registers a trigger to be dispatched once Start runs.
func (m *Manager) AddTrigger(t *Trigger) {
	m.triggers = append(m.triggers, t)
}

// SetPowerState updates the manager's notion of chassis power state.
// Triggers are only suppressed, never dropped: a trigger that fires while
// powered off is still recorded in the flight recorder by the caller, but
// the dispatch loop skips running its actions.
func (m *Manager) SetPowerState(state PowerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.powerState = state
}

func (m *Manager) currentPowerState() PowerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.powerState
}

// Start runs the init trigger synchronously, then launches the timer
// goroutines and the single dispatch loop, returning once ctx is
// canceled or an unrecoverable error occurs.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.mu.RLock()
	zones := m.zonesLocked()
	m.mu.RUnlock()
	for _, z := range zones {
		z.Start(ctx)
	}

	for _, t := range m.triggers {
		if t.Kind == TriggerInit {
			m.dispatch(ctx, t)
		}
	}

	return nursery.RunConcurrentlyWithContext(ctx,
		func(ctx context.Context, errCh chan error) {
			errCh <- m.runDispatchLoop(ctx)
		},
		func(ctx context.Context, errCh chan error) {
			errCh <- m.runTimers(ctx)
		},
	)
}

// Stop cancels the dispatch loop and timer goroutines, and stops every
// registered zone's decrease-step timer.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.RLock()
	zones := m.zonesLocked()
	m.mu.RUnlock()
	for _, z := range zones {
		z.Stop()
	}
}

func (m *Manager) runDispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.dispatch(ctx, ev.trigger)
		}
	}
}

func (m *Manager) runTimers(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, t := range m.triggers {
		if t.Kind != TriggerTimer {
			continue
		}
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.runTimerTrigger(ctx, t)
		}()
	}
	wg.Wait()
	return nil
}

func (m *Manager) runTimerTrigger(ctx context.Context, t *Trigger) {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case m.events <- dispatchEvent{trigger: t}:
			case <-ctx.Done():
				return
			}
			if t.Timer == TimerOneshot {
				return
			}
		}
	}
}

// Signal enqueues a signal-kind trigger to run on the dispatch loop. It is
// called by the broker's signal listener goroutine and never touches
// engine state directly.
func (m *Manager) Signal(ctx context.Context, t *Trigger) {
	select {
	case m.events <- dispatchEvent{trigger: t}:
	case <-ctx.Done():
	}
}

func (m *Manager) dispatch(ctx context.Context, t *Trigger) {
	if m.currentPowerState() == PowerStateOff {
		m.logger.DebugContext(ctx, "skipping trigger while powered off", "trigger", t.Name)
		return
	}

	ctx, span := m.tracer.Start(ctx, "fanctl.manager.dispatch",
		trace.WithAttributes(attribute.String("trigger", t.Name), attribute.String("zone", t.Zone)))
	defer span.End()

	zone, err := m.Zone(t.Zone)
	if err != nil {
		m.logger.ErrorContext(ctx, "trigger references unknown zone", "trigger", t.Name, "zone", t.Zone, "error", err)
		return
	}

	env := &ActionEnv{Zone: zone, Cache: m.cache, Params: m.params, Groups: m.groups, Manager: m}

	for _, action := range t.Actions {
		if err := action.Run(ctx, env); err != nil {
			m.logger.WarnContext(ctx, "action failed", "trigger", t.Name, "error", err)
		}
	}

	if err := zone.Recalculate(ctx); err != nil {
		m.logger.WarnContext(ctx, "zone recalculation failed", "zone", zone.Name(), "error", err)
	}
}

