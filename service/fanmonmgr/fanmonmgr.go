// SPDX-License-Identifier: BSD-3-Clause

package fanmonmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/u-bmc/fand/pkg/fanmon"
	"github.com/u-bmc/fand/pkg/fanmon/poweroff"
	"github.com/u-bmc/fand/pkg/ipc"
	"github.com/u-bmc/fand/pkg/log"
	"github.com/u-bmc/fand/pkg/recorder"
	"github.com/u-bmc/fand/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ service.Service = (*Manager)(nil)

// PowerBroker is the power-state and property surface this service needs
// from the rest of the system: rotor tach readings, chassis power control
// for the power-off rule engine, and inventory writes for monitored fans.
type PowerBroker interface {
	fanmon.TachReader
	fanmon.Inventory
	poweroff.PowerInterface
	poweroff.DumpCreator
}

// Manager is the fan monitor NATS microservice: it owns the pkg/fanmon
// Monitor, the pkg/fanmon/poweroff Engine, and IPC endpoints for health
// and debug dumping.
type Manager struct {
	config *config
	nc     *nats.Conn
	svc    micro.Service

	broker   PowerBroker
	monitor  *fanmon.Monitor
	rules    *poweroff.Engine
	recorder *recorder.FlightRecorder

	mu      sync.RWMutex
	logger  *slog.Logger
	tracer  trace.Tracer
	cancel  context.CancelFunc
	started bool
}

// New creates a fan monitor Manager with the given broker and options.
func New(broker PowerBroker, opts ...Option) (*Manager, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{config: cfg, broker: broker, recorder: recorder.New()}, nil
}

// Name returns the service name.
func (m *Manager) Name() string { return m.config.serviceName }

// Run starts the fan monitor service: it loads configuration, builds the
// monitor and power-off rule engine, registers IPC endpoints, and polls
// rotor health until ctx is canceled.
func (m *Manager) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	m.tracer = otel.Tracer(m.config.serviceName)
	ctx, span := m.tracer.Start(ctx, "fanmonmgr.Run")
	defer span.End()

	m.logger = log.GetGlobalLogger().With("service", m.config.serviceName)

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrServiceAlreadyStarted
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if err := m.loadConfiguration(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	nc, err := nats.Connect("", nats.InProcessServer(ipcConn))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrNATSConnectionFailed, err)
	}
	m.nc = nc
	defer nc.Drain() //nolint:errcheck

	m.svc, err = micro.AddService(nc, micro.Config{
		Name:        m.config.serviceName,
		Description: m.config.serviceDescription,
		Version:     m.config.serviceVersion,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrMicroServiceCreationFailed, err)
	}

	if err := m.registerEndpoints(); err != nil {
		span.RecordError(err)
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)
	go m.handleSignals(ctx, sig)

	go m.runHealthEvaluation(ctx)

	m.logger.InfoContext(ctx, "starting fan monitor")
	runErr := m.monitor.Run(ctx)

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return ctx.Err()
}

func (m *Manager) handleSignals(ctx context.Context, sig chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := m.dumpDebugState(); err != nil {
				m.logger.ErrorContext(ctx, "debug dump failed", "error", err)
			}
		}
	}
}

// runHealthEvaluation feeds the monitor's current health snapshot into the
// power-off rule engine on the same cadence as monitor ticks, since a rule
// whose cause clears must be evaluated promptly to cancel its action.
func (m *Manager) runHealthEvaluation(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	atPgood := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			monitor := m.monitor
			rules := m.rules
			m.mu.RUnlock()
			if monitor == nil || rules == nil {
				continue
			}
			rules.Evaluate(ctx, monitor.Health(), atPgood)
			atPgood = false
		}
	}
}

func (m *Manager) loadConfiguration(ctx context.Context) error {
	configPath, err := fanmon.FindConfig(m.config.appName, m.config.configSubdir, "config.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrConfigLoadFailed, configPath, err)
	}

	fans, err := fanmon.LoadMonitorConfig(data, func(fru string) *fanmon.Fan {
		return fanmon.NewFan(fru, nil, m.broker, m.logger)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	monitor, err := fanmon.NewMonitor(fans, m.broker, m.logger, fanmon.WithPresenceDetectors(m.config.presenceDetectors))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	ruleConfigs, err := fanmon.LoadPowerOffRules(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	rules := m.buildRules(ruleConfigs)

	m.mu.Lock()
	m.monitor = monitor
	m.rules = poweroff.NewEngine(rules, m.logger)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "fan monitor configuration loaded", "config_path", configPath,
		"fans", len(fans), "power_off_rules", len(rules))
	return nil
}

func (m *Manager) buildRules(configs []fanmon.PowerOffRuleConfig) []*poweroff.Rule {
	rules := make([]*poweroff.Rule, 0, len(configs))
	for _, rc := range configs {
		var cause poweroff.Cause
		switch rc.Cause {
		case "missing_fan_frus":
			cause = poweroff.MissingFanFRUCause{Count: rc.Count}
		case "nonfunc_fan_rotors":
			cause = poweroff.NonfuncFanRotorCause{Count: rc.Count}
		default:
			m.logger.WarnContext(context.Background(), "skipping power-off rule with unknown cause", "cause", rc.Cause)
			continue
		}

		pre := func(ctx context.Context) {
			m.recorder.Log("poweroff", fmt.Sprintf("power-off action triggered by cause %s", cause.Name()))
		}

		var action poweroff.Action
		switch rc.Action {
		case "hard":
			action = poweroff.NewHardPowerOff(time.Duration(rc.DelayMS)*time.Millisecond, m.broker, m.broker, pre, m.logger)
		case "soft":
			action = poweroff.NewSoftPowerOff(time.Duration(rc.DelayMS)*time.Millisecond, m.broker, m.broker, pre, m.logger)
		case "epow":
			action = poweroff.NewEpowPowerOff(
				time.Duration(rc.ServiceModeMS)*time.Millisecond,
				time.Duration(rc.MeltdownDelayMS)*time.Millisecond,
				m.broker, m.broker, pre, m.logger)
		default:
			m.logger.WarnContext(context.Background(), "skipping power-off rule with unknown action", "action", rc.Action)
			continue
		}

		validity := poweroff.ValidityRuntime
		if rc.AtPgoodOnly {
			validity = poweroff.ValidityAtPgood
		}

		rules = append(rules, &poweroff.Rule{Cause: cause, Action: action, Validity: validity})
	}
	return rules
}

func (m *Manager) dumpDebugState() error {
	m.mu.RLock()
	monitor := m.monitor
	m.mu.RUnlock()

	if monitor == nil {
		return fmt.Errorf("%w: monitor not yet initialized", ErrDumpFailed)
	}

	f, err := os.Create(m.config.dumpPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(monitor.Health()); err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}

	if err := m.recorder.Dump(m.config.dumpPath + ".recorder"); err != nil {
		m.logger.WarnContext(context.Background(), "flight recorder dump failed", "error", err)
	}

	return nil
}

func (m *Manager) registerEndpoints() error {
	groups := make(map[string]micro.Group)

	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanMonitorHealth,
		micro.HandlerFunc(m.handleHealth), groups); err != nil {
		return fmt.Errorf("%w: health endpoint: %w", ErrMicroServiceCreationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanMonitorDump,
		micro.HandlerFunc(m.handleDump), groups); err != nil {
		return fmt.Errorf("%w: dump endpoint: %w", ErrMicroServiceCreationFailed, err)
	}

	return nil
}

func (m *Manager) span(req micro.Request, name string) (context.Context, trace.Span) {
	ctx := context.Background()
	if m.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := m.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("subject", req.Subject())))
	return ctx, span
}
