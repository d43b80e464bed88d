// SPDX-License-Identifier: BSD-3-Clause

package fanctlmgr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/u-bmc/fand/pkg/fanctl"
	"github.com/u-bmc/fand/pkg/ipc"
	"github.com/u-bmc/fand/pkg/log"
	"github.com/u-bmc/fand/pkg/recorder"
	"github.com/u-bmc/fand/service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ service.Service = (*Manager)(nil)

// Manager is the fan control NATS microservice: it owns the layered JSON
// configuration, the pkg/fanctl engine it drives, and IPC endpoints for
// zone introspection, reload, and debug dumping.
type Manager struct {
	config *config
	nc     *nats.Conn
	svc    micro.Service

	broker   fanctl.Broker
	engine   *fanctl.Manager
	groups   *fanctl.GroupSet
	recorder *recorder.FlightRecorder

	mu      sync.RWMutex
	logger  *slog.Logger
	tracer  trace.Tracer
	cancel  context.CancelFunc
	started bool
}

// New creates a fan control Manager with the given power/property broker
// and options.
func New(broker fanctl.Broker, opts ...Option) (*Manager, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{config: cfg, broker: broker}, nil
}

// Name returns the service name.
func (m *Manager) Name() string { return m.config.serviceName }

// Run starts the fan control service: it loads configuration, builds the
// fanctl engine, registers IPC endpoints, and drives the engine's dispatch
// loop until ctx is canceled.
func (m *Manager) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	m.tracer = otel.Tracer(m.config.serviceName)
	ctx, span := m.tracer.Start(ctx, "fanctlmgr.Run")
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

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sig)

	go m.handleSignals(ctx, sig)

	m.logger.InfoContext(ctx, "starting fan control engine", "zones", len(m.engine.ZoneNames()))
	runErr := m.engine.Start(ctx)

	<-ctx.Done()
	m.engine.Stop()

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
		case s := <-sig:
			switch s {
			case syscall.SIGHUP:
				if err := m.reload(ctx); err != nil {
					m.logger.ErrorContext(ctx, "config reload failed, keeping prior configuration", "error", err)
				}
			case syscall.SIGUSR1:
				if err := m.dumpDebugState(); err != nil {
					m.logger.ErrorContext(ctx, "debug dump failed", "error", err)
				}
			}
		}
	}
}

// loadConfiguration reads groups.json, zones.json, fans.json, and
// events.json from the layered search path and builds the fanctl engine.
// Until pcie_card_floors gains its own config file, its inputs are folded
// into the shared groups/zones fixtures.
func (m *Manager) loadConfiguration(ctx context.Context) error {
	groupsPath, err := fanctl.FindConfig(m.config.appName, m.config.configSubdir, "groups.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	groupsData, err := os.ReadFile(groupsPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrConfigLoadFailed, groupsPath, err)
	}
	groups, err := fanctl.LoadGroups(groupsData)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	zonesPath, err := fanctl.FindConfig(m.config.appName, m.config.configSubdir, "zones.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	zonesData, err := os.ReadFile(zonesPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrConfigLoadFailed, zonesPath, err)
	}
	zoneConfigs, err := fanctl.LoadZones(zonesData)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	fansPath, err := fanctl.FindConfig(m.config.appName, m.config.configSubdir, "fans.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	fansData, err := os.ReadFile(fansPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrConfigLoadFailed, fansPath, err)
	}
	fansByZone, err := fanctl.LoadFans(fansData)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	eventsPath, err := fanctl.FindConfig(m.config.appName, m.config.configSubdir, "events.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	eventsData, err := os.ReadFile(eventsPath)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrConfigLoadFailed, eventsPath, err)
	}
	triggers, err := fanctl.LoadEvents(eventsData, groups)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	engine, err := fanctl.NewManager(m.broker, m.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}
	engine.SetGroups(groups)

	for _, zc := range zoneConfigs {
		zone := fanctl.NewZone(zc, m.logger)
		for _, fc := range fansByZone[zc.Name] {
			zone.AddFan(fanctl.NewFan(fc, m.broker))
		}
		engine.AddZone(zone)
	}
	for _, t := range triggers {
		engine.AddTrigger(t)
	}

	m.mu.Lock()
	m.groups = groups
	m.engine = engine
	if m.recorder == nil {
		m.recorder = recorder.New()
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "fan control configuration loaded",
		"groups_path", groupsPath, "zones_path", zonesPath, "fans_path", fansPath, "events_path", eventsPath,
		"zones", len(zoneConfigs), "triggers", len(triggers))
	return nil
}

// reload rebuilds the engine from a fresh read of the config files. The
// prior engine is kept running until the new one has built successfully,
// so a broken config drop never interrupts fan control.
func (m *Manager) reload(ctx context.Context) error {
	m.mu.RLock()
	prior := m.engine
	m.mu.RUnlock()

	if err := m.loadConfiguration(ctx); err != nil {
		m.mu.Lock()
		m.engine = prior
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConfigReloadFailed, err)
	}

	if prior != nil {
		prior.Stop()
	}

	m.mu.RLock()
	engine := m.engine
	m.mu.RUnlock()
	go func() {
		if err := engine.Start(ctx); err != nil && ctx.Err() == nil {
			m.logger.ErrorContext(ctx, "reloaded engine stopped unexpectedly", "error", err)
		}
	}()

	m.logger.InfoContext(ctx, "fan control configuration reloaded")
	return nil
}

func (m *Manager) dumpDebugState() error {
	m.mu.RLock()
	recorder := m.recorder
	engine := m.engine
	m.mu.RUnlock()

	if recorder == nil || engine == nil {
		return fmt.Errorf("%w: engine not yet initialized", ErrDumpFailed)
	}

	snapshot := struct {
		Zones []zoneSnapshot `json:"zones"`
	}{}
	for _, name := range engine.ZoneNames() {
		zone, err := engine.Zone(name)
		if err != nil {
			continue
		}
		snapshot.Zones = append(snapshot.Zones, zoneSnapshot{
			Name:    name,
			Target:  zone.Target(),
			Floor:   zone.Floor(),
		})
	}

	f, err := os.Create(m.config.dumpPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("%w: %w", ErrDumpFailed, err)
	}

	if err := recorder.Dump(m.config.dumpPath + ".recorder"); err != nil {
		m.logger.WarnContext(context.Background(), "flight recorder dump failed", "error", err)
	}

	return nil
}

type zoneSnapshot struct {
	Name   string `json:"name"`
	Target int64  `json:"target"`
	Floor  int64  `json:"floor"`
}

func (m *Manager) registerEndpoints() error {
	groups := make(map[string]micro.Group)

	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanZoneList,
		micro.HandlerFunc(m.handleZoneList), groups); err != nil {
		return fmt.Errorf("%w: zone list endpoint: %w", ErrMicroServiceCreationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanZoneInfo,
		micro.HandlerFunc(m.handleZoneInfo), groups); err != nil {
		return fmt.Errorf("%w: zone info endpoint: %w", ErrMicroServiceCreationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanControlReload,
		micro.HandlerFunc(m.handleReload), groups); err != nil {
		return fmt.Errorf("%w: reload endpoint: %w", ErrMicroServiceCreationFailed, err)
	}
	if err := ipc.RegisterEndpointWithGroupCache(m.svc, ipc.SubjectFanControlDump,
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
