// SPDX-License-Identifier: BSD-3-Clause

package fanmonmgr

import (
	"fmt"

	"github.com/u-bmc/fand/pkg/fanmon/presence"
)

const (
	DefaultServiceName        = "fanmonmgr"
	DefaultServiceDescription = "Fan rotor fault monitor and power-off escalation service"
	DefaultServiceVersion     = "1.0.0"
	DefaultAppName            = "fand"
	DefaultConfigSubdir       = ""
	DefaultDumpPath           = "/tmp/fan_monitor_dump.json"
)

type config struct {
	serviceName        string
	serviceDescription string
	serviceVersion     string
	appName            string
	configSubdir       string
	dumpPath           string
	presenceDetectors  map[string]*presence.Detector
}

// Option configures a Manager at construction time.
type Option interface {
	apply(*config)
}

type serviceNameOption struct{ name string }

func (o *serviceNameOption) apply(c *config) { c.serviceName = o.name }

// WithServiceName overrides the NATS micro service name.
func WithServiceName(name string) Option { return &serviceNameOption{name: name} }

type appNameOption struct{ name string }

func (o *appNameOption) apply(c *config) { c.appName = o.name }

// WithAppName overrides the application name used to build the layered
// config search path.
func WithAppName(name string) Option { return &appNameOption{name: name} }

type configSubdirOption struct{ subdir string }

func (o *configSubdirOption) apply(c *config) { c.configSubdir = o.subdir }

// WithConfigSubdir sets the board-specific config subdirectory.
func WithConfigSubdir(subdir string) Option { return &configSubdirOption{subdir: subdir} }

type dumpPathOption struct{ path string }

func (o *dumpPathOption) apply(c *config) { c.dumpPath = o.path }

// WithDumpPath overrides the SIGUSR1 debug dump file path.
func WithDumpPath(path string) Option { return &dumpPathOption{path: path} }

type presenceDetectorsOption struct {
	detectors map[string]*presence.Detector
}

func (o *presenceDetectorsOption) apply(c *config) { c.presenceDetectors = o.detectors }

// WithPresenceDetectors forwards a per-FRU presence.Detector map down to
// the fanmon.Monitor this manager builds, so a board with redundant
// presence methods (GPIO, tach) can reconcile them ahead of each tick's
// rotor read.
func WithPresenceDetectors(detectors map[string]*presence.Detector) Option {
	return &presenceDetectorsOption{detectors: detectors}
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		serviceName:        DefaultServiceName,
		serviceDescription: DefaultServiceDescription,
		serviceVersion:     DefaultServiceVersion,
		appName:            DefaultAppName,
		configSubdir:       DefaultConfigSubdir,
		dumpPath:           DefaultDumpPath,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) Validate() error {
	if c.serviceName == "" {
		return fmt.Errorf("%w: service name must not be empty", ErrInvalidConfiguration)
	}
	if c.appName == "" {
		return fmt.Errorf("%w: app name must not be empty", ErrInvalidConfiguration)
	}
	return nil
}
