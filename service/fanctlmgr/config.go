// SPDX-License-Identifier: BSD-3-Clause

package fanctlmgr

import "fmt"

const (
	DefaultServiceName        = "fanctlmgr"
	DefaultServiceDescription = "Event-driven fan control service"
	DefaultServiceVersion     = "1.0.0"
	DefaultAppName            = "fand"
	DefaultConfigSubdir       = ""
	DefaultDumpPath           = "/tmp/fan_control_dump.json"
)

type config struct {
	serviceName        string
	serviceDescription string
	serviceVersion     string
	appName            string
	configSubdir       string
	dumpPath           string
}

// Option configures a Manager at construction time.
type Option interface {
	apply(*config)
}

type serviceNameOption struct{ name string }

func (o *serviceNameOption) apply(c *config) { c.serviceName = o.name }

// WithServiceName overrides the NATS micro service name.
func WithServiceName(name string) Option { return &serviceNameOption{name: name} }

type serviceDescriptionOption struct{ description string }

func (o *serviceDescriptionOption) apply(c *config) { c.serviceDescription = o.description }

// WithServiceDescription overrides the NATS micro service description.
func WithServiceDescription(description string) Option {
	return &serviceDescriptionOption{description: description}
}

type appNameOption struct{ name string }

func (o *appNameOption) apply(c *config) { c.appName = o.name }

// WithAppName overrides the application name used to build the
// layered config search path (/etc/<app>/..., /usr/share/<app>/...).
func WithAppName(name string) Option { return &appNameOption{name: name} }

type configSubdirOption struct{ subdir string }

func (o *configSubdirOption) apply(c *config) { c.configSubdir = o.subdir }

// WithConfigSubdir sets the board-specific config subdirectory, typically
// drawn from the IBMCompatibleSystem names or the chassis inventory item's
// pretty name.
func WithConfigSubdir(subdir string) Option { return &configSubdirOption{subdir: subdir} }

type dumpPathOption struct{ path string }

func (o *dumpPathOption) apply(c *config) { c.dumpPath = o.path }

// WithDumpPath overrides the SIGUSR1 debug dump file path.
func WithDumpPath(path string) Option { return &dumpPathOption{path: path} }

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
