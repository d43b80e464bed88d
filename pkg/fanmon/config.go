// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"fmt"
	"time"

	"github.com/u-bmc/fand/pkg/fanmon/presence"
)

const (
	DefaultMonitorInterval = time.Second
)

type config struct {
	monitorInterval   time.Duration
	presenceDetectors map[string]*presence.Detector
}

// Option configures a Monitor at construction time.
type Option interface {
	apply(*config)
}

type monitorIntervalOption struct{ interval time.Duration }

func (o *monitorIntervalOption) apply(c *config) { c.monitorInterval = o.interval }

// WithMonitorInterval overrides the per-tick polling cadence.
func WithMonitorInterval(interval time.Duration) Option {
	return &monitorIntervalOption{interval: interval}
}

type presenceDetectorsOption struct {
	detectors map[string]*presence.Detector
}

func (o *presenceDetectorsOption) apply(c *config) { c.presenceDetectors = o.detectors }

// WithPresenceDetectors installs a presence.Detector per FRU, polled once
// per monitor tick ahead of the tach read so a board with redundant
// presence methods (GPIO, tach) can reconcile and feed Fan.PresenceChanged
// without the monitor engine needing to know how presence is detected.
func WithPresenceDetectors(detectors map[string]*presence.Detector) Option {
	return &presenceDetectorsOption{detectors: detectors}
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{monitorInterval: DefaultMonitorInterval}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) Validate() error {
	if c.monitorInterval <= 0 {
		return fmt.Errorf("%w: monitor interval must be positive", ErrInvalidConfig)
	}
	return nil
}
