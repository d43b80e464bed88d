// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import "fmt"

const (
	DefaultEventQueueDepth = 256
)

type config struct {
	eventQueueDepth int
}

// Option configures a Manager at construction time.
type Option interface {
	apply(*config)
}

type eventQueueDepthOption struct{ depth int }

func (o *eventQueueDepthOption) apply(c *config) { c.eventQueueDepth = o.depth }

// WithEventQueueDepth overrides the dispatch channel's buffer depth.
func WithEventQueueDepth(depth int) Option {
	return &eventQueueDepthOption{depth: depth}
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{eventQueueDepth: DefaultEventQueueDepth}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *config) Validate() error {
	if c.eventQueueDepth <= 0 {
		return fmt.Errorf("%w: event queue depth must be positive", ErrInvalidConfig)
	}
	return nil
}
