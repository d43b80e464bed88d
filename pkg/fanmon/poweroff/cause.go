// SPDX-License-Identifier: BSD-3-Clause

// Package poweroff implements the power-off rule engine (C13): cause
// evaluators that poll FanHealth, paired with power-off action classes
// (hard, soft, staged EPOW) that the rule engine invokes when a cause is
// satisfied.
package poweroff

import "github.com/u-bmc/fand/pkg/fanmon"

// Cause decides, from a FanHealth snapshot, whether the system should be
// powered off. Concrete causes are named for tracing, mirroring
// PowerOffCause::name() in the original rule engine.
type Cause interface {
	Satisfied(health fanmon.FanHealth) bool
	Name() string
}

// MissingFanFRUCause is satisfied once at least Count fans report absent.
type MissingFanFRUCause struct {
	Count int
}

func (c MissingFanFRUCause) Satisfied(health fanmon.FanHealth) bool {
	missing := 0
	for _, entry := range health {
		if !entry.Present {
			missing++
		}
	}
	return missing >= c.Count
}

func (c MissingFanFRUCause) Name() string { return "Missing Fan FRUs" }

// NonfuncFanRotorCause is satisfied once at least Count individual rotors
// (summed across all fans) report nonfunctional.
type NonfuncFanRotorCause struct {
	Count int
}

func (c NonfuncFanRotorCause) Satisfied(health fanmon.FanHealth) bool {
	nonfunc := 0
	for _, entry := range health {
		for _, functional := range entry.RotorFunc {
			if !functional {
				nonfunc++
			}
		}
	}
	return nonfunc >= c.Count
}

func (c NonfuncFanRotorCause) Name() string { return "Nonfunctional Fan Rotors" }
