// SPDX-License-Identifier: BSD-3-Clause

package fanmon

// FanHealthEntry is one fan's present/rotor-functional snapshot.
type FanHealthEntry struct {
	Present    bool
	RotorFunc  []bool
}

// FanHealth maps a fan name to its present/rotor-functional snapshot, and
// is rebuilt on every status change for consumption by the power-off rule
// engine's cause evaluators.
type FanHealth map[string]FanHealthEntry

// BuildFanHealth snapshots the current present/functional state of every
// given fan into a FanHealth map.
func BuildFanHealth(fans []*Fan) FanHealth {
	health := make(FanHealth, len(fans))
	for _, f := range fans {
		health[f.FRU] = FanHealthEntry{Present: f.Present(), RotorFunc: f.RotorFunctional()}
	}
	return health
}
