// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"fmt"

	"github.com/u-bmc/fand/pkg/hwmon"
)

// HwmonRotorPath is one rotor's sysfs attribute pair: InputPath reads the
// tach, TargetPath (optional) reads back the commanded target from the
// fan controller itself rather than trusting the last value fand wrote.
type HwmonRotorPath struct {
	InputPath  string
	TargetPath string
}

// HwmonTachReader implements TachReader by reading fan*_input (and,
// where available, fan*_target) attributes straight from the Linux
// hwmon sysfs tree via pkg/hwmon, the way a board with real tach
// hardware feeds the monitor engine instead of a simulated broker. The
// FRU-to-sysfs-path mapping is supplied by the board's main package: it
// isn't something fand's generic configuration model can discover on
// its own, since hwmon chip/channel numbering is board-specific.
type HwmonTachReader struct {
	rotors map[string][]HwmonRotorPath
}

// NewHwmonTachReader constructs a HwmonTachReader over the given
// FRU-to-rotor-path mapping.
func NewHwmonTachReader(rotors map[string][]HwmonRotorPath) *HwmonTachReader {
	return &HwmonTachReader{rotors: rotors}
}

// ReadRotors implements TachReader.
func (r *HwmonTachReader) ReadRotors(ctx context.Context, fru string, rotorCount int) ([]RotorSample, error) {
	paths, ok := r.rotors[fru]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no hwmon rotor mapping", ErrUnknownFan, fru)
	}

	out := make([]RotorSample, 0, rotorCount)
	for i := 0; i < rotorCount; i++ {
		if i >= len(paths) {
			return nil, fmt.Errorf("%w: %s rotor %d has no hwmon mapping", ErrUnknownRotor, fru, i)
		}

		tach, err := hwmon.ReadIntCtx(ctx, paths[i].InputPath)
		if err != nil {
			return nil, fmt.Errorf("reading tach input for %s rotor %d: %w", fru, i, err)
		}

		var target uint64
		if paths[i].TargetPath != "" {
			t, err := hwmon.ReadIntCtx(ctx, paths[i].TargetPath)
			if err != nil {
				return nil, fmt.Errorf("reading tach target for %s rotor %d: %w", fru, i, err)
			}
			target = uint64(t)
		}

		out = append(out, RotorSample{Tach: float64(tach), Target: target})
	}
	return out, nil
}

var _ TachReader = (*HwmonTachReader)(nil)
