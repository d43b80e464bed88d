// SPDX-License-Identifier: BSD-3-Clause

package fanmon

// TrustGroup (C12) suppresses fault actions when a sensor reading cannot
// currently be trusted, e.g. a group of tach sensors that should all
// report nonzero together but are all reading zero, which usually
// indicates a shared sensing-path fault rather than a real stall.
type TrustGroup struct {
	sensors []*TachSensor
}

// NewTrustGroup constructs a trust group over the given sensors.
func NewTrustGroup(sensors ...*TachSensor) *TrustGroup {
	return &TrustGroup{sensors: sensors}
}

// Trusted reports whether the group's readings should currently be
// trusted: true whenever at least one member reads a nonzero tach,
// matching the original NonzeroSpeedTrust bypass where any nonzero
// reading in the trust group exempts the rest from some functional
// checks.
func (tg *TrustGroup) Trusted() bool {
	if len(tg.sensors) == 0 {
		return true
	}
	for _, s := range tg.sensors {
		if s.TachInput != 0 {
			return true
		}
	}
	return false
}
