// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import "errors"

var (
	// ErrInvalidConfig indicates the monitor engine configuration failed validation.
	ErrInvalidConfig = errors.New("fanmon: invalid configuration")
	// ErrUnknownFan indicates a reference to a fan name with no matching configuration.
	ErrUnknownFan = errors.New("fanmon: unknown fan")
	// ErrUnknownRotor indicates a reference to a rotor index out of range for its fan.
	ErrUnknownRotor = errors.New("fanmon: unknown rotor")
	// ErrNoTrustGroup indicates a tach sensor reference to a trust group that was never configured.
	ErrNoTrustGroup = errors.New("fanmon: unknown trust group")
	// ErrEngineAlreadyStarted indicates Start was called twice.
	ErrEngineAlreadyStarted = errors.New("fanmon: engine already started")
)
