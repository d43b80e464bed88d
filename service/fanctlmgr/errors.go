// SPDX-License-Identifier: BSD-3-Clause

package fanctlmgr

import "errors"

var (
	// ErrServiceAlreadyStarted indicates that the fan control service is already running.
	ErrServiceAlreadyStarted = errors.New("fan control service already started")
	// ErrInvalidConfiguration indicates that the service configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid fan control service configuration")
	// ErrNATSConnectionFailed indicates that the NATS connection failed.
	ErrNATSConnectionFailed = errors.New("NATS connection failed")
	// ErrMicroServiceCreationFailed indicates that micro service creation failed.
	ErrMicroServiceCreationFailed = errors.New("micro service creation failed")
	// ErrConfigLoadFailed indicates the layered JSON configuration could not be loaded.
	ErrConfigLoadFailed = errors.New("fan control configuration load failed")
	// ErrConfigReloadFailed indicates a SIGHUP-triggered reload failed and was rolled back.
	ErrConfigReloadFailed = errors.New("fan control configuration reload failed")
	// ErrUnknownZone indicates a request referenced a zone that does not exist.
	ErrUnknownZone = errors.New("unknown fan control zone")
	// ErrDumpFailed indicates the debug flight-recorder dump could not be written.
	ErrDumpFailed = errors.New("fan control debug dump failed")
)
