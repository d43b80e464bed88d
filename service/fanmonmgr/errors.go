// SPDX-License-Identifier: BSD-3-Clause

package fanmonmgr

import "errors"

var (
	// ErrServiceAlreadyStarted indicates that the fan monitor service is already running.
	ErrServiceAlreadyStarted = errors.New("fan monitor service already started")
	// ErrInvalidConfiguration indicates that the service configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid fan monitor service configuration")
	// ErrNATSConnectionFailed indicates that the NATS connection failed.
	ErrNATSConnectionFailed = errors.New("NATS connection failed")
	// ErrMicroServiceCreationFailed indicates that micro service creation failed.
	ErrMicroServiceCreationFailed = errors.New("micro service creation failed")
	// ErrConfigLoadFailed indicates the layered JSON configuration could not be loaded.
	ErrConfigLoadFailed = errors.New("fan monitor configuration load failed")
	// ErrDumpFailed indicates the debug dump could not be written.
	ErrDumpFailed = errors.New("fan monitor debug dump failed")
)
