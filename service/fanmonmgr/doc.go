// SPDX-License-Identifier: BSD-3-Clause

// Package fanmonmgr wraps pkg/fanmon's rotor fault monitor and pkg/fanmon/poweroff's
// escalation engine in a NATS microservice: it loads config.json,
// drives the monitor's polling loop for the lifetime of
// the service, and exposes fan health and debug-dump operations over IPC.
package fanmonmgr
