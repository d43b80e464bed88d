// SPDX-License-Identifier: BSD-3-Clause

// Package fanctlmgr wraps pkg/fanctl's event-driven fan control engine in a
// NATS microservice: it loads the layered zones/fans/groups/events JSON
// configuration, drives the engine's dispatch loop for the lifetime of the
// service, and exposes zone introspection, config reload, and debug-dump
// operations over IPC.
package fanctlmgr
