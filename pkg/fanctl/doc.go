// SPDX-License-Identifier: BSD-3-Clause

// Package fanctl implements the control-side fan engine: a JSON-configured,
// event-driven zone arbitration system that derives fan targets from
// groups of D-Bus-like property values, triggers and actions.
package fanctl
