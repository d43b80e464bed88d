// SPDX-License-Identifier: BSD-3-Clause

// Package fanmon implements the monitor-side fan health engine: tach
// sensor fault detection, trust groups, presence detection, the
// power-off rule engine and the flight recorder.
package fanmon
