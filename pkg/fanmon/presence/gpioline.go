// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

package presence

import (
	"context"

	"github.com/u-bmc/fand/pkg/gpio"
)

// ChipLine adapts a named GPIO line on a Linux gpiochip, via pkg/gpio's
// go-gpiocdev wrapper, to the GPIOLine interface. Unlike pkg/gpio's
// LineGroup/LineMonitor helpers, RequestLine/GetGPIO operate on the
// underlying gpiocdev.Line directly and request-release the line on
// every read, which is the right tradeoff for a presence poll that only
// runs once per detector reconciliation rather than needing a held,
// edge-watched handle.
type ChipLine struct {
	chip string
	line string
	opts []gpio.Option
}

// NewChipLine constructs a GPIOLine backed by the named line on chip,
// e.g. NewChipLine("gpiochip0", "FAN0_PRESENT").
func NewChipLine(chip, line string, opts ...gpio.Option) *ChipLine {
	return &ChipLine{chip: chip, line: line, opts: opts}
}

// Value implements GPIOLine.
func (c *ChipLine) Value(_ context.Context) (int, error) {
	return gpio.GetGPIO(c.chip, c.line, c.opts...)
}

var _ GPIOLine = (*ChipLine)(nil)
