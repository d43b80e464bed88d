// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

package poweroff

import (
	"context"
	"fmt"

	"github.com/u-bmc/fand/pkg/gpio"
)

// GPIOPower implements PowerInterface by pulsing discrete GPIO lines,
// the way a fan controller mezzanine without a D-Bus power service
// drives the host's power-good/soft-off/thermal-alert signals directly.
// Each line is request-released per call via pkg/gpio.SetGPIO rather
// than held open, since these actions fire at most a few times in a
// board's lifetime.
type GPIOPower struct {
	chip string

	hardOffLine     string
	softOffLine     string
	thermalAlertLine string

	assertValue int
	opts        []gpio.Option
}

// NewGPIOPower constructs a GPIOPower over the given gpiochip. Any of
// the three line names may be left empty to make that action a no-op,
// e.g. a board with no discrete thermal-alert line.
func NewGPIOPower(chip, hardOffLine, softOffLine, thermalAlertLine string, assertValue int, opts ...gpio.Option) *GPIOPower {
	return &GPIOPower{
		chip:             chip,
		hardOffLine:      hardOffLine,
		softOffLine:      softOffLine,
		thermalAlertLine: thermalAlertLine,
		assertValue:      assertValue,
		opts:             opts,
	}
}

func (p *GPIOPower) assert(line string) error {
	if line == "" {
		return nil
	}
	if err := gpio.SetGPIO(p.chip, line, p.assertValue, p.opts...); err != nil {
		return fmt.Errorf("asserting GPIO line %s on %s: %w", line, p.chip, err)
	}
	return nil
}

// HardPowerOff implements PowerInterface by asserting the hard power off line.
func (p *GPIOPower) HardPowerOff(_ context.Context) error {
	return p.assert(p.hardOffLine)
}

// SoftPowerOff implements PowerInterface by asserting the soft power off line.
func (p *GPIOPower) SoftPowerOff(_ context.Context) error {
	return p.assert(p.softOffLine)
}

// ThermalAlert implements PowerInterface. Deasserting (asserted=false)
// drives the line to the opposite of assertValue.
func (p *GPIOPower) ThermalAlert(_ context.Context, asserted bool) error {
	if p.thermalAlertLine == "" {
		return nil
	}
	value := p.assertValue
	if !asserted {
		value = 1 - p.assertValue
	}
	if err := gpio.SetGPIO(p.chip, p.thermalAlertLine, value, p.opts...); err != nil {
		return fmt.Errorf("setting GPIO thermal alert line %s on %s: %w", p.thermalAlertLine, p.chip, err)
	}
	return nil
}

var _ PowerInterface = (*GPIOPower)(nil)
