// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

package main

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/u-bmc/fand/pkg/fanctl"
	"github.com/u-bmc/fand/pkg/fanmon"
	"github.com/u-bmc/fand/pkg/fanmon/poweroff"
	"github.com/u-bmc/fand/pkg/fanmon/presence"
	"github.com/u-bmc/fand/pkg/hwmon"
	"github.com/u-bmc/fand/service/fanctlmgr"
	"github.com/u-bmc/fand/service/fanmonmgr"
	"github.com/u-bmc/fand/service/operator"
)

// main wires a generic x86 server board backed by real hwmon tach
// sensors and discrete GPIO presence/power lines, in contrast to the
// mock target's fully simulated broker. The object-property tree itself
// is still the same in-memory fanctl.PropertyStore the mock target uses:
// this board has no D-Bus daemon of its own, so fand's object graph is
// local, but the rotor and power I/O it carries inside that tree is
// real.
func main() {
	debug.SetMemoryLimit(256 * 1024 * 1024)

	broker := newGenericBroker()

	if err := operator.New(
		operator.WithFanctlmgr(broker,
			fanctlmgr.WithServiceName("fanctlmgr"),
			fanctlmgr.WithAppName("fand"),
		),
		operator.WithFanmonmgr(broker,
			fanmonmgr.WithServiceName("fanmonmgr"),
			fanmonmgr.WithAppName("fand"),
			fanmonmgr.WithPresenceDetectors(broker.detectors),
		),
	).Run(context.Background(), nil); err != nil {
		panic(err)
	}
}

const hwmonChip = "nct6775" // the board's Super I/O fan controller, discovered at startup below

// genericBroker composes the shared D-Bus-shaped property tree with
// real hardware backends for the concerns a board actually has sensors
// and lines for: hwmon tach input for TachReader, a GPIO-backed
// presence.Detector for fan-tray presence, and discrete GPIO lines for
// PowerInterface.
type genericBroker struct {
	*fanctl.PropertyStore
	*fanmon.HwmonTachReader
	*poweroff.GPIOPower

	detectors map[string]*presence.Detector
}

func newGenericBroker() *genericBroker {
	devicePath, err := hwmon.FindDeviceByNameCtx(context.Background(), hwmonChip)
	if err != nil {
		// Fall back to the conventional first-enumerated device; a missing
		// Super I/O chip will surface as read errors on first tick instead
		// of at startup, which is preferable to refusing to start a BMC.
		devicePath = hwmon.DefaultHwmonPath + "/hwmon0"
	}

	rotorPaths := map[string][]fanmon.HwmonRotorPath{
		"fan0": {{InputPath: devicePath + "/fan1_input", TargetPath: devicePath + "/fan1_target"}},
		"fan1": {{InputPath: devicePath + "/fan2_input", TargetPath: devicePath + "/fan2_target"}},
	}

	seed := map[fanctl.ObjectPath]map[fanctl.Interface]map[fanctl.Property]fanctl.PropertyValue{}

	b := &genericBroker{
		PropertyStore:   fanctl.NewPropertyStore(seed, "xyz.openbmc_project.FanSensor"),
		HwmonTachReader: fanmon.NewHwmonTachReader(rotorPaths),
		GPIOPower: poweroff.NewGPIOPower(
			"gpiochip0",
			"PWR_HARD_OFF",
			"PWR_SOFT_OFF",
			"THERMAL_ALERT",
			1,
		),
	}

	logger := slog.Default()
	b.detectors = map[string]*presence.Detector{
		"fan0": presence.NewDetector("fan0", logger,
			presence.NewGPIOMethod("fan0-present", presence.NewChipLine("gpiochip0", "FAN0_PRESENT"), 1),
			presence.NewTachMethod("fan0-tach", func() float64 {
				samples, err := b.HwmonTachReader.ReadRotors(context.Background(), "fan0", 1)
				if err != nil || len(samples) == 0 {
					return 0
				}
				return samples[0].Tach
			}),
		),
		"fan1": presence.NewDetector("fan1", logger,
			presence.NewGPIOMethod("fan1-present", presence.NewChipLine("gpiochip0", "FAN1_PRESENT"), 1),
		),
	}

	return b
}

// SetPresent implements fanmon.Inventory by publishing presence onto the
// same object tree fanctl.Broker reads, the way a real
// xyz.openbmc_project.Inventory.Item.Present property would be written
// over D-Bus.
func (b *genericBroker) SetPresent(ctx context.Context, fru string, present bool) error {
	return b.SetProperty(ctx, fanctl.ObjectPath("/xyz/openbmc_project/inventory/system/chassis/motherboard/"+fru),
		"xyz.openbmc_project.Inventory.Item", "Present", fanctl.NewBoolValue(present))
}

// SetFunctional implements fanmon.Inventory.
func (b *genericBroker) SetFunctional(ctx context.Context, fru string, functional bool) error {
	return b.SetProperty(ctx, fanctl.ObjectPath("/xyz/openbmc_project/sensors/fan_tach/"+fru),
		"xyz.openbmc_project.State.Decorator.OperationalStatus", "Functional", fanctl.NewBoolValue(functional))
}

// CreateDump implements poweroff.DumpCreator. This board has no BMC dump
// daemon wired up yet, so it only records that one was requested; the
// FanError that triggered the power off is already captured by
// pkg/recorder's flight recorder.
func (b *genericBroker) CreateDump(ctx context.Context) error {
	slog.Default().WarnContext(ctx, "dump requested but no dump backend is configured for this board")
	return nil
}

var (
	_ fanctl.Broker         = (*genericBroker)(nil)
	_ fanmonmgr.PowerBroker = (*genericBroker)(nil)
)
