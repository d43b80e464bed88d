// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sync"

	"github.com/u-bmc/fand/pkg/fanctl"
	"github.com/u-bmc/fand/pkg/fanmon"
	"github.com/u-bmc/fand/pkg/fanmon/poweroff"
	"github.com/u-bmc/fand/service/fanctlmgr"
	"github.com/u-bmc/fand/service/fanmonmgr"
	"github.com/u-bmc/fand/service/operator"
)

func main() {
	// Most BMCs have only 512MB of RAM; limit memory usage to 256MB.
	debug.SetMemoryLimit(256 * 1024 * 1024)

	broker := newMockBroker()

	if err := operator.New(
		operator.WithFanctlmgr(broker,
			fanctlmgr.WithServiceName("fanctlmgr"),
			fanctlmgr.WithAppName("fand"),
		),
		operator.WithFanmonmgr(broker,
			fanmonmgr.WithServiceName("fanmonmgr"),
			fanmonmgr.WithAppName("fand"),
		),
	).Run(context.Background(), nil); err != nil {
		panic(err)
	}
}

// mockBroker is a fake object-broker and power backend for local testing:
// it satisfies fanctl.Broker (control side, via the embedded
// fanctl.PropertyStore) and fanmonmgr.PowerBroker (monitor side,
// embedding fanmon.TachReader/Inventory and
// poweroff.PowerInterface/DumpCreator) so both services can run without
// real D-Bus/hwmon access, mirroring the teacher's mock-backend pattern
// used by its sensormon/powermgr services. The generic target wires the
// same PropertyStore to real hwmon/gpio I/O instead.
type mockBroker struct {
	*fanctl.PropertyStore

	mu      sync.Mutex
	targets map[string]uint64
}

func newMockBroker() *mockBroker {
	seed := map[fanctl.ObjectPath]map[fanctl.Interface]map[fanctl.Property]fanctl.PropertyValue{
		"/xyz/openbmc_project/inventory/system/chassis/motherboard/pcie_card0": {
			"xyz.openbmc_project.Inventory.Item": {"Present": fanctl.NewBoolValue(true)},
		},
		"/xyz/openbmc_project/inventory/system/chassis/motherboard/pcie_card1": {
			"xyz.openbmc_project.Inventory.Item": {"Present": fanctl.NewBoolValue(true)},
		},
		"/xyz/openbmc_project/inventory/system/chassis/motherboard/pcie_card2": {
			"xyz.openbmc_project.Inventory.Item": {"Present": fanctl.NewBoolValue(false)},
		},
	}
	return &mockBroker{
		PropertyStore: fanctl.NewPropertyStore(seed, "mock.owner"),
		targets:       map[string]uint64{},
	}
}

// SetProperty overrides the embedded PropertyStore to additionally track
// Target writes, so ReadRotors below can simulate a rotor chasing the
// most recently commanded target.
func (m *mockBroker) SetProperty(ctx context.Context, path fanctl.ObjectPath, iface fanctl.Interface, prop fanctl.Property, value fanctl.PropertyValue) error {
	if err := m.PropertyStore.SetProperty(ctx, path, iface, prop, value); err != nil {
		return err
	}
	if prop == "Target" {
		if i, err := value.Int64(); err == nil {
			m.mu.Lock()
			m.targets[string(path)] = uint64(i)
			m.mu.Unlock()
		}
	}
	return nil
}

// fanmon.TachReader

func (m *mockBroker) ReadRotors(_ context.Context, fru string, rotorCount int) ([]fanmon.RotorSample, error) {
	m.mu.Lock()
	target := m.targets[fru]
	m.mu.Unlock()
	if target == 0 {
		target = 6000
	}
	samples := make([]fanmon.RotorSample, rotorCount)
	for i := range samples {
		jitter := 1.0 + (rand.Float64()-0.5)*0.02 //nolint:gosec
		samples[i] = fanmon.RotorSample{Tach: float64(target) * jitter, Target: target}
	}
	return samples, nil
}

// fanmon.Inventory

func (m *mockBroker) SetPresent(_ context.Context, _ string, _ bool) error { return nil }

func (m *mockBroker) SetFunctional(_ context.Context, _ string, _ bool) error { return nil }

// poweroff.PowerInterface

func (m *mockBroker) HardPowerOff(_ context.Context) error { return nil }

func (m *mockBroker) SoftPowerOff(_ context.Context) error { return nil }

func (m *mockBroker) ThermalAlert(_ context.Context, _ bool) error { return nil }

// poweroff.DumpCreator

func (m *mockBroker) CreateDump(_ context.Context) error { return nil }

var (
	_ fanctl.Broker           = (*mockBroker)(nil)
	_ fanmonmgr.PowerBroker   = (*mockBroker)(nil)
	_ poweroff.PowerInterface = (*mockBroker)(nil)
)
