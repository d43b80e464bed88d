// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("pcie_card_floors", newPCIeCardFloors)
}

// pcieCardEntry is one floor-index row: the minimum count of present,
// power-hungry PCIe cards required to select this floor.
type pcieCardEntry struct {
	MinCount int
	Floor    int64
}

// PCIeCardFloors implements calcFloorIndex: it counts the members of a
// presence group whose cached value is truthy (card present and drawing
// power above its idle baseline) and selects the highest floor whose
// MinCount does not exceed that count, mirroring MappedFloor's
// step-function entry selection but keyed on a simple population count
// rather than an analog reading.
type PCIeCardFloors struct {
	name    string
	cards   *Group
	entries []pcieCardEntry
}

type pcieCardFloorsJSON struct {
	Name       string `json:"name"`
	CardsGroup string `json:"cards_group"`
	Floors     []struct {
		Count int   `json:"count"`
		Floor int64 `json:"floor"`
	} `json:"floor_indexes"`
}

func newPCIeCardFloors(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j pcieCardFloorsJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	cards, err := groups.Get(j.CardsGroup)
	if err != nil {
		return nil, err
	}

	p := &PCIeCardFloors{name: j.Name, cards: cards}
	for _, f := range j.Floors {
		p.entries = append(p.entries, pcieCardEntry{MinCount: f.Count, Floor: f.Floor})
	}
	return p, nil
}

// Run counts present cards in the configured group and sets a floor hold
// from the highest MinCount entry not exceeding that count.
func (p *PCIeCardFloors) Run(ctx context.Context, env *ActionEnv) error {
	count := 0
	for _, member := range p.cards.Members {
		v, err := env.Cache.Get(member.Path, p.cards.Interface, p.cards.Property)
		if err != nil {
			continue
		}
		if b, err := v.Bool(); err == nil && b {
			count++
			continue
		}
		if f, ok := v.AsFloat64(); ok && f != 0 {
			count++
		}
	}

	var chosen *int64
	for _, e := range p.entries {
		if count >= e.MinCount {
			f := e.Floor
			chosen = &f
			continue
		}
		break
	}

	if chosen == nil {
		env.Zone.SetFloorHold(ctx, p.name, 0, false)
		return nil
	}
	env.Zone.SetFloorHold(ctx, p.name, *chosen, true)
	return nil
}
