// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"context"
	"encoding/json"
	"fmt"
)

func init() {
	Register("mapped_floor", newMappedFloor)
}

// mappedFloorThreshold is one (value, floor) pair within a secondary
// group's lookup table.
type mappedFloorThreshold struct {
	Value PropertyValue
	Floor int64
}

// mappedFloorSecondary is one secondary group consulted within a matched
// primary-key entry.
type mappedFloorSecondary struct {
	Group      *Group
	Thresholds []mappedFloorThreshold
}

// mappedFloorEntry is one row of the primary fan_floors table.
type mappedFloorEntry struct {
	KeyValue      float64
	DefaultFloor  *int64
	Secondaries   []mappedFloorSecondary
}

// MappedFloor implements the mapped_floor action: a two-level lookup
// table keyed by a primary group's maximum numeric value, with a
// secondary per-group lookup selecting the final floor.
type MappedFloor struct {
	name          string
	primary       *Group
	entries       []mappedFloorEntry
	actionDefault *int64
	offsetParam   string
}

type mappedFloorJSON struct {
	Name       string  `json:"name"`
	KeyGroup   string  `json:"key_group"`
	Default    *int64  `json:"default_floor"`
	OffsetParm string  `json:"floor_offset_parameter"`
	Entries    []struct {
		Key     float64 `json:"key"`
		Default *int64  `json:"default_floor"`
		Floors  []struct {
			Group  string `json:"group"`
			Floors []struct {
				Value json.Number `json:"value"`
				Floor int64       `json:"floor"`
			} `json:"floors"`
		} `json:"floors"`
	} `json:"fan_floors"`
}

func newMappedFloor(raw json.RawMessage, groups *GroupSet) (Action, error) {
	var j mappedFloorJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	primary, err := groups.Get(j.KeyGroup)
	if err != nil {
		return nil, err
	}

	m := &MappedFloor{
		name:          j.Name,
		primary:       primary,
		actionDefault: j.Default,
		offsetParam:   j.OffsetParm,
	}

	for _, e := range j.Entries {
		entry := mappedFloorEntry{KeyValue: e.Key, DefaultFloor: e.Default}
		for _, sec := range e.Floors {
			g, err := groups.Get(sec.Group)
			if err != nil {
				return nil, err
			}
			s := mappedFloorSecondary{Group: g}
			for _, f := range sec.Floors {
				s.Thresholds = append(s.Thresholds, mappedFloorThreshold{
					Value: parseThresholdValue(f.Value),
					Floor: f.Floor,
				})
			}
			entry.Secondaries = append(entry.Secondaries, s)
		}
		m.entries = append(m.entries, entry)
	}

	return m, nil
}

func parseThresholdValue(n json.Number) PropertyValue {
	if f, err := n.Float64(); err == nil {
		return NewDoubleValue(f)
	}
	return NewStringValue(n.String())
}

// Run evaluates the mapped_floor action against zone: it selects the
// primary-key entry, takes the highest floor matched across that entry's
// secondary groups, falls back to the entry default and then the action
// default, and submits the result as a floor hold.
func (m *MappedFloor) Run(ctx context.Context, env *ActionEnv) error {
	key, ok := groupMaxNumeric(env.Cache, m.primary)
	if !ok {
		m.submit(ctx, env, m.actionDefault)
		return nil
	}

	entry, found := m.selectEntry(key)
	if !found {
		m.submit(ctx, env, m.actionDefault)
		return nil
	}

	var chosen *int64
	for _, sec := range entry.Secondaries {
		value, ok := groupMaxValue(env.Cache, sec.Group)
		if !ok {
			continue
		}
		for _, th := range sec.Thresholds {
			var matched bool
			if _, isNum := value.AsFloat64(); isNum {
				matched = value.LessThan(th.Value) || value.Equal(th.Value)
			} else {
				matched = value.Equal(th.Value)
			}
			if matched {
				if chosen == nil || th.Floor > *chosen {
					f := th.Floor
					chosen = &f
				}
				break
			}
		}
	}

	if chosen == nil {
		chosen = entry.DefaultFloor
	}
	if chosen == nil {
		chosen = m.actionDefault
	}

	m.submit(ctx, env, chosen)
	return nil
}

// selectEntry picks the entry whose KeyValue is the highest threshold not
// exceeding key, assuming entries are declared in ascending KeyValue
// order (the step-function interpretation documented in DESIGN.md).
func (m *MappedFloor) selectEntry(key float64) (mappedFloorEntry, bool) {
	var selected mappedFloorEntry
	found := false
	for _, e := range m.entries {
		if key >= e.KeyValue {
			selected = e
			found = true
			continue
		}
		break
	}
	return selected, found
}

func (m *MappedFloor) submit(ctx context.Context, env *ActionEnv, floor *int64) {
	if floor == nil {
		env.Zone.SetFloorHold(ctx, m.name, 0, false)
		return
	}

	value := *floor
	if m.offsetParam != "" {
		if p, ok := env.Params.Get(m.offsetParam); ok {
			if offset, err := p.Int64(); err == nil {
				adjusted := value + offset
				if adjusted < 0 {
					adjusted = value
				}
				value = adjusted
			}
		}
	}

	env.Zone.SetFloorHold(ctx, m.name, value, true)
}

// groupMaxNumeric returns the maximum numeric cached value across a
// group's members, and whether any member had a readable value.
func groupMaxNumeric(cache *Cache, g *Group) (float64, bool) {
	var max float64
	found := false
	for _, member := range g.Members {
		v, err := cache.Get(member.Path, g.Interface, g.Property)
		if err != nil {
			continue
		}
		f, ok := v.AsFloat64()
		if !ok {
			continue
		}
		if !found || f > max {
			max = f
			found = true
		}
	}
	return max, found
}

// groupMaxValue returns the single "largest" cached value across a
// group's members for arbitrary comparable kinds, used when a secondary
// group may hold non-numeric members.
func groupMaxValue(cache *Cache, g *Group) (PropertyValue, bool) {
	var max PropertyValue
	found := false
	for _, member := range g.Members {
		v, err := cache.Get(member.Path, g.Interface, g.Property)
		if err != nil {
			continue
		}
		if !found {
			max = v
			found = true
			continue
		}
		if cmp, ok := v.Compare(max); ok && cmp > 0 {
			max = v
		}
	}
	return max, found
}
