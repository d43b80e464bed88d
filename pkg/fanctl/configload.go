// SPDX-License-Identifier: BSD-3-Clause

package fanctl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SearchPaths returns the layered configuration search order for a given
// file name, from highest to lowest precedence: an override subdirectory
// path, the override default path, a system share subdirectory path, and
// the system share default path. subdir is typically the board's
// compatible-system name; it may be empty.
func SearchPaths(appName, subdir, file string) []string {
	paths := []string{
		filepath.Join("/etc", appName, subdir, file),
		filepath.Join("/etc", appName, file),
		filepath.Join("/usr/share", appName, subdir, file),
		filepath.Join("/usr/share", appName, file),
	}
	if subdir == "" {
		return []string{paths[1], paths[3]}
	}
	return paths
}

// FindConfig returns the first existing path from SearchPaths, or an
// error wrapping ErrInvalidConfig if none exist.
func FindConfig(appName, subdir, file string) (string, error) {
	for _, p := range SearchPaths(appName, subdir, file) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no %s found for app %s", ErrInvalidConfig, file, appName)
}

// groupsJSON is the on-disk shape of groups.json.
type groupsJSON []struct {
	Name      string       `json:"name"`
	Interface string       `json:"interface"`
	Property  string       `json:"property"`
	Value     *json.Number `json:"value,omitempty"`
	Members   []struct {
		Path    string `json:"path"`
		Service string `json:"service,omitempty"`
	} `json:"members"`
}

// LoadGroups parses groups.json content into a GroupSet.
func LoadGroups(data []byte) (*GroupSet, error) {
	var raw groupsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: groups.json: %w", ErrInvalidJSON, err)
	}

	groups := make([]*Group, 0, len(raw))
	for _, g := range raw {
		group := &Group{Name: g.Name, Interface: Interface(g.Interface), Property: Property(g.Property)}
		if g.Value != nil {
			group.HasValue = true
			if f, err := g.Value.Float64(); err == nil {
				group.Value = NewDoubleValue(f)
			} else {
				group.Value = NewStringValue(g.Value.String())
			}
		}
		for _, m := range g.Members {
			group.Members = append(group.Members, GroupMember{Path: ObjectPath(m.Path), Service: m.Service})
		}
		groups = append(groups, group)
	}
	return NewGroupSet(groups), nil
}

// zonesJSON is the on-disk shape of zones.json.
type zonesJSON []struct {
	Name          string `json:"name"`
	PoweronTarget int64  `json:"poweron_target"`
	DefaultFloor  int64  `json:"default_floor"`
	DefaultCeiling int64 `json:"default_ceiling"`
	IncreaseDelta int64  `json:"increase_delta"`
	IncreaseDelayMS int64 `json:"increase_delay_ms"`
	DecreaseIntervalMS int64 `json:"decrease_interval_ms"`
}

// LoadZones parses zones.json content into Zone configurations.
func LoadZones(data []byte) ([]ZoneConfig, error) {
	var raw zonesJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: zones.json: %w", ErrInvalidJSON, err)
	}

	zones := make([]ZoneConfig, 0, len(raw))
	for _, z := range raw {
		zones = append(zones, ZoneConfig{
			Name:          z.Name,
			Floor:         z.DefaultFloor,
			Ceiling:       z.DefaultCeiling,
			DefaultTarget: z.PoweronTarget,
			IncreaseDelta: z.IncreaseDelta,
			IncreaseDelay: time.Duration(z.IncreaseDelayMS) * time.Millisecond,
			DecreaseDelay: time.Duration(z.DecreaseIntervalMS) * time.Millisecond,
		})
	}
	return zones, nil
}

// fansJSON is the on-disk shape of fans.json.
type fansJSON []struct {
	Name      string   `json:"name"`
	Interface string   `json:"interface"`
	Zone      string   `json:"zone"`
	Service   string   `json:"service"`
	Sensors   []string `json:"sensors"`
}

// LoadFans parses fans.json content into Fan configurations keyed by zone name.
func LoadFans(data []byte) (map[string][]FanConfig, error) {
	var raw fansJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: fans.json: %w", ErrInvalidJSON, err)
	}

	byZone := make(map[string][]FanConfig)
	for _, f := range raw {
		cfg := FanConfig{Name: f.Name, Service: f.Service, Interface: Interface(f.Interface), Property: "Target"}
		for _, s := range f.Sensors {
			cfg.Targets = append(cfg.Targets, ObjectPath(s))
		}
		byZone[f.Zone] = append(byZone[f.Zone], cfg)
	}
	return byZone, nil
}

// eventsJSON is the on-disk shape of events.json: named events, each a
// trigger plus the actions it fires, scoped to a zone.
type eventsJSON []struct {
	Name    string          `json:"name"`
	Zone    string          `json:"zone"`
	Trigger eventTriggerJSON `json:"trigger"`
	Actions []struct {
		Type string          `json:"type"`
		Args json.RawMessage `json:"args"`
	} `json:"actions"`
}

type eventTriggerJSON struct {
	Class      string   `json:"class"` // init, signal, timer, parameter
	Groups     []string `json:"groups,omitempty"`
	IntervalMS int64    `json:"interval_ms,omitempty"`
	Repeating  bool     `json:"repeating,omitempty"`
	Parameter  string   `json:"parameter,omitempty"`
}

// LoadEvents parses events.json content into Triggers, resolving each
// action's type against the global action registry.
func LoadEvents(data []byte, groups *GroupSet) ([]*Trigger, error) {
	var raw eventsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: events.json: %w", ErrInvalidJSON, err)
	}

	triggers := make([]*Trigger, 0, len(raw))
	for _, e := range raw {
		t := &Trigger{Name: e.Name, Zone: e.Zone}

		switch e.Trigger.Class {
		case "init":
			t.Kind = TriggerInit
		case "signal":
			t.Kind = TriggerSignal
			t.Groups = e.Trigger.Groups
		case "timer":
			t.Kind = TriggerTimer
			t.Interval = time.Duration(e.Trigger.IntervalMS) * time.Millisecond
			if e.Trigger.Repeating {
				t.Timer = TimerRepeating
			} else {
				t.Timer = TimerOneshot
			}
		case "parameter":
			t.Kind = TriggerParameter
			t.Parameter = e.Trigger.Parameter
		default:
			return nil, fmt.Errorf("%w: event %q has unknown trigger class %q", ErrInvalidJSON, e.Name, e.Trigger.Class)
		}

		for _, a := range e.Actions {
			action, err := Build(a.Type, a.Args, groups)
			if err != nil {
				return nil, fmt.Errorf("event %q: %w", e.Name, err)
			}
			t.Actions = append(t.Actions, action)
		}

		triggers = append(triggers, t)
	}
	return triggers, nil
}
