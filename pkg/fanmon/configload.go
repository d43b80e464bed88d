// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SearchPaths returns the layered configuration search order for a given
// file name, from highest to lowest precedence, mirroring pkg/fanctl's
// SearchPaths for the monitor's own config file (config.json).
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

// FindConfig returns the first existing path from SearchPaths, or an error
// wrapping ErrInvalidConfig if none exist.
func FindConfig(appName, subdir, file string) (string, error) {
	for _, p := range SearchPaths(appName, subdir, file) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no %s found for app %s", ErrInvalidConfig, file, appName)
}

// sensorJSON is the on-disk shape of one fan's rotor entry in config.json.
type sensorJSON struct {
	Name                string  `json:"name"`
	Interface           string  `json:"interface"`
	HasTarget           bool    `json:"has_target"`
	Factor              float64 `json:"factor"`
	Offset              float64 `json:"offset"`
	Method              string  `json:"method"` // "timebased" or "count"
	Threshold           int     `json:"threshold"`
	TimeoutMS           int64   `json:"timeout_ms"`
	NonfuncErrDelayMS   int64   `json:"nonfunc_rotor_err_delay_ms"`
	CountIntervalMS     int64   `json:"count_interval_ms"`
}

// fanJSON is the on-disk shape of one fan entry in config.json.
type fanJSON struct {
	Name    string       `json:"name"`
	Sensors []sensorJSON `json:"sensors"`
}

// PowerOffRuleConfig is one entry of fault_handling.power_off_config[],
// exported so service/fanmonmgr can build poweroff.Rules without this
// package needing to import the poweroff package (which already imports
// fanmon for FanHealth).
type PowerOffRuleConfig struct {
	Cause            string `json:"cause"` // "missing_fan_frus" or "nonfunc_fan_rotors"
	Count            int    `json:"count"`
	Action           string `json:"action"` // "hard", "soft", or "epow"
	DelayMS          int64  `json:"delay_ms"`
	ServiceModeMS    int64  `json:"service_mode_delay_ms,omitempty"`
	MeltdownDelayMS  int64  `json:"meltdown_delay_ms,omitempty"`
	AtPgoodOnly      bool   `json:"at_pgood_only,omitempty"`
}

// configJSON is the on-disk shape of the monitor's config.json.
type configJSON struct {
	Deviation                float64              `json:"deviation"`
	NumSensorFailsForNonfunc int                  `json:"num_sensor_fails_for_nonfunc"`
	Fans                     []fanJSON            `json:"fans"`
	SensorTrustGroups        [][]string           `json:"sensor_trust_groups,omitempty"`
	FaultHandling            struct {
		PowerOffConfig []PowerOffRuleConfig `json:"power_off_config"`
	} `json:"fault_handling"`
}

// LoadPowerOffRules extracts the fault_handling.power_off_config[] entries
// from config.json without requiring the full monitor config parse.
func LoadPowerOffRules(data []byte) ([]PowerOffRuleConfig, error) {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: config.json: %w", ErrInvalidConfig, err)
	}
	return raw.FaultHandling.PowerOffConfig, nil
}

func parseMethod(s string) Method {
	if s == "count" {
		return MethodCount
	}
	return MethodTimebased
}

func msDur(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

// LoadMonitorConfig parses config.json into a ready-to-run set of Fans,
// wiring each sensor's fault-detection parameters and cross-linking any
// configured sensor trust groups (C12). newFan constructs a bare Fan for
// a given FRU name, with its Inventory and logger already bound.
func LoadMonitorConfig(data []byte, newFan func(fru string) *Fan) ([]*Fan, error) {
	var raw configJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: config.json: %w", ErrInvalidConfig, err)
	}

	fans := make([]*Fan, 0, len(raw.Fans))
	bySensorName := make(map[string]*TachSensor)

	for _, fj := range raw.Fans {
		rotors := make([]*TachSensor, 0, len(fj.Sensors))
		for _, sj := range fj.Sensors {
			s := NewTachSensor(sj.Name, sj.Interface)
			s.HasTarget = sj.HasTarget
			s.Factor = sj.Factor
			s.Offset = sj.Offset
			s.Method = parseMethod(sj.Method)
			s.Threshold = sj.Threshold
			s.Timeout = msDur(sj.TimeoutMS)
			s.NonfuncErrorDelay = msDur(sj.NonfuncErrDelayMS)
			s.CountInterval = msDur(sj.CountIntervalMS)
			if s.Deviation == 0 {
				s.Deviation = raw.Deviation
			}
			rotors = append(rotors, s)
			bySensorName[sj.Name] = s
		}

		fan := newFan(fj.Name)
		fan.Rotors = rotors
		fans = append(fans, fan)
	}

	for _, names := range raw.SensorTrustGroups {
		members := make([]*TachSensor, 0, len(names))
		for _, n := range names {
			if s, ok := bySensorName[n]; ok {
				members = append(members, s)
			}
		}
		if len(members) == 0 {
			continue
		}
		tg := NewTrustGroup(members...)
		for _, fan := range fans {
			for _, r := range fan.Rotors {
				for _, m := range members {
					if r == m {
						fan.SetTrustGroup(tg)
					}
				}
			}
		}
	}

	return fans, nil
}
