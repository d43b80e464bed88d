// SPDX-License-Identifier: BSD-3-Clause

package fanctlmgr

import (
	"encoding/json"

	"github.com/nats-io/nats.go/micro"
)

// zoneListResponse is the response for SubjectFanZoneList.
type zoneListResponse struct {
	Zones []zoneSnapshot `json:"zones"`
}

func (m *Manager) handleZoneList(req micro.Request) {
	_, span := m.span(req, "fanctlmgr.handleZoneList")
	defer span.End()

	m.mu.RLock()
	engine := m.engine
	m.mu.RUnlock()

	resp := zoneListResponse{}
	for _, name := range engine.ZoneNames() {
		zone, err := engine.Zone(name)
		if err != nil {
			continue
		}
		resp.Zones = append(resp.Zones, zoneSnapshot{Name: name, Target: zone.Target(), Floor: zone.Floor()})
	}

	data, err := json.Marshal(resp)
	if err != nil {
		_ = req.Error("500", "failed to marshal zone list", nil)
		return
	}
	_ = req.Respond(data)
}

// zoneInfoRequest names a single zone to introspect.
type zoneInfoRequest struct {
	Name string `json:"name"`
}

func (m *Manager) handleZoneInfo(req micro.Request) {
	_, span := m.span(req, "fanctlmgr.handleZoneInfo")
	defer span.End()

	var q zoneInfoRequest
	if err := json.Unmarshal(req.Data(), &q); err != nil {
		_ = req.Error("400", "invalid request body", nil)
		return
	}

	m.mu.RLock()
	engine := m.engine
	m.mu.RUnlock()

	zone, err := engine.Zone(q.Name)
	if err != nil {
		_ = req.Error("404", ErrUnknownZone.Error(), nil)
		return
	}

	data, err := json.Marshal(zoneSnapshot{Name: q.Name, Target: zone.Target(), Floor: zone.Floor()})
	if err != nil {
		_ = req.Error("500", "failed to marshal zone info", nil)
		return
	}
	_ = req.Respond(data)
}

func (m *Manager) handleReload(req micro.Request) {
	ctx, span := m.span(req, "fanctlmgr.handleReload")
	defer span.End()

	if err := m.reload(ctx); err != nil {
		_ = req.Error("500", err.Error(), nil)
		return
	}
	_ = req.Respond([]byte(`{"status":"reloaded"}`))
}

func (m *Manager) handleDump(req micro.Request) {
	_, span := m.span(req, "fanctlmgr.handleDump")
	defer span.End()

	if err := m.dumpDebugState(); err != nil {
		_ = req.Error("500", err.Error(), nil)
		return
	}
	_ = req.Respond([]byte(`{"status":"dumped","path":"` + m.config.dumpPath + `"}`))
}
