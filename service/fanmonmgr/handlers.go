// SPDX-License-Identifier: BSD-3-Clause

package fanmonmgr

import (
	"encoding/json"

	"github.com/nats-io/nats.go/micro"
)

func (m *Manager) handleHealth(req micro.Request) {
	_, span := m.span(req, "fanmonmgr.handleHealth")
	defer span.End()

	m.mu.RLock()
	monitor := m.monitor
	m.mu.RUnlock()

	if monitor == nil {
		_ = req.Error("503", "monitor not yet initialized", nil)
		return
	}

	data, err := json.Marshal(monitor.Health())
	if err != nil {
		_ = req.Error("500", "failed to marshal health snapshot", nil)
		return
	}
	_ = req.Respond(data)
}

func (m *Manager) handleDump(req micro.Request) {
	_, span := m.span(req, "fanmonmgr.handleDump")
	defer span.End()

	if err := m.dumpDebugState(); err != nil {
		_ = req.Error("500", err.Error(), nil)
		return
	}
	_ = req.Respond([]byte(`{"status":"dumped","path":"` + m.config.dumpPath + `"}`))
}
