// SPDX-License-Identifier: BSD-3-Clause

// Package recorder implements the flight recorder (C14): a ring-buffered
// debug log shared by the control and monitor managers, dumped on SIGUSR1
// for field data capture.
package recorder

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxEntriesPerID is the maximum number of ring-buffered entries kept per
// recorder id, matching the data model's 40-entry-per-id cap.
const MaxEntriesPerID = 40

// Entry is one ring-buffered log line.
type Entry struct {
	TimestampUS int64
	ID          string
	Message     string
}

// FlightRecorder is a ring-buffered log kept per id (one id per logical
// subsystem: a fan, a tach sensor, the rule engine), merged by timestamp
// when dumped for FFDC.
type FlightRecorder struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// New returns an empty flight recorder.
func New() *FlightRecorder {
	return &FlightRecorder{entries: make(map[string][]Entry)}
}

// Log appends a message under id, evicting the oldest entry once the
// per-id cap is exceeded.
func (r *FlightRecorder) Log(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{TimestampUS: time.Now().UnixMicro(), ID: id, Message: message}
	entries := append(r.entries[id], entry)
	if len(entries) > MaxEntriesPerID {
		entries = entries[len(entries)-MaxEntriesPerID:]
	}
	r.entries[id] = entries
}

// Dump merges every id's entries by timestamp and writes them to path,
// intended for a SIGUSR1-triggered FFDC dump.
func (r *FlightRecorder) Dump(path string) error {
	r.mu.Lock()
	var all []Entry
	for _, entries := range r.entries {
		all = append(all, entries...)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].TimestampUS < all[j].TimestampUS })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating flight recorder dump: %w", err)
	}
	defer f.Close()

	for _, e := range all {
		if _, err := fmt.Fprintf(f, "%d [%s] %s\n", e.TimestampUS, e.ID, e.Message); err != nil {
			return fmt.Errorf("writing flight recorder dump: %w", err)
		}
	}
	return nil
}

// FFDCPackage is the result of a temp-file FFDC packaging request: a
// unique dump ID plus the path of the packaged file.
type FFDCPackage struct {
	ID   string
	Path string
}

// CreateFFDC packages the current flight recorder state into a single temp
// file identified by a fresh UUID.
func (r *FlightRecorder) CreateFFDC(dir string) (FFDCPackage, error) {
	id := uuid.NewString()
	path := fmt.Sprintf("%s/fand-ffdc-%s.log", dir, id)
	if err := r.Dump(path); err != nil {
		return FFDCPackage{}, err
	}
	return FFDCPackage{ID: id, Path: path}, nil
}
