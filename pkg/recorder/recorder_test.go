// SPDX-License-Identifier: BSD-3-Clause

package recorder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogEvictsOldestBeyondCap(t *testing.T) {
	r := New()
	for i := 0; i < MaxEntriesPerID+10; i++ {
		r.Log("fan0", "tick")
	}
	if got := len(r.entries["fan0"]); got != MaxEntriesPerID {
		t.Fatalf("entries for fan0 = %d, want %d", got, MaxEntriesPerID)
	}
}

func TestDumpOrdersByTimestampAcrossIDs(t *testing.T) {
	r := New()
	r.Log("fan0", "first")
	r.Log("fan1", "second")
	r.Log("fan0", "third")

	path := filepath.Join(t.TempDir(), "dump.log")
	if err := r.Dump(path); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("dump line count = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[2], "third") {
		t.Fatalf("dump not in timestamp order: %v", lines)
	}
}

func TestCreateFFDCProducesUniqueIDs(t *testing.T) {
	r := New()
	r.Log("fan0", "fault detected")

	dir := t.TempDir()
	a, err := r.CreateFFDC(dir)
	if err != nil {
		t.Fatalf("CreateFFDC: %v", err)
	}
	b, err := r.CreateFFDC(dir)
	if err != nil {
		t.Fatalf("CreateFFDC: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("two FFDC packages got the same ID %q", a.ID)
	}
	if _, err := os.Stat(a.Path); err != nil {
		t.Fatalf("FFDC package file missing: %v", err)
	}
}
