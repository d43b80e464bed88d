// SPDX-License-Identifier: BSD-3-Clause

package fanmon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSysfsFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fake sysfs file %s: %v", path, err)
	}
	return path
}

func TestHwmonTachReaderReadsInputAndTarget(t *testing.T) {
	dir := t.TempDir()
	input := writeSysfsFile(t, dir, "fan1_input", "4123")
	target := writeSysfsFile(t, dir, "fan1_target", "4000")

	r := NewHwmonTachReader(map[string][]HwmonRotorPath{
		"fan0": {{InputPath: input, TargetPath: target}},
	})

	samples, err := r.ReadRotors(context.Background(), "fan0", 1)
	if err != nil {
		t.Fatalf("ReadRotors: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1", len(samples))
	}
	if samples[0].Tach != 4123 {
		t.Fatalf("Tach = %v, want 4123", samples[0].Tach)
	}
	if samples[0].Target != 4000 {
		t.Fatalf("Target = %v, want 4000", samples[0].Target)
	}
}

func TestHwmonTachReaderUnknownFRU(t *testing.T) {
	r := NewHwmonTachReader(map[string][]HwmonRotorPath{})
	if _, err := r.ReadRotors(context.Background(), "fan0", 1); !errors.Is(err, ErrUnknownFan) {
		t.Fatalf("err = %v, want ErrUnknownFan", err)
	}
}

func TestHwmonTachReaderMissingRotorMapping(t *testing.T) {
	dir := t.TempDir()
	input := writeSysfsFile(t, dir, "fan0_input", "4000")

	r := NewHwmonTachReader(map[string][]HwmonRotorPath{
		"fan0": {{InputPath: input}},
	})

	if _, err := r.ReadRotors(context.Background(), "fan0", 2); !errors.Is(err, ErrUnknownRotor) {
		t.Fatalf("err = %v, want ErrUnknownRotor", err)
	}
}
