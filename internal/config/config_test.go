package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tunables.yml")
	if err := os.WriteFile(path, []byte("tick_hz: 30\nbullet_damage: 25\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickHz != 30 {
		t.Fatalf("expected tick_hz override to apply, got %d", got.TickHz)
	}
	if got.BulletDamage != 25 {
		t.Fatalf("expected bullet_damage override to apply, got %d", got.BulletDamage)
	}
	if got.SnapshotHz != Default().SnapshotHz {
		t.Fatalf("expected unset fields to keep their default, got %d", got.SnapshotHz)
	}
}
