package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_MatchesAllocatorDefaults(t *testing.T) {
	cfg := Default()

	ac := cfg.AllocatorConfig()
	if !ac.ZeroOnAlloc {
		t.Error("AllocatorConfig().ZeroOnAlloc = false, want true to match Default()")
	}

	if ac.InitialPages != cfg.InitialPages {
		t.Errorf("AllocatorConfig().InitialPages = %d, want %d", ac.InitialPages, cfg.InitialPages)
	}
}

func writeConfig(t *testing.T, dir string, cfg Config) string {
	t.Helper()

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	path := filepath.Join(dir, "segalloc.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	return path
}

func TestLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.InitialPages = 4
	cfg.SafeMode = true

	path := writeConfig(t, dir, cfg)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.InitialPages != 4 || !got.SafeMode {
		t.Errorf("Load() = %+v, want InitialPages=4 SafeMode=true", got)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("Load of a missing file should return an error")
	}
}

func TestCheckVersion_SatisfiedConstraint(t *testing.T) {
	cfg := Default()
	cfg.MinToolVersion = "<= " + ToolVersion

	dir := t.TempDir()
	path := writeConfig(t, dir, cfg)

	if _, err := Load(path); err != nil {
		t.Fatalf("Load with a satisfied constraint should succeed: %v", err)
	}
}

func TestCheckVersion_UnsatisfiedConstraintRejected(t *testing.T) {
	cfg := Default()
	cfg.MinToolVersion = "> 99.0.0"

	dir := t.TempDir()
	path := writeConfig(t, dir, cfg)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject a config whose min_tool_version the binary cannot satisfy")
	}
}

func TestLoad_RejectsNonPositiveInitialPages(t *testing.T) {
	cfg := Default()
	cfg.InitialPages = 0

	dir := t.TempDir()
	path := writeConfig(t, dir, cfg)

	if _, err := Load(path); err == nil {
		t.Fatal("Load should reject a config with initial_pages < 1")
	}
}
