// Package config loads the JSON-backed settings segalloc's CLI commands
// share, and watches the config file for changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/orizon-lang/segalloc/internal/allocator"
	"github.com/orizon-lang/segalloc/internal/errors"
)

// ToolVersion is segalloc's own semver, checked against a Config's
// MinToolVersion constraint at Load time.
const ToolVersion = "0.1.0"

// Config is the flat, JSON-serializable settings document read by the
// segalloc watch subcommand.
type Config struct {
	// InitialPages is how many pages the allocator requests on first use.
	InitialPages int `json:"initial_pages"`
	// ZeroOnAlloc mirrors allocator.Config.ZeroOnAlloc.
	ZeroOnAlloc bool `json:"zero_on_alloc"`
	// SafeMode is the toggle for wrapping an allocator in a SafeAllocator
	// (single coarse mutex). It is loaded and kept in the Config, but
	// AllocatorConfig does not carry it and no subcommand reads it.
	SafeMode bool `json:"safe_mode"`
	// MinToolVersion is a semver constraint (e.g. ">= 0.1.0") this
	// config requires of the running binary.
	MinToolVersion string `json:"min_tool_version,omitempty"`
}

// Default returns the configuration matching allocator.DefaultConfig().
func Default() Config {
	return Config{
		InitialPages: 1,
		ZeroOnAlloc:  true,
		SafeMode:     false,
	}
}

// Load reads and validates a Config from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.InitialPages < 1 {
		return Config{}, errors.InvalidSize(int64(cfg.InitialPages), "config.initial_pages")
	}

	if err := cfg.checkVersion(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) checkVersion() error {
	if c.MinToolVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(c.MinToolVersion)
	if err != nil {
		return fmt.Errorf("config: invalid min_tool_version constraint %q: %w", c.MinToolVersion, err)
	}

	v, err := semver.NewVersion(ToolVersion)
	if err != nil {
		return fmt.Errorf("config: invalid tool version %q: %w", ToolVersion, err)
	}

	if !constraint.Check(v) {
		return fmt.Errorf("config: segalloc %s does not satisfy min_tool_version %q", ToolVersion, c.MinToolVersion)
	}

	return nil
}

// AllocatorConfig converts this config into an allocator.Config.
func (c Config) AllocatorConfig() allocator.Config {
	cfg := allocator.DefaultConfig()
	cfg.InitialPages = c.InitialPages
	cfg.ZeroOnAlloc = c.ZeroOnAlloc

	return cfg
}
