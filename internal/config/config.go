// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the hud.
//
// Configuration lives in ~/.hud/config.toml with sensible defaults and
// environment variable overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/morganforge/hud-tui/internal/model"
	"github.com/morganforge/hud-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete hud configuration.
type Config struct {
	// Daemon connection.
	Daemon DaemonConfig `toml:"daemon"`

	// HUD window sizing.
	HUD HUDConfig `toml:"hud"`

	// Streaming behavior.
	Stream StreamConfig `toml:"stream"`

	// Local storage (offline backend and logs).
	Storage StorageConfig `toml:"storage"`
}

// DaemonConfig points at the native daemon.
type DaemonConfig struct {
	// URL is the daemon base URL.
	URL string `toml:"url"`
	// Offline forces the local SQLite backend instead of the daemon.
	Offline bool `toml:"offline"`
}

// HUDConfig selects the window dimensions.
type HUDConfig struct {
	// Size is a preset name: "small", "normal", or "large".
	Size string `toml:"size"`
}

// StreamConfig tunes reply streaming.
type StreamConfig struct {
	// IdleTimeout bounds the gap between streamed chunks; a stalled stream
	// is terminated when it elapses. Zero disables the bound.
	IdleTimeout Duration `toml:"idle_timeout"`
}

// StorageConfig locates local files.
type StorageConfig struct {
	// DBPath is the SQLite database for the offline backend.
	DBPath string `toml:"db_path"`
	// LogFile receives diagnostic logs. The TUI owns the terminal, so logs
	// never go to stderr while a window is running.
	LogFile string `toml:"log_file"`
}

// Duration wraps time.Duration for TOML text encoding ("30s", "2m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// SIZE PRESETS
// =============================================================================

// Size preset names.
const (
	SizeSmall  = "small"
	SizeNormal = "normal"
	SizeLarge  = "large"
)

// presets are the window dimensions for each size name.
var presets = map[string]model.HUDDimensions{
	SizeSmall:  {ChatWidth: 400, ChatMaxHeight: 250, LoginWidth: 300},
	SizeNormal: {ChatWidth: 500, ChatMaxHeight: 350, LoginWidth: 400},
	SizeLarge:  {ChatWidth: 600, ChatMaxHeight: 450, LoginWidth: 500},
}

// Dimensions resolves the configured size preset. Unknown names fall back
// to normal.
func (c *Config) Dimensions() model.HUDDimensions {
	if dims, ok := presets[strings.ToLower(c.HUD.Size)]; ok {
		return dims
	}
	return presets[SizeNormal]
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Daemon: DaemonConfig{URL: "http://127.0.0.1:7433"},
		HUD:    HUDConfig{Size: SizeNormal},
		Storage: StorageConfig{
			DBPath:  filepath.Join(dir, "hud.db"),
			LogFile: filepath.Join(dir, "hud.log"),
		},
	}
}

// Dir returns the hud configuration directory (~/.hud).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".hud"), nil
}

// Path returns the configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING AND SAVING
// =============================================================================

// Load reads the configuration file, applies environment overrides, and
// validates. A missing file yields defaults with overrides applied.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies HUD_* environment variables over the loaded
// values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("HUD_DAEMON_URL"); v != "" {
		c.Daemon.URL = v
	}
	if v := os.Getenv("HUD_OFFLINE"); v != "" {
		c.Daemon.Offline = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HUD_SIZE"); v != "" {
		c.HUD.Size = v
	}
	if v := os.Getenv("HUD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("HUD_LOG_FILE"); v != "" {
		c.Storage.LogFile = v
	}
	if v := os.Getenv("HUD_STREAM_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Stream.IdleTimeout = Duration{d}
		}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Daemon.URL == "" && !c.Daemon.Offline {
		return fmt.Errorf("daemon.url must be set unless daemon.offline is true")
	}
	if c.HUD.Size != "" {
		if _, ok := presets[strings.ToLower(c.HUD.Size)]; !ok {
			return fmt.Errorf("hud.size %q is not one of small, normal, large", c.HUD.Size)
		}
	}
	if c.Stream.IdleTimeout.Duration < 0 {
		return fmt.Errorf("stream.idle_timeout cannot be negative")
	}
	return nil
}

// Save writes the configuration to its default path atomically.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration to a specific path atomically.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
