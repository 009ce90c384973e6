// Package config loads the process configuration: JSON as the primary
// source, with an environment-variable path override and an optional
// layered TOML overlay for local dev profiles.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LogConfig controls internal/telemetry.Init.
type LogConfig struct {
	Level string `json:"level"`
	Path  string `json:"path"`
}

// RelayConfig controls the relay daemon (cmd/lockstepd).
type RelayConfig struct {
	Listen        string `json:"listen"`
	MaxClients    int    `json:"maxClients"`
	MetricsListen string `json:"metricsListen"`
}

// LockstepConfig controls OrderManager tick scaling.
type LockstepConfig struct {
	NetTickScale     uint32 `json:"netTickScale"`
	SyncFrameScale   uint32 `json:"syncFrameScale"`
	ShouldUseCatchup bool   `json:"shouldUseCatchup"`
}

// Config is the top-level settings document.
type Config struct {
	Log      LogConfig      `json:"log"`
	Relay    RelayConfig    `json:"relay"`
	Lockstep LockstepConfig `json:"lockstep"`
}

// overlay is the subset of fields a TOML dev-profile is allowed to patch
// over the JSON-loaded Config. It deliberately does not cover every field —
// only the ones a developer plausibly wants to flip locally without editing
// the checked-in JSON.
type overlay struct {
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Relay struct {
		Listen string `toml:"listen"`
	} `toml:"relay"`
}

func defaults() Config {
	return Config{
		Log:      LogConfig{Level: "info", Path: ""},
		Relay:    RelayConfig{Listen: "0.0.0.0:7788", MaxClients: 8, MetricsListen: "0.0.0.0:9090"},
		Lockstep: LockstepConfig{NetTickScale: 3, SyncFrameScale: 10, ShouldUseCatchup: true},
	}
}

// Global is the process-wide configuration, populated by Load at startup.
var Global = defaults()

// Load reads path (or LOCKSTEP_CONFIG, or the built-in default path if
// neither is set) and, if LOCKSTEP_CONFIG_OVERLAY names a readable TOML
// file, layers it on top. Missing primary files fall back to defaults()
// rather than erroring, so a first run with no config on disk still starts
// with sane values; in that case the TOML overlay is not applied.
func Load(path string) error {
	if path == "" {
		path = os.Getenv("LOCKSTEP_CONFIG")
	}
	if path == "" {
		path = "config/lockstep.json"
	}

	cfg := defaults()
	buf, err := os.ReadFile(path)
	if err != nil {
		Global = cfg
		return nil
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("config: invalid %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return err
	}

	if overlayPath := os.Getenv("LOCKSTEP_CONFIG_OVERLAY"); overlayPath != "" {
		var ov overlay
		if _, err := toml.DecodeFile(overlayPath, &ov); err == nil {
			if ov.Log.Level != "" {
				cfg.Log.Level = ov.Log.Level
			}
			if ov.Relay.Listen != "" {
				cfg.Relay.Listen = ov.Relay.Listen
			}
		}
	}

	Global = cfg
	return nil
}

// Reload re-reads path into Global, leaving the previous configuration in
// place if the new one fails to parse or validate.
func Reload(path string) error {
	return Load(path)
}

func validate(cfg *Config) error {
	if cfg.Relay.Listen == "" {
		return fmt.Errorf("config: relay.listen must not be empty")
	}
	if cfg.Lockstep.NetTickScale == 0 {
		return fmt.Errorf("config: lockstep.netTickScale must be >= 1")
	}
	if cfg.Lockstep.SyncFrameScale == 0 {
		return fmt.Errorf("config: lockstep.syncFrameScale must be >= 1")
	}
	return nil
}
