// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-stream configuration.
type Config struct {
	Render  RenderConfig  `toml:"render" json:"render" yaml:"render"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Log     LogConfig     `toml:"log" json:"log" yaml:"log"`
	Server  ServerConfig  `toml:"server" json:"server" yaml:"server"`
}

// RenderConfig controls reveal pacing.
type RenderConfig struct {
	// Speed is a preset (slow, normal, fast, instant), "custom" or "adaptive"
	Speed string `toml:"speed" json:"speed" yaml:"speed"`
	// CustomDelayMs is the per-token delay used when Speed is "custom"
	CustomDelayMs int `toml:"custom_delay_ms" json:"custom_delay_ms" yaml:"custom_delay_ms"`
	// FrameIntervalMs is the tick period of timer-driven front ends
	FrameIntervalMs int `toml:"frame_interval_ms" json:"frame_interval_ms" yaml:"frame_interval_ms"`
	// Sound enables the typing cue
	Sound bool `toml:"sound" json:"sound" yaml:"sound"`
	// SoundPerSecond caps how often the cue can play
	SoundPerSecond float64 `toml:"sound_per_second" json:"sound_per_second" yaml:"sound_per_second"`
}

// UIConfig contains terminal UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// WordWrap is the wrap column for rendered output
	WordWrap int `toml:"word_wrap" json:"word_wrap" yaml:"word_wrap"`
	// Markdown renders the finished message through glamour
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
	// ShowMetrics displays progress and tokens/sec while rendering
	ShowMetrics bool `toml:"show_metrics" json:"show_metrics" yaml:"show_metrics"`
}

// StorageConfig controls the render history database.
type StorageConfig struct {
	Path    string `toml:"path" json:"path" yaml:"path"`
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level" yaml:"level"`
	// Format is "text" or "json"
	Format string `toml:"format" json:"format" yaml:"format"`
}

// ServerConfig controls the WebSocket render server.
type ServerConfig struct {
	Addr           string `toml:"addr" json:"addr" yaml:"addr"`
	AllowAnyOrigin bool   `toml:"allow_any_origin" json:"allow_any_origin" yaml:"allow_any_origin"`
}

// Speed names accepted in addition to the render presets.
const (
	SpeedCustom   = "custom"
	SpeedAdaptive = "adaptive"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Speed:           string(render.SpeedNormal),
			FrameIntervalMs: int(render.DefaultFrameInterval / time.Millisecond),
			Sound:           false,
			SoundPerSecond:  20,
		},
		UI: UIConfig{
			Theme:       "auto",
			WordWrap:    80,
			Markdown:    true,
			ShowMetrics: true,
		},
		Storage: StorageConfig{
			Path:    "~/.rigrun-stream/history.db",
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun-stream configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-stream"), nil
}

// SearchPaths returns the config files Load tries, in order.
func SearchPaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
	}, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the first config file found in SearchPaths,
// falling back to defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	paths, err := SearchPaths()
	if err == nil {
		for _, path := range paths {
			if _, statErr := os.Stat(path); statErr == nil {
				return LoadFromPath(path)
			}
		}
	}
	return finish(Default())
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything other than .json, .yaml or .yml is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadYAML decodes a YAML file over cfg.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode YAML file: %w", err)
	}
	return nil
}

func decodeFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(cfg, path)
	case ".yaml", ".yml":
		return LoadYAML(cfg, path)
	default:
		return LoadTOML(cfg, path)
	}
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg as TOML with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# rigrun-stream configuration file\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	speed := strings.ToLower(c.Render.Speed)
	if speed != SpeedCustom && speed != SpeedAdaptive {
		if _, err := render.ParseSpeed(speed); err != nil {
			errs = append(errs, ValidationError{
				Field:   "render.speed",
				Message: fmt.Sprintf("invalid speed '%s', must be one of: slow, normal, fast, instant, custom, adaptive", c.Render.Speed),
			})
		}
	}
	if c.Render.CustomDelayMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "render.custom_delay_ms",
			Message: "delay cannot be negative",
		})
	}
	if c.Render.FrameIntervalMs < 1 || c.Render.FrameIntervalMs > 1000 {
		errs = append(errs, ValidationError{
			Field:   "render.frame_interval_ms",
			Message: fmt.Sprintf("interval %d out of range 1-1000", c.Render.FrameIntervalMs),
		})
	}
	if c.Render.SoundPerSecond <= 0 {
		errs = append(errs, ValidationError{
			Field:   "render.sound_per_second",
			Message: "rate must be positive",
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if c.UI.WordWrap < 20 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: "word wrap must be at least 20 columns",
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be text or json", c.Log.Format),
		})
	}

	if c.Storage.Enabled && c.Storage.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "storage.path",
			Message: "path is required when storage is enabled",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-value fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Render.Speed == "" {
		c.Render.Speed = defaults.Render.Speed
	}
	if c.Render.FrameIntervalMs == 0 {
		c.Render.FrameIntervalMs = defaults.Render.FrameIntervalMs
	}
	if c.Render.SoundPerSecond == 0 {
		c.Render.SoundPerSecond = defaults.Render.SoundPerSecond
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaults.Storage.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGRUN_STREAM_SPEED: overrides render.speed
//   - RIGRUN_STREAM_DELAY_MS: sets render.custom_delay_ms and selects custom speed
//   - RIGRUN_STREAM_SOUND: "1" or "true" enables the typing cue
//   - RIGRUN_STREAM_LOG_LEVEL: overrides log.level
//   - RIGRUN_STREAM_DB: overrides storage.path
//   - RIGRUN_STREAM_ADDR: overrides server.addr
func (c *Config) ApplyEnvOverrides() {
	if speed := os.Getenv("RIGRUN_STREAM_SPEED"); speed != "" {
		c.Render.Speed = speed
	}
	if delay := os.Getenv("RIGRUN_STREAM_DELAY_MS"); delay != "" {
		if ms, err := strconv.Atoi(delay); err == nil {
			c.Render.Speed = SpeedCustom
			c.Render.CustomDelayMs = ms
		}
	}
	if sound := os.Getenv("RIGRUN_STREAM_SOUND"); sound != "" {
		c.Render.Sound = sound == "1" || strings.ToLower(sound) == "true"
	}
	if level := os.Getenv("RIGRUN_STREAM_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if db := os.Getenv("RIGRUN_STREAM_DB"); db != "" {
		c.Storage.Path = db
	}
	if addr := os.Getenv("RIGRUN_STREAM_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// =============================================================================
// RENDER HELPERS
// =============================================================================

// Adaptive reports whether the speed should be derived from content.
func (c *Config) Adaptive() bool {
	return strings.EqualFold(c.Render.Speed, SpeedAdaptive)
}

// SpeedConfig converts the render section into a render.SpeedConfig.
// Adaptive speed resolves to the normal preset; callers that support it
// use render.AdaptiveSpeed on the content instead.
func (c *Config) SpeedConfig() (render.SpeedConfig, error) {
	switch speed := strings.ToLower(c.Render.Speed); speed {
	case SpeedCustom:
		return render.CustomSpeed(time.Duration(c.Render.CustomDelayMs) * time.Millisecond), nil
	case SpeedAdaptive, "":
		return render.DefaultSpeed(), nil
	default:
		preset, err := render.ParseSpeed(speed)
		if err != nil {
			return render.SpeedConfig{}, err
		}
		return render.PresetSpeed(preset), nil
	}
}

// FrameInterval returns the configured frame period.
func (c *Config) FrameInterval() time.Duration {
	if c.Render.FrameIntervalMs <= 0 {
		return render.DefaultFrameInterval
	}
	return time.Duration(c.Render.FrameIntervalMs) * time.Millisecond
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
