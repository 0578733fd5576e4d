// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// rigrun-stream.
//
// Supports TOML, JSON and YAML configuration files, with sensible defaults,
// environment variable overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - RenderConfig: reveal speed, frame interval and typing sound
//   - UIConfig: theme, word wrap and metrics display
//   - Watcher: debounced file watcher that reloads the config on change
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGRUN_STREAM_*)
//   - An explicit --config path
//   - ~/.rigrun-stream/config.toml
//   - ~/.rigrun-stream/config.json
//   - ~/.rigrun-stream/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	speed, err := cfg.SpeedConfig()
package config
