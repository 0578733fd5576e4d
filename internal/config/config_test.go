// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-stream/internal/render"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RIGRUN_STREAM_SPEED", "RIGRUN_STREAM_DELAY_MS", "RIGRUN_STREAM_SOUND",
		"RIGRUN_STREAM_LOG_LEVEL", "RIGRUN_STREAM_DB", "RIGRUN_STREAM_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	speed, err := cfg.SpeedConfig()
	require.NoError(t, err)
	require.Equal(t, render.DefaultSpeed(), speed)
	require.Equal(t, 16*time.Millisecond, cfg.FrameInterval())
}

func TestLoadFromPath_Formats(t *testing.T) {
	clearEnv(t)
	files := map[string]string{
		"config.toml": "[render]\nspeed = \"fast\"\n\n[ui]\nword_wrap = 100\n",
		"config.json": `{"render": {"speed": "fast"}, "ui": {"word_wrap": 100}}`,
		"config.yaml": "render:\n  speed: fast\nui:\n  word_wrap: 100\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadFromPath(writeFile(t, name, content))
			require.NoError(t, err)
			require.Equal(t, "fast", cfg.Render.Speed)
			require.Equal(t, 100, cfg.UI.WordWrap)
			// Unset keys keep their defaults.
			require.True(t, cfg.UI.Markdown)
			require.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
		})
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromPath(writeFile(t, "config.toml", "[render]\nspeed = \"warp\"\nframe_interval_ms = 5000\n"))
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 2)
	require.Equal(t, "render.speed", verrs[0].Field)
	require.Equal(t, "render.frame_interval_ms", verrs[1].Field)
}

func TestLoadFromPath_Malformed(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromPath(writeFile(t, "config.toml", "[render\n"))
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIGRUN_STREAM_DELAY_MS", "5")
	t.Setenv("RIGRUN_STREAM_SOUND", "true")
	t.Setenv("RIGRUN_STREAM_DB", "/tmp/x.db")
	t.Setenv("RIGRUN_STREAM_ADDR", ":9000")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	require.Equal(t, SpeedCustom, cfg.Render.Speed)
	require.True(t, cfg.Render.Sound)
	require.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	require.Equal(t, ":9000", cfg.Server.Addr)

	speed, err := cfg.SpeedConfig()
	require.NoError(t, err)
	delay, err := speed.Delay()
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, delay)
}

func TestSpeedConfig_Adaptive(t *testing.T) {
	cfg := Default()
	cfg.Render.Speed = "Adaptive"
	require.True(t, cfg.Adaptive())
	require.NoError(t, cfg.Validate())

	speed, err := cfg.SpeedConfig()
	require.NoError(t, err)
	require.Equal(t, render.DefaultSpeed(), speed)
}

func TestSpeedConfig_Instant(t *testing.T) {
	cfg := Default()
	cfg.Render.Speed = "instant"
	speed, err := cfg.SpeedConfig()
	require.NoError(t, err)
	require.Equal(t, render.SpeedInstant, speed.Preset)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Render.CustomDelayMs = -1
	cfg.UI.Theme = "neon"
	cfg.UI.WordWrap = 5
	cfg.Log.Level = "trace"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 5)
	require.Contains(t, err.Error(), "ui.theme")
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	cfg := Default()
	cfg.Render.Speed = "slow"
	cfg.UI.Markdown = false

	require.NoError(t, SaveTOML(cfg, path))
	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestLoad_UsesHomeConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".rigrun-stream")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}
