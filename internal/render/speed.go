// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// SPEED PRESETS
// =============================================================================

// Speed is a named reveal speed.
type Speed string

const (
	SpeedSlow    Speed = "slow"
	SpeedNormal  Speed = "normal"
	SpeedFast    Speed = "fast"
	SpeedInstant Speed = "instant"
)

var presetDelays = map[Speed]time.Duration{
	SpeedSlow:    48 * time.Millisecond,
	SpeedNormal:  16 * time.Millisecond,
	SpeedFast:    8 * time.Millisecond,
	SpeedInstant: 0,
}

// Delay returns the per-unit delay of the preset.
func (s Speed) Delay() (time.Duration, error) {
	d, ok := presetDelays[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpeed, string(s))
	}
	return d, nil
}

// ParseSpeed parses a preset name, case-insensitively.
func ParseSpeed(name string) (Speed, error) {
	s := Speed(strings.ToLower(strings.TrimSpace(name)))
	if _, err := s.Delay(); err != nil {
		return "", err
	}
	return s, nil
}

// =============================================================================
// SPEED CONFIG
// =============================================================================

// SpeedConfig selects either a preset or an explicit per-token delay.
type SpeedConfig struct {
	Preset      Speed
	CustomDelay time.Duration
	Custom      bool
}

// PresetSpeed returns a config for a named preset.
func PresetSpeed(s Speed) SpeedConfig {
	return SpeedConfig{Preset: s}
}

// CustomSpeed returns a config with an explicit per-token delay.
func CustomSpeed(d time.Duration) SpeedConfig {
	return SpeedConfig{CustomDelay: d, Custom: true}
}

// DefaultSpeed is the normal preset.
func DefaultSpeed() SpeedConfig {
	return PresetSpeed(SpeedNormal)
}

// Delay resolves the effective per-token delay.
func (c SpeedConfig) Delay() (time.Duration, error) {
	if c.Custom {
		if c.CustomDelay < 0 {
			return 0, fmt.Errorf("%w: %v", ErrNegativeDelay, c.CustomDelay)
		}
		return c.CustomDelay, nil
	}
	if c.Preset == "" {
		return presetDelays[SpeedNormal], nil
	}
	return c.Preset.Delay()
}

// String describes the config for logs.
func (c SpeedConfig) String() string {
	if c.Custom {
		return "custom(" + c.CustomDelay.String() + ")"
	}
	if c.Preset == "" {
		return string(SpeedNormal)
	}
	return string(c.Preset)
}

// =============================================================================
// ADAPTIVE SPEED
// =============================================================================

// Adaptive is a speed recommendation derived from content.
type Adaptive struct {
	Delay time.Duration
	Mode  RenderMode
}

// SpeedConfig converts the recommendation into a config.
func (a Adaptive) SpeedConfig() SpeedConfig {
	return CustomSpeed(a.Delay)
}

// AdaptiveSpeed recommends a delay and dominant mode for content.
//
// The delay is the content-length weighted average of segment delays. The
// mode is the canonical mode of the segment type covering the most content;
// ties go to the type listed first in the fixed type order. Empty content
// gets the normal preset in character mode.
func AdaptiveSpeed(content string) Adaptive {
	return AdaptiveSpeedOf(Analyze(content))
}

// AdaptiveSpeedOf is AdaptiveSpeed over already analyzed segments.
func AdaptiveSpeedOf(segments []Segment) Adaptive {
	var totalLen int
	var weighted float64
	byType := make(map[SegmentType]int, len(segmentOrder))

	for _, seg := range segments {
		n := utf8.RuneCountInString(seg.Content)
		totalLen += n
		weighted += float64(seg.Delay) * float64(n)
		byType[seg.Type] += n
	}

	if totalLen == 0 {
		return Adaptive{Delay: presetDelays[SpeedNormal], Mode: ModeCharacter}
	}

	dominant := SegmentText
	best := -1
	for _, t := range segmentOrder {
		if byType[t] > best {
			best = byType[t]
			dominant = t
		}
	}

	return Adaptive{
		Delay: time.Duration(weighted / float64(totalLen)),
		Mode:  dominant.CanonicalMode(),
	}
}
