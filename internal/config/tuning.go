// Package config loads the optional tuning file that overrides detector
// thresholds and live-session settings.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/backflip/internal/flip"
)

// maxFileSize bounds the tuning file.
const maxFileSize = 1 * 1024 * 1024

// Tuning is the tuning file. Every field is optional; a nil field keeps the
// built-in default.
type Tuning struct {
	// Launch stance thresholds, degrees.
	LaunchArmMax   *float64 `json:"launch_arm_max,omitempty"`
	LaunchTorsoMin *float64 `json:"launch_torso_min,omitempty"`
	LaunchLegMin   *float64 `json:"launch_leg_min,omitempty"`

	// Tuck thresholds, degrees.
	TuckArmMax   *float64 `json:"tuck_arm_max,omitempty"`
	TuckLegMax   *float64 `json:"tuck_leg_max,omitempty"`
	TuckTorsoMax *float64 `json:"tuck_torso_max,omitempty"`

	MinIntervalSeconds *float64 `json:"min_interval_seconds,omitempty"`
	MaxIntervalSeconds *float64 `json:"max_interval_seconds,omitempty"`
	StrictGeometry     *bool    `json:"strict_geometry,omitempty"`

	// Live session.
	CheckpointInterval *string  `json:"checkpoint_interval,omitempty"` // duration string like "500ms"
	MotionThreshold    *float64 `json:"motion_threshold,omitempty"`    // percent of changed pixels, 0 disables
	MotionHold         *string  `json:"motion_hold,omitempty"`

	// Hooks.
	HookTimeout *string `json:"hook_timeout,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// Load reads a tuning file. The path must end in .json and the file must be
// under 1 MiB; unknown fields are rejected.
func Load(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates tuning JSON.
func Parse(data []byte) (*Tuning, error) {
	t := &Tuning{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(t); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return t, nil
}

// Validate checks the fields that are set. Detector thresholds are checked
// together after they are applied to the defaults.
func (t *Tuning) Validate() error {
	cfg := flip.DefaultConfig()
	t.ApplyTo(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"checkpoint_interval", t.CheckpointInterval},
		{"motion_hold", t.MotionHold},
		{"hook_timeout", t.HookTimeout},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, *d.value)
		}
	}

	if t.MotionThreshold != nil && (*t.MotionThreshold < 0 || *t.MotionThreshold > 100) {
		return fmt.Errorf("motion_threshold must be in [0, 100], got %v", *t.MotionThreshold)
	}
	return nil
}

// ApplyTo overwrites the fields of cfg that t sets.
func (t *Tuning) ApplyTo(cfg *flip.Config) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.LaunchArmMax, t.LaunchArmMax)
	set(&cfg.LaunchTorsoMin, t.LaunchTorsoMin)
	set(&cfg.LaunchLegMin, t.LaunchLegMin)
	set(&cfg.TuckArmMax, t.TuckArmMax)
	set(&cfg.TuckLegMax, t.TuckLegMax)
	set(&cfg.TuckTorsoMax, t.TuckTorsoMax)
	set(&cfg.MinIntervalSeconds, t.MinIntervalSeconds)
	set(&cfg.MaxIntervalSeconds, t.MaxIntervalSeconds)
	if t.StrictGeometry != nil {
		cfg.StrictGeometry = *t.StrictGeometry
	}
}

// FlipConfig returns the defaults with t applied.
func (t *Tuning) FlipConfig() flip.Config {
	cfg := flip.DefaultConfig()
	t.ApplyTo(&cfg)
	return cfg
}

// GetCheckpointInterval returns the live re-detection interval, 500ms by default.
func (t *Tuning) GetCheckpointInterval() time.Duration {
	return durationOr(t.CheckpointInterval, 500*time.Millisecond)
}

// GetMotionThreshold returns the motion gate threshold. Zero disables gating.
func (t *Tuning) GetMotionThreshold() float64 {
	if t.MotionThreshold == nil {
		return 0
	}
	return *t.MotionThreshold
}

// GetMotionHold returns how long the motion gate stays open, 2s by default.
func (t *Tuning) GetMotionHold() time.Duration {
	return durationOr(t.MotionHold, 2*time.Second)
}

// GetHookTimeout returns the per-hook timeout, 5s by default.
func (t *Tuning) GetHookTimeout() time.Duration {
	return durationOr(t.HookTimeout, 5*time.Second)
}

func durationOr(s *string, def time.Duration) time.Duration {
	if s == nil {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
