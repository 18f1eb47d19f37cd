package flip

import (
	"fmt"
	"math"
)

// Config holds the posture thresholds and timing fractions used by the detector.
// Angles are in degrees, intervals in seconds of video.
type Config struct {
	// Launch stance (Idle -> Liftoff): arms raised, torso and legs straight.
	LaunchArmMax   float64 `json:"launch_arm_max"`   // wrist-shoulder-hip angle must be below this
	LaunchTorsoMin float64 `json:"launch_torso_min"` // shoulder-hip-knee angle must be above this
	LaunchLegMin   float64 `json:"launch_leg_min"`   // hip-knee-ankle angle must be above this

	// Tuck (Liftoff -> Airborne): arms in, knees and hips folded.
	TuckArmMax   float64 `json:"tuck_arm_max"`
	TuckLegMax   float64 `json:"tuck_leg_max"`
	TuckTorsoMax float64 `json:"tuck_torso_max"`

	// MinIntervalSeconds sets the shortest launch-to-anything window and the
	// look-back used to measure foot lift.
	MinIntervalSeconds float64 `json:"min_interval_seconds"`

	// MaxIntervalSeconds is the longest a launch may wait for its landing
	// posture before the attempt is discarded.
	MaxIntervalSeconds float64 `json:"max_interval_seconds"`

	// StrictGeometry fails the whole run on a zero-length angle ray. When false
	// such an entry fails the angle thresholds (launch and tuck), as a NaN
	// angle would, and is counted in Result.Degenerate. The raw-coordinate
	// checks still apply to it: it can confirm a landing and record a foot lift.
	StrictGeometry bool `json:"strict_geometry"`
}

// DefaultConfig returns the thresholds the detector was tuned with.
func DefaultConfig() Config {
	return Config{
		LaunchArmMax:       110,
		LaunchTorsoMin:     150,
		LaunchLegMin:       150,
		TuckArmMax:         100,
		TuckLegMax:         130,
		TuckTorsoMax:       140,
		MinIntervalSeconds: 5.0 / 30.0,
		MaxIntervalSeconds: 1.0,
	}
}

// Validate checks that every threshold is a usable number.
func (c Config) Validate() error {
	angles := []struct {
		name  string
		value float64
	}{
		{"launch arm max", c.LaunchArmMax},
		{"launch torso min", c.LaunchTorsoMin},
		{"launch leg min", c.LaunchLegMin},
		{"tuck arm max", c.TuckArmMax},
		{"tuck leg max", c.TuckLegMax},
		{"tuck torso max", c.TuckTorsoMax},
	}
	for _, a := range angles {
		if math.IsNaN(a.value) || a.value < 0 || a.value > 180 {
			return fmt.Errorf("%w: %s %v outside [0, 180]", ErrInvalidConfig, a.name, a.value)
		}
	}

	if !finite(c.MinIntervalSeconds) || c.MinIntervalSeconds < 0 {
		return fmt.Errorf("%w: min interval %v", ErrInvalidConfig, c.MinIntervalSeconds)
	}
	if !finite(c.MaxIntervalSeconds) || c.MaxIntervalSeconds <= 0 {
		return fmt.Errorf("%w: max interval %v", ErrInvalidConfig, c.MaxIntervalSeconds)
	}
	if c.MaxIntervalSeconds < c.MinIntervalSeconds {
		return fmt.Errorf("%w: max interval %v below min interval %v",
			ErrInvalidConfig, c.MaxIntervalSeconds, c.MinIntervalSeconds)
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
