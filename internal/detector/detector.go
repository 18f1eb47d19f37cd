package detector

import "gocv.io/x/gocv"

// Detector defines the interface for pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the detected poses, one per person.
	// Returns an empty slice if nobody is detected.
	Detect(frame *gocv.Mat) ([]Pose, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// MaxPoses is the maximum number of people to detect (default: 1).
	MaxPoses int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinPresenceConf is the minimum pose presence confidence threshold (0.0-1.0).
	MinPresenceConf float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxPoses:        1,
		MinConfidence:   0.5,
		MinPresenceConf: 0.5,
		MinTrackingConf: 0.5,
	}
}
