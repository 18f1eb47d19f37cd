package flip

import (
	"errors"
	"fmt"

	"github.com/ayusman/backflip/internal/detector"
)

var (
	// ErrDegenerateGeometry is returned when an angle ray has zero length.
	ErrDegenerateGeometry = errors.New("degenerate geometry: zero-length ray")

	// ErrMalformedFrame is wrapped by MalformedFrameError.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidTiming is returned for a non-positive or non-finite frame rate.
	ErrInvalidTiming = errors.New("invalid timing")

	// ErrInvalidSequence is returned when poses and original indices disagree.
	ErrInvalidSequence = errors.New("invalid sequence")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// MalformedFrameError reports a pose that lacks joints the detector needs.
type MalformedFrameError struct {
	Position int              // position in the sequence
	Frame    int              // original frame index
	Missing  []detector.Joint // joints not present
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame %d (entry %d): missing %v", e.Frame, e.Position, e.Missing)
}

// Unwrap lets errors.Is match ErrMalformedFrame.
func (e *MalformedFrameError) Unwrap() error {
	return ErrMalformedFrame
}

// DegenerateFrameError reports a zero-length ray when Config.StrictGeometry is set.
type DegenerateFrameError struct {
	Position int
	Frame    int
	Angle    string // which angle could not be measured, e.g. "left arm"
}

func (e *DegenerateFrameError) Error() string {
	return fmt.Sprintf("frame %d (entry %d): %s angle: %v", e.Frame, e.Position, e.Angle, ErrDegenerateGeometry)
}

// Unwrap lets errors.Is match ErrDegenerateGeometry.
func (e *DegenerateFrameError) Unwrap() error {
	return ErrDegenerateGeometry
}
