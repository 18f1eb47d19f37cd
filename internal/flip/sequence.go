package flip

import (
	"fmt"

	"github.com/ayusman/backflip/internal/detector"
)

// Sequence is an ordered run of poses together with the position each pose
// had in the original video. Frames with no detected person are simply absent,
// so Indices may have gaps.
type Sequence struct {
	Poses   []detector.Pose
	Indices []int
}

// Append adds a pose observed at the given original frame index.
func (s *Sequence) Append(index int, pose detector.Pose) {
	s.Poses = append(s.Poses, pose)
	s.Indices = append(s.Indices, index)
}

// Len returns the number of entries.
func (s Sequence) Len() int {
	return len(s.Poses)
}

// Validate checks the structural invariants: equal lengths, non-negative and
// strictly increasing indices, and every required joint present in every pose.
func (s Sequence) Validate() error {
	if len(s.Poses) != len(s.Indices) {
		return fmt.Errorf("%w: %d poses but %d indices", ErrInvalidSequence, len(s.Poses), len(s.Indices))
	}

	for i, idx := range s.Indices {
		if idx < 0 {
			return fmt.Errorf("%w: negative index %d at entry %d", ErrInvalidSequence, idx, i)
		}
		if i > 0 && idx <= s.Indices[i-1] {
			return fmt.Errorf("%w: index %d at entry %d does not follow %d",
				ErrInvalidSequence, idx, i, s.Indices[i-1])
		}
	}

	for i, pose := range s.Poses {
		if missing := pose.Missing(detector.RequiredJoints); len(missing) > 0 {
			return &MalformedFrameError{Position: i, Frame: s.Indices[i], Missing: missing}
		}
	}

	return nil
}
