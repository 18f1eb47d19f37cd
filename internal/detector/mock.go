package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns either a fixed set of poses or a scripted sequence, one entry per call.
type MockDetector struct {
	mu     sync.Mutex
	poses  []Pose
	script [][]Pose
	calls  int
	err    error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPoses sets the poses returned by every Detect call.
func (m *MockDetector) SetPoses(poses []Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poses = poses
	m.script = nil
}

// SetScript makes Detect return script[n] on its n-th call. Calls past the end
// of the script return no poses. A nil entry simulates a frame with nobody in it.
func (m *MockDetector) SetScript(script [][]Pose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = script
	m.poses = nil
	m.calls = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured poses or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.calls
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if m.script != nil {
		if n >= len(m.script) {
			return nil, nil
		}
		return m.script[n], nil
	}
	return m.poses, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// side describes one half of a side-on skeleton; the right half is drawn
// slightly offset so the two halves do not coincide.
type side struct {
	shoulder, wrist, hip, knee, ankle, foot Point2D
}

func buildPose(s side) Pose {
	const offset = 0.02
	shift := func(p Point2D) Point2D { return Point2D{X: p.X + offset, Y: p.Y} }

	return Pose{
		Score: 0.95,
		Joints: map[Joint]Point2D{
			LeftShoulder:   s.shoulder,
			LeftWrist:      s.wrist,
			LeftHip:        s.hip,
			LeftKnee:       s.knee,
			LeftAnkle:      s.ankle,
			LeftFootIndex:  s.foot,
			RightShoulder:  shift(s.shoulder),
			RightWrist:     shift(s.wrist),
			RightHip:       shift(s.hip),
			RightKnee:      shift(s.knee),
			RightAnkle:     shift(s.ankle),
			RightFootIndex: shift(s.foot),
		},
	}
}

// NeutralPose returns a person standing upright with arms hanging down.
// It matches none of the flip postures.
func NeutralPose() Pose {
	return buildPose(side{
		shoulder: Point2D{X: 0.50, Y: 0.30},
		wrist:    Point2D{X: 0.50, Y: 0.55},
		hip:      Point2D{X: 0.50, Y: 0.50},
		knee:     Point2D{X: 0.50, Y: 0.70},
		ankle:    Point2D{X: 0.50, Y: 0.90},
		foot:     Point2D{X: 0.55, Y: 0.92},
	})
}

// LaunchPose returns the upright launch stance: legs and torso straight,
// arms raised forward to shoulder height (arm angle 90 degrees).
func LaunchPose() Pose {
	return buildPose(side{
		shoulder: Point2D{X: 0.50, Y: 0.30},
		wrist:    Point2D{X: 0.65, Y: 0.30},
		hip:      Point2D{X: 0.50, Y: 0.50},
		knee:     Point2D{X: 0.50, Y: 0.70},
		ankle:    Point2D{X: 0.50, Y: 0.90},
		foot:     Point2D{X: 0.55, Y: 0.92},
	})
}

// TuckPose returns a mid-air tuck: knees pulled up to the chest, feet lifted
// well off the floor but still below the hips.
func TuckPose() Pose {
	return buildPose(side{
		shoulder: Point2D{X: 0.50, Y: 0.30},
		wrist:    Point2D{X: 0.60, Y: 0.30},
		hip:      Point2D{X: 0.50, Y: 0.45},
		knee:     Point2D{X: 0.60, Y: 0.35},
		ankle:    Point2D{X: 0.55, Y: 0.50},
		foot:     Point2D{X: 0.50, Y: 0.52},
	})
}

// InvertedPose returns the upside-down phase of the rotation, ankles above hips.
func InvertedPose() Pose {
	return buildPose(side{
		shoulder: Point2D{X: 0.50, Y: 0.50},
		wrist:    Point2D{X: 0.45, Y: 0.60},
		hip:      Point2D{X: 0.50, Y: 0.40},
		knee:     Point2D{X: 0.45, Y: 0.25},
		ankle:    Point2D{X: 0.50, Y: 0.15},
		foot:     Point2D{X: 0.52, Y: 0.12},
	})
}
