// Package detector provides pose detection interfaces and types for flip recognition.
package detector

import (
	"fmt"
	"strings"
)

// Joint identifies a body landmark. Values follow the MediaPipe Pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type Joint int

const (
	LeftShoulder   Joint = 11
	RightShoulder  Joint = 12
	LeftWrist      Joint = 15
	RightWrist     Joint = 16
	LeftHip        Joint = 23
	RightHip       Joint = 24
	LeftKnee       Joint = 25
	RightKnee      Joint = 26
	LeftAnkle      Joint = 27
	RightAnkle     Joint = 28
	LeftFootIndex  Joint = 31
	RightFootIndex Joint = 32

	// NumLandmarks is the number of landmarks MediaPipe Pose emits per person.
	NumLandmarks = 33
)

var jointNames = map[Joint]string{
	LeftShoulder:   "left_shoulder",
	RightShoulder:  "right_shoulder",
	LeftWrist:      "left_wrist",
	RightWrist:     "right_wrist",
	LeftHip:        "left_hip",
	RightHip:       "right_hip",
	LeftKnee:       "left_knee",
	RightKnee:      "right_knee",
	LeftAnkle:      "left_ankle",
	RightAnkle:     "right_ankle",
	LeftFootIndex:  "left_foot_index",
	RightFootIndex: "right_foot_index",
}

// RequiredJoints are the joints every pose must carry for flip detection.
var RequiredJoints = []Joint{
	LeftShoulder, RightShoulder,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
	LeftFootIndex, RightFootIndex,
}

// String returns the snake_case joint name, or "joint(N)" for untracked indices.
func (j Joint) String() string {
	if name, ok := jointNames[j]; ok {
		return name
	}
	return fmt.Sprintf("joint(%d)", int(j))
}

// MarshalText encodes the joint by name so JSON maps use readable keys.
func (j Joint) MarshalText() ([]byte, error) {
	if _, ok := jointNames[j]; !ok {
		return nil, fmt.Errorf("unknown joint %d", int(j))
	}
	return []byte(j.String()), nil
}

// UnmarshalText parses a joint name such as "left_knee" (case-insensitive).
func (j *Joint) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for joint, n := range jointNames {
		if n == name {
			*j = joint
			return nil
		}
	}
	return fmt.Errorf("unknown joint %q", string(text))
}

// Point2D is a normalized image coordinate. Y grows downward.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is the set of joints detected for one person in one frame.
type Pose struct {
	Joints map[Joint]Point2D `json:"joints"`
	Score  float64           `json:"score,omitempty"`
}

// Get returns the position of a joint and whether it was detected.
func (p Pose) Get(j Joint) (Point2D, bool) {
	pt, ok := p.Joints[j]
	return pt, ok
}

// Missing returns the joints from required that the pose does not carry,
// in the order given.
func (p Pose) Missing(required []Joint) []Joint {
	var missing []Joint
	for _, j := range required {
		if _, ok := p.Joints[j]; !ok {
			missing = append(missing, j)
		}
	}
	return missing
}
