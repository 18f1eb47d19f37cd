package flip

import (
	"math"

	"github.com/ayusman/backflip/internal/detector"
)

// limb names the joints of one body side.
type limb struct {
	name                                    string
	shoulder, wrist, hip, knee, ankle, foot detector.Joint
}

var (
	leftLimb = limb{
		name:     "left",
		shoulder: detector.LeftShoulder,
		wrist:    detector.LeftWrist,
		hip:      detector.LeftHip,
		knee:     detector.LeftKnee,
		ankle:    detector.LeftAnkle,
		foot:     detector.LeftFootIndex,
	}
	rightLimb = limb{
		name:     "right",
		shoulder: detector.RightShoulder,
		wrist:    detector.RightWrist,
		hip:      detector.RightHip,
		knee:     detector.RightKnee,
		ankle:    detector.RightAnkle,
		foot:     detector.RightFootIndex,
	}
)

// sideReading is everything the state machine needs from one body side of one pose.
type sideReading struct {
	arm   float64 // wrist-shoulder-hip
	leg   float64 // hip-knee-ankle
	torso float64 // shoulder-hip-knee

	// degenerate names the first angle that could not be measured, if any.
	degenerate string

	wristForward  bool // wrist.X > shoulder.X
	hipAboveKnee  bool
	ankleAboveHip bool

	footY float64
	shin  float64 // vertical ankle-knee span
}

func (s sideReading) measured() bool {
	return s.degenerate == ""
}

// reading holds both sides of one pose.
type reading struct {
	left, right sideReading
}

func (r reading) both(fn func(sideReading) bool) bool {
	return fn(r.left) && fn(r.right)
}

func (r reading) degenerate() string {
	if !r.left.measured() {
		return r.left.degenerate
	}
	return r.right.degenerate
}

// readSide measures one side. The pose must already have passed Sequence.Validate.
func readSide(p detector.Pose, l limb) sideReading {
	shoulder := p.Joints[l.shoulder]
	wrist := p.Joints[l.wrist]
	hip := p.Joints[l.hip]
	knee := p.Joints[l.knee]
	ankle := p.Joints[l.ankle]
	foot := p.Joints[l.foot]

	s := sideReading{
		wristForward:  wrist.X > shoulder.X,
		hipAboveKnee:  hip.Y < knee.Y,
		ankleAboveHip: ankle.Y < hip.Y,
		footY:         foot.Y,
		shin:          math.Abs(ankle.Y - knee.Y),
	}

	var err error
	if s.arm, err = Angle(wrist, shoulder, hip); err != nil && s.degenerate == "" {
		s.degenerate = l.name + " arm"
	}
	if s.leg, err = Angle(hip, knee, ankle); err != nil && s.degenerate == "" {
		s.degenerate = l.name + " leg"
	}
	if s.torso, err = Angle(shoulder, hip, knee); err != nil && s.degenerate == "" {
		s.degenerate = l.name + " torso"
	}

	return s
}

func readPose(p detector.Pose) reading {
	return reading{
		left:  readSide(p, leftLimb),
		right: readSide(p, rightLimb),
	}
}

// launch reports the upright, arms-forward stance that starts an attempt.
func (c Config) launch(s sideReading) bool {
	return s.measured() &&
		s.arm < c.LaunchArmMax &&
		s.torso > c.LaunchTorsoMin &&
		s.leg > c.LaunchLegMin &&
		s.wristForward &&
		s.hipAboveKnee
}

// tuck reports the folded mid-air posture.
func (c Config) tuck(s sideReading) bool {
	return s.measured() &&
		s.arm < c.TuckArmMax &&
		s.leg < c.TuckLegMax &&
		s.torso < c.TuckTorsoMax
}

// inverted reports ankles above hips. It uses raw coordinates only.
func inverted(s sideReading) bool {
	return s.ankleAboveHip
}
