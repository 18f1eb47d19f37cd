package detector

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestJoint_String(t *testing.T) {
	tests := []struct {
		joint Joint
		want  string
	}{
		{LeftShoulder, "left_shoulder"},
		{RightFootIndex, "right_foot_index"},
		{Joint(0), "joint(0)"},
	}

	for _, tt := range tests {
		if got := tt.joint.String(); got != tt.want {
			t.Errorf("Joint(%d).String() = %q, want %q", int(tt.joint), got, tt.want)
		}
	}
}

func TestJoint_Text(t *testing.T) {
	t.Run("round trip for every required joint", func(t *testing.T) {
		for _, j := range RequiredJoints {
			text, err := j.MarshalText()
			if err != nil {
				t.Fatalf("MarshalText(%d) error = %v", int(j), err)
			}
			var got Joint
			if err := got.UnmarshalText(text); err != nil {
				t.Fatalf("UnmarshalText(%q) error = %v", text, err)
			}
			if got != j {
				t.Errorf("round trip of %v = %v", j, got)
			}
		}
	})

	t.Run("names are case insensitive", func(t *testing.T) {
		var j Joint
		if err := j.UnmarshalText([]byte(" Left_Knee ")); err != nil {
			t.Fatalf("UnmarshalText() error = %v", err)
		}
		if j != LeftKnee {
			t.Errorf("got %v, want left_knee", j)
		}
	})

	t.Run("unknown names are rejected", func(t *testing.T) {
		var j Joint
		if err := j.UnmarshalText([]byte("nose")); err == nil {
			t.Error("expected error for untracked joint name")
		}
		if _, err := Joint(0).MarshalText(); err == nil {
			t.Error("expected error marshaling untracked joint")
		}
	})
}

func TestPose_JSON(t *testing.T) {
	in := `{"joints":{"left_hip":{"x":0.5,"y":0.4},"right_hip":{"x":0.52,"y":0.41}},"score":0.8}`

	var p Pose
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	want := Pose{
		Joints: map[Joint]Point2D{
			LeftHip:  {X: 0.5, Y: 0.4},
			RightHip: {X: 0.52, Y: 0.41},
		},
		Score: 0.8,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("decoded pose mismatch (-want +got):\n%s", diff)
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), `"left_hip":{"x":0.5,"y":0.4}`) {
		t.Errorf("encoded pose %s does not use joint names", out)
	}
}

func TestPose_Missing(t *testing.T) {
	p := LaunchPose()
	if m := p.Missing(RequiredJoints); len(m) != 0 {
		t.Errorf("LaunchPose missing %v", m)
	}

	delete(p.Joints, RightKnee)
	delete(p.Joints, LeftShoulder)

	want := []Joint{LeftShoulder, RightKnee}
	if diff := cmp.Diff(want, p.Missing(RequiredJoints)); diff != "" {
		t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
	}

	if _, ok := p.Get(RightKnee); ok {
		t.Error("Get(RightKnee) reported a deleted joint")
	}
	if pt, ok := p.Get(LeftHip); !ok || pt != (Point2D{X: 0.5, Y: 0.5}) {
		t.Errorf("Get(LeftHip) = %v, %v", pt, ok)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty poses by default", func(t *testing.T) {
		mock := NewMockDetector()
		poses, err := mock.Detect(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(poses) != 0 {
			t.Errorf("expected 0 poses, got %d", len(poses))
		}
	})

	t.Run("returns configured poses on every call", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetPoses([]Pose{TuckPose()})

		for i := 0; i < 3; i++ {
			poses, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(poses) != 1 {
				t.Fatalf("call %d: expected 1 pose, got %d", i, len(poses))
			}
		}
		if mock.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", mock.Calls())
		}
	})

	t.Run("plays a script then runs dry", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetScript([][]Pose{{NeutralPose()}, nil, {LaunchPose()}})

		want := []int{1, 0, 1, 0}
		for i, n := range want {
			poses, err := mock.Detect(nil)
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if len(poses) != n {
				t.Errorf("call %d: got %d poses, want %d", i, len(poses), n)
			}
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		_, err := mock.Detect(nil)
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		if err := NewMockDetector().Close(); err != nil {
			t.Errorf("expected nil error on Close, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = NewMockDetector()
	})
}

func TestFixturePoses(t *testing.T) {
	fixtures := map[string]Pose{
		"neutral":  NeutralPose(),
		"launch":   LaunchPose(),
		"tuck":     TuckPose(),
		"inverted": InvertedPose(),
	}

	for name, p := range fixtures {
		if m := p.Missing(RequiredJoints); len(m) != 0 {
			t.Errorf("%s pose missing %v", name, m)
		}
	}

	inv := InvertedPose()
	if !(inv.Joints[LeftAnkle].Y < inv.Joints[LeftHip].Y) {
		t.Error("inverted pose should have ankles above hips")
	}
	tuck := TuckPose()
	if !(tuck.Joints[LeftAnkle].Y > tuck.Joints[LeftHip].Y) {
		t.Error("tuck pose should keep ankles below hips")
	}
}

func TestParseResponse(t *testing.T) {
	landmarks := make([]string, NumLandmarks)
	for i := range landmarks {
		landmarks[i] = `{"x":0.1,"y":0.2,"z":-0.3,"visibility":0.9}`
	}
	landmarks[LeftKnee] = `{"x":0.4,"y":0.7,"z":0,"visibility":0.99}`

	t.Run("keeps tracked joints only", func(t *testing.T) {
		line := `{"poses":[{"landmarks":[` + strings.Join(landmarks, ",") + `],"score":0.75}]}` + "\n"

		poses, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(poses) != 1 {
			t.Fatalf("got %d poses, want 1", len(poses))
		}

		p := poses[0]
		if len(p.Joints) != len(RequiredJoints) {
			t.Errorf("got %d joints, want %d", len(p.Joints), len(RequiredJoints))
		}
		if p.Joints[LeftKnee] != (Point2D{X: 0.4, Y: 0.7}) {
			t.Errorf("left knee = %v", p.Joints[LeftKnee])
		}
		if p.Score != 0.75 {
			t.Errorf("score = %v, want 0.75", p.Score)
		}
	})

	t.Run("short landmark list leaves joints missing", func(t *testing.T) {
		line := `{"poses":[{"landmarks":[` + strings.Join(landmarks[:25], ",") + `]}]}`

		poses, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		want := []Joint{LeftAnkle, RightAnkle, LeftFootIndex, RightFootIndex, RightKnee}
		got := poses[0].Missing([]Joint{LeftAnkle, RightAnkle, LeftFootIndex, RightFootIndex, RightKnee})
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Missing() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no person", func(t *testing.T) {
		poses, err := parseResponse([]byte(`{"poses":[]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(poses) != 0 {
			t.Errorf("got %d poses, want 0", len(poses))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"poses":[],"error":"model not loaded"}`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := parseResponse([]byte("not json")); err == nil {
			t.Error("expected error")
		}
	})
}
