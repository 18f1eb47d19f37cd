package flip

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/backflip/internal/detector"
)

// run describes count consecutive copies of a pose.
type run struct {
	pose  func() detector.Pose
	count int
}

var (
	neutral      = detector.NeutralPose
	launch       = detector.LaunchPose
	tuck         = detector.TuckPose
	invertedPose = detector.InvertedPose
)

// buildSequence lays runs end to end. Original indices are position*stride,
// which models a sampled video with a gap between every kept frame.
func buildSequence(stride int, runs ...run) Sequence {
	var seq Sequence
	for _, r := range runs {
		for i := 0; i < r.count; i++ {
			seq.Append(seq.Len()*stride, r.pose())
		}
	}
	return seq
}

// oneFlip is a clean attempt at 30fps: launch at entry 3, tuck from entry 5,
// first foot lift at entry 6, inversion at entry 10.
func oneFlip() []run {
	return []run{
		{neutral, 3},
		{launch, 1},
		{neutral, 1},
		{tuck, 5},
		{invertedPose, 1},
		{neutral, 2},
	}
}

func TestMachine_StateTransitions(t *testing.T) {
	seq := buildSequence(1, oneFlip()...)
	m, err := NewMachine(seq, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	// State after evaluating each entry.
	want := []State{
		StateIdle, StateIdle, StateIdle,
		StateLiftoff, StateLiftoff,
		StateAirborne, StateAirborne, StateAirborne, StateAirborne, StateAirborne,
		StateIdle,
		StateIdle, StateIdle,
	}

	var got []State
	for !m.Done() {
		if err := m.Step(); err != nil {
			t.Fatalf("Step() at %d error = %v", m.Cursor(), err)
		}
		got = append(got, m.State())
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("state after each step mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_Window(t *testing.T) {
	m, err := NewMachine(Sequence{}, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}
	if w := m.Window(); w != (Window{Min: 5, Max: 30}) {
		t.Errorf("Window() = %+v, want {Min:5 Max:30}", w)
	}
	if !m.Done() {
		t.Error("empty sequence should be done immediately")
	}
}

func TestMachine_AbandonRetriesCurrentEntry(t *testing.T) {
	seq := buildSequence(1,
		run{neutral, 3},
		run{launch, 1},  // entry 3: first launch
		run{neutral, 6}, // entries 4-9
		run{launch, 1},  // entry 10: 7 entries later, abandons and relaunches
		run{tuck, 4},    // entries 11-14
		run{invertedPose, 1},
		run{neutral, 1},
	)

	m, err := NewMachine(seq, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	for m.Cursor() < 10 {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.State() != StateLiftoff {
		t.Fatalf("state before entry 10 = %v, want liftoff", m.State())
	}

	// Abandon: state resets but the cursor stays on entry 10.
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateIdle || m.Cursor() != 10 {
		t.Fatalf("after abandon: state %v cursor %d, want idle at 10", m.State(), m.Cursor())
	}

	// Entry 10 is now taken as a new launch.
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateLiftoff || m.Cursor() != 11 {
		t.Fatalf("after relaunch: state %v cursor %d, want liftoff at 11", m.State(), m.Cursor())
	}

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}

	want := []Event{{Liftoff: 10, Apex: 12, HasApex: true, Landing: 15}}
	if diff := cmp.Diff(want, m.Result().Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_RelaunchWithinMinIntervalKeepsCandidate(t *testing.T) {
	seq := buildSequence(1,
		run{launch, 1},
		run{neutral, 2},
		run{launch, 1}, // only 3 entries later: not a false start
		run{tuck, 1},
		run{invertedPose, 1},
	)

	res, err := Detect(seq, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if diff := cmp.Diff([]int{0}, res.LiftoffFrames()); diff != "" {
		t.Errorf("liftoff frames mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_LateLandingRewinds(t *testing.T) {
	seq := buildSequence(1,
		run{neutral, 3},
		run{launch, 1},
		run{neutral, 1},
		run{tuck, 35},
		run{invertedPose, 1}, // entry 40, 37 entries after launch
		run{neutral, 2},
	)

	m, err := NewMachine(seq, 30, DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine() error = %v", err)
	}

	for m.Cursor() < 40 {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.State() != StateAirborne {
		t.Fatalf("state before inversion = %v, want airborne", m.State())
	}

	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateIdle || m.Cursor() != 4 {
		t.Errorf("after late landing: state %v cursor %d, want idle at 4", m.State(), m.Cursor())
	}

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if n := len(m.Result().Events); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}

func TestMachine_StepAfterDone(t *testing.T) {
	seq := buildSequence(1, run{launch, 1})
	m, err := NewMachine(seq, 30, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if err := m.Step(); err != nil {
		t.Errorf("Step() after done error = %v", err)
	}
	if m.Cursor() != 1 {
		t.Errorf("Cursor() = %d, want 1", m.Cursor())
	}
	// The launch is still pending but never reported.
	if m.State() != StateLiftoff {
		t.Errorf("State() = %v, want liftoff", m.State())
	}
	if n := len(m.Result().Events); n != 0 {
		t.Errorf("got %d events, want 0", n)
	}
}

func TestMachine_DegenerateEntry(t *testing.T) {
	broken := func() detector.Pose {
		p := detector.LaunchPose()
		p.Joints[detector.LeftWrist] = p.Joints[detector.LeftShoulder]
		return p
	}
	runs := []run{
		{broken, 1},
		{tuck, 1},
		{invertedPose, 1},
	}

	t.Run("lenient entry matches nothing", func(t *testing.T) {
		res, err := Detect(buildSequence(1, runs...), 30, DefaultConfig())
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if len(res.Events) != 0 {
			t.Errorf("got %d events, want 0", len(res.Events))
		}
		if res.Degenerate != 1 {
			t.Errorf("Degenerate = %d, want 1", res.Degenerate)
		}
	})

	t.Run("lenient entry still lands on raw coordinates", func(t *testing.T) {
		brokenInverted := func() detector.Pose {
			p := detector.InvertedPose()
			p.Joints[detector.RightWrist] = p.Joints[detector.RightShoulder]
			return p
		}
		seq := buildSequence(1, run{launch, 1}, run{tuck, 1}, run{brokenInverted, 1})

		res, err := Detect(seq, 30, DefaultConfig())
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		want := []Event{{Liftoff: 0, Landing: 2}}
		if diff := cmp.Diff(want, res.Events); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
		if res.Degenerate != 1 {
			t.Errorf("Degenerate = %d, want 1", res.Degenerate)
		}
	})

	t.Run("strict fails the run", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.StrictGeometry = true

		_, err := Detect(buildSequence(5, runs...), 30, cfg)
		if !errors.Is(err, ErrDegenerateGeometry) {
			t.Fatalf("error = %v, want ErrDegenerateGeometry", err)
		}

		var dfe *DegenerateFrameError
		if !errors.As(err, &dfe) {
			t.Fatalf("error %T is not *DegenerateFrameError", err)
		}
		if dfe.Position != 0 || dfe.Frame != 0 || dfe.Angle != "left arm" {
			t.Errorf("DegenerateFrameError = %+v, want entry 0 left arm", dfe)
		}
	})
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:     "idle",
		StateLiftoff:  "liftoff",
		StateAirborne: "airborne",
		State(9):      "state(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
