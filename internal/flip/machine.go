package flip

import "fmt"

// State is the phase of the flip attempt currently being tracked.
type State int

const (
	// StateIdle waits for the launch stance.
	StateIdle State = iota
	// StateLiftoff has a launch candidate and waits for the tuck.
	StateLiftoff
	// StateAirborne collects foot-lift candidates and waits for the inversion.
	StateAirborne
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLiftoff:
		return "liftoff"
	case StateAirborne:
		return "airborne"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is one confirmed flip. All fields are original frame indices.
type Event struct {
	Liftoff int  // launch stance that started the attempt
	Apex    int  // first foot-lift candidate; meaningful only if HasApex
	HasApex bool // false when no foot-lift was observed before landing
	Landing int  // entry where the ankles rose above the hips
}

// Result is the outcome of a full pass over a sequence.
type Result struct {
	Events []Event
	// Degenerate counts entries with at least one unmeasurable angle.
	Degenerate int
}

// ApexFrames returns the apex index of every confirmed flip that has one,
// in confirmation order.
func (r Result) ApexFrames() []int {
	frames := make([]int, 0, len(r.Events))
	for _, e := range r.Events {
		if e.HasApex {
			frames = append(frames, e.Apex)
		}
	}
	return frames
}

// LiftoffFrames returns the launch index of every confirmed flip.
func (r Result) LiftoffFrames() []int {
	frames := make([]int, 0, len(r.Events))
	for _, e := range r.Events {
		frames = append(frames, e.Liftoff)
	}
	return frames
}

// Machine scans a Sequence one entry per Step.
//
// The cursor normally advances by one. Two transitions move it elsewhere:
// abandoning a launch re-evaluates the current entry from Idle, and a landing
// that arrives too late rewinds to just after the discarded launch.
type Machine struct {
	cfg Config
	win Window
	seq Sequence

	readings []*reading
	degen    int

	state   State
	cursor  int
	liftoff int   // sequence position of the launch candidate
	jumps   []int // sequence positions of foot-lift candidates this attempt
	events  []Event
}

// NewMachine validates its inputs and returns a machine positioned at the
// first entry in StateIdle.
func NewMachine(seq Sequence, frameRate float64, cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	win, err := WindowFor(frameRate, cfg)
	if err != nil {
		return nil, err
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}

	return &Machine{
		cfg:      cfg,
		win:      win,
		seq:      seq,
		readings: make([]*reading, seq.Len()),
		state:    StateIdle,
	}, nil
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Cursor returns the sequence position the next Step will evaluate.
func (m *Machine) Cursor() int { return m.cursor }

// Window returns the frame-rate scaled attempt bounds.
func (m *Machine) Window() Window { return m.win }

// Done reports whether the scan has reached the end of the sequence.
func (m *Machine) Done() bool { return m.cursor >= m.seq.Len() }

// Result returns the flips confirmed so far. An attempt still in progress is
// not included.
func (m *Machine) Result() Result {
	events := make([]Event, len(m.events))
	copy(events, m.events)
	return Result{Events: events, Degenerate: m.degen}
}

// Run steps until the end of the sequence.
func (m *Machine) Run() error {
	for !m.Done() {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step evaluates the entry under the cursor and applies at most one transition.
func (m *Machine) Step() error {
	if m.Done() {
		return nil
	}

	j := m.cursor
	r, err := m.reading(j)
	if err != nil {
		return err
	}

	switch m.state {
	case StateIdle:
		if r.both(m.cfg.launch) {
			m.state = StateLiftoff
			m.liftoff = j
			m.jumps = m.jumps[:0]
		}
		m.cursor++

	case StateLiftoff:
		switch {
		case r.both(m.cfg.tuck):
			m.state = StateAirborne
			m.cursor++
		case r.both(m.cfg.launch) && j-m.liftoff > m.win.Min:
			// Standing again long after the launch: a false start. Drop it and
			// let Idle look at this entry as a fresh launch.
			m.state = StateIdle
		default:
			m.cursor++
		}

	case StateAirborne:
		if m.feetLifted(j, r) {
			m.jumps = append(m.jumps, j)
		}
		if !r.both(inverted) {
			m.cursor++
			break
		}
		if j-m.liftoff <= m.win.Max {
			m.confirm(j)
			m.cursor = j + 1
		} else {
			m.cursor = m.liftoff + 1
		}
		m.state = StateIdle
		m.jumps = m.jumps[:0]
	}

	return nil
}

// feetLifted compares both feet against their height Min entries earlier.
// Each foot must have risen further than either current shin span.
func (m *Machine) feetLifted(j int, r *reading) bool {
	k := m.win.Min
	if k < 0 || j < k {
		return false
	}

	prev := m.seq.Poses[j-k]
	leftRise := prev.Joints[leftLimb.foot].Y - r.left.footY
	rightRise := prev.Joints[rightLimb.foot].Y - r.right.footY

	for _, rise := range []float64{leftRise, rightRise} {
		if rise <= r.left.shin || rise <= r.right.shin {
			return false
		}
	}
	return true
}

func (m *Machine) confirm(j int) {
	e := Event{
		Liftoff: m.seq.Indices[m.liftoff],
		Landing: m.seq.Indices[j],
	}
	if len(m.jumps) > 0 {
		e.Apex = m.seq.Indices[m.jumps[0]]
		e.HasApex = true
	}
	m.events = append(m.events, e)
}

// reading measures an entry once and caches it; rewinds revisit entries.
func (m *Machine) reading(j int) (*reading, error) {
	if r := m.readings[j]; r != nil {
		return r, nil
	}

	r := readPose(m.seq.Poses[j])
	if name := r.degenerate(); name != "" {
		if m.cfg.StrictGeometry {
			return nil, &DegenerateFrameError{Position: j, Frame: m.seq.Indices[j], Angle: name}
		}
		m.degen++
	}

	m.readings[j] = &r
	return &r, nil
}
