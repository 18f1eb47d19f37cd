package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoMoreFrames is returned by MockCamera once a non-looping playback is exhausted.
var ErrNoMoreFrames = errors.New("no more frames")

// MockCamera plays back pre-recorded frames for testing.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     float64
	mu      sync.Mutex
	running bool
	reads   int
}

// NewMockCamera plays frames at DefaultFrameRate.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFrameRate,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, ErrNoMoreFrames
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	// Clone so callers may close what they get.
	frame := c.frames[c.index].Clone()
	c.index++
	c.reads++

	return &frame, nil
}

func (c *MockCamera) SetFrameRate(fps float64) {
	if !validFrameRate(fps) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FrameRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Reads returns how many frames have been delivered.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// MockSource is a Source of blank frames. Selected timestamps can be made
// absent, and every request is recorded.
type MockSource struct {
	mu       sync.Mutex
	fps      float64
	duration time.Duration
	missing  map[time.Duration]bool
	requests []time.Duration
	closed   bool
	failAt   map[time.Duration]error
}

// NewMockSource returns a source reporting fps and duration. Every timestamp
// in [0, duration] has a frame until SetMissing says otherwise.
func NewMockSource(fps float64, duration time.Duration) *MockSource {
	return &MockSource{
		fps:      fps,
		duration: duration,
		missing:  make(map[time.Duration]bool),
		failAt:   make(map[time.Duration]error),
	}
}

// SetMissing makes FrameAt report no frame at the given timestamps.
func (s *MockSource) SetMissing(ts ...time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		s.missing[t] = true
	}
}

// SetError makes FrameAt fail with err at ts.
func (s *MockSource) SetError(ts time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt[ts] = err
}

// Requests returns every timestamp passed to FrameAt, in call order.
func (s *MockSource) Requests() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.requests))
	copy(out, s.requests)
	return out
}

// Closed reports whether Close has been called.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *MockSource) FrameRate() float64      { return s.fps }
func (s *MockSource) Duration() time.Duration { return s.duration }

func (s *MockSource) FrameAt(ts time.Duration) (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	s.requests = append(s.requests, ts)

	if err := s.failAt[ts]; err != nil {
		return nil, err
	}
	if ts < 0 || ts > s.duration || s.missing[ts] {
		return nil, nil
	}

	mat := gocv.NewMatWithSize(DefaultHeight/10, DefaultWidth/10, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
