package app

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/store"
)

// LiveStatus describes the current live session.
type LiveStatus struct {
	Running   bool      `json:"running"`
	ID        string    `json:"id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	FrameRate float64   `json:"frame_rate,omitempty"`
	Frames    int       `json:"frames"`
	Sampled   int       `json:"sampled"`
	Flips     int       `json:"flips"`
}

// session is one live camera run. The capture goroutine owns seq until done
// is closed; the fields under mu are shared with status readers.
type session struct {
	id        string
	startedAt time.Time
	frameRate float64
	cfg       flip.Config
	gate      *capture.MotionGate
	every     int

	stopCh chan struct{}
	done   chan struct{}

	seq        flip.Sequence
	result     flip.Result
	incomplete int

	mu        sync.Mutex
	frames    int
	sampled   int
	published []store.Event
	preview   []byte
}

// StartLive opens the camera and starts a live session. Frames are read at
// the camera frame rate, detection reruns over the whole accumulated
// sequence at every checkpoint, and newly confirmed flips are published.
func (a *App) StartLive() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.live != nil {
		return "", ErrLiveRunning
	}

	if err := a.camera.Open(); err != nil {
		return "", err
	}

	fps := a.camera.FrameRate()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = capture.DefaultFrameRate
	}
	s := &session{
		id:        uuid.New().String(),
		startedAt: time.Now(),
		frameRate: fps,
		cfg:       a.flipCfg,
		every:     checkpointFrames(a.tuning.GetCheckpointInterval(), fps),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if th := a.tuning.GetMotionThreshold(); th > 0 {
		s.gate = capture.NewMotionGate(th, a.tuning.GetMotionHold())
	}

	interval := a.config.FrameInterval
	if interval <= 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}

	a.live = s
	go a.runLive(s, interval)

	log.Printf("Live session %s started at %.2f fps", s.id, fps)
	return s.id, nil
}

// StopLive ends the live session, runs a final detection pass and persists
// the session like an offline analysis.
func (a *App) StopLive() (*Outcome, error) {
	a.mu.Lock()
	s := a.live
	a.live = nil
	a.mu.Unlock()

	if s == nil {
		return nil, ErrLiveNotRunning
	}

	close(s.stopCh)
	<-s.done

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	if s.gate != nil {
		s.gate.Close()
	}

	a.checkpoint(s)

	s.mu.Lock()
	frames := s.frames
	published := append([]store.Event(nil), s.published...)
	s.mu.Unlock()

	an := &store.Analysis{
		ID:         s.id,
		Source:     "camera",
		Kind:       store.KindLive,
		FrameRate:  s.frameRate,
		DurationMs: time.Since(s.startedAt).Milliseconds(),
		Scheduled:  frames,
		Sampled:    s.seq.Len(),
		Degenerate: s.result.Degenerate,
	}

	if _, err := a.persist(an, s.cfg, s.seq, s.result); err != nil {
		return nil, err
	}

	log.Printf("Live session %s stopped: %d frames, %d sampled, %d incomplete poses, %d flips",
		s.id, frames, s.seq.Len(), s.incomplete, len(published))

	return &Outcome{Analysis: an, Events: published, Result: s.result}, nil
}

// LiveStatus reports on the running session, if any.
func (a *App) LiveStatus() LiveStatus {
	a.mu.RLock()
	s := a.live
	a.mu.RUnlock()

	if s == nil {
		return LiveStatus{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return LiveStatus{
		Running:   true,
		ID:        s.id,
		StartedAt: s.startedAt,
		FrameRate: s.frameRate,
		Frames:    s.frames,
		Sampled:   s.sampled,
		Flips:     len(s.published),
	}
}

// runLive is the capture loop. Each successful camera read is one frame
// index; the index advances whether or not the frame yields a pose.
func (a *App) runLive(s *session, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrNoMoreFrames) || errors.Is(err, capture.ErrCameraNotOpen) {
					log.Printf("Live session %s: camera ended: %v", s.id, err)
					return
				}
				log.Printf("Error reading frame: %v", err)
				continue
			}

			s.mu.Lock()
			index := s.frames
			s.frames++
			s.mu.Unlock()

			a.snapshot(s, frame)
			a.observe(s, frame, index, now)
			frame.Close()

			if (index+1)%s.every == 0 {
				a.checkpoint(s)
			}
		}
	}
}

// observe runs the pose model on one frame and appends a complete pose.
func (a *App) observe(s *session, frame *gocv.Mat, index int, now time.Time) {
	if s.gate != nil && !s.gate.Observe(frame, now) {
		return
	}

	poses, err := a.detector.Detect(frame)
	if err != nil {
		log.Printf("Error detecting pose: %v", err)
		return
	}
	if len(poses) == 0 {
		return
	}

	pose := poses[0]
	if missing := pose.Missing(detector.RequiredJoints); len(missing) > 0 {
		s.incomplete++
		return
	}
	s.seq.Append(index, pose)

	s.mu.Lock()
	s.sampled++
	s.mu.Unlock()
}

// checkpoint reruns detection over everything seen so far and publishes the
// flips not yet published. Detection is causal, so earlier flips never
// change and only the tail of the event list is new.
func (a *App) checkpoint(s *session) {
	if s.seq.Len() == 0 {
		return
	}

	res, err := flip.Detect(s.seq, s.frameRate, s.cfg)
	if err != nil {
		log.Printf("Live session %s: detection failed: %v", s.id, err)
		return
	}
	s.result = res

	s.mu.Lock()
	start := len(s.published)
	var fresh []store.Event
	for i := start; i < len(res.Events); i++ {
		e := storeEvent(res.Events[i])
		e.AnalysisID = s.id
		e.Seq = i
		fresh = append(fresh, e)
	}
	s.published = append(s.published, fresh...)
	s.mu.Unlock()

	an := &store.Analysis{ID: s.id, Source: "camera", Kind: store.KindLive, FrameRate: s.frameRate}
	for _, e := range fresh {
		log.Printf("Live session %s: flip %d confirmed (liftoff %d, landing %d)", s.id, e.Seq, e.LiftoffFrame, e.LandingFrame)
		a.publish(notification(an, e))
	}
}

// checkpointFrames converts the checkpoint interval to a frame count.
func checkpointFrames(interval time.Duration, fps float64) int {
	n := int(math.Round(interval.Seconds() * fps))
	if n < 1 {
		return 1
	}
	return n
}

// snapshot keeps the latest frame as JPEG for preview streaming.
func (a *App) snapshot(s *session, frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	defer buf.Close()

	jpeg := append([]byte(nil), buf.GetBytes()...)
	s.mu.Lock()
	s.preview = jpeg
	s.mu.Unlock()
}

// Snapshot returns the most recent live frame as JPEG, or false when no
// session is running or no frame has been read yet.
func (a *App) Snapshot() ([]byte, bool) {
	a.mu.RLock()
	s := a.live
	a.mu.RUnlock()

	if s == nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview, s.preview != nil
}
