// Package app wires pose detection, flip detection, persistence and hooks
// into offline analyses and live camera sessions.
package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/config"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/hook"
	"github.com/ayusman/backflip/internal/store"
)

var (
	// ErrLiveRunning is returned by StartLive while a session is active.
	ErrLiveRunning = errors.New("live session already running")
	// ErrLiveNotRunning is returned by StopLive without an active session.
	ErrLiveNotRunning = errors.New("no live session running")
)

// Config holds configuration options for the application.
type Config struct {
	// Store persists analyses. Nil disables persistence and hook bindings.
	Store   *store.Store
	HookDir string

	CameraID int
	// Camera overrides the device camera, mainly for tests.
	Camera capture.Camera
	// Detector overrides the pose model. When nil MediaPipe is tried first.
	Detector detector.Detector

	// Tuning overrides detector thresholds and live settings. Nil keeps defaults.
	Tuning *config.Tuning

	// FrameInterval paces the live loop. Zero derives it from the camera frame rate.
	FrameInterval time.Duration
}

// Notification announces one confirmed flip.
type Notification struct {
	AnalysisID string             `json:"analysis_id"`
	Source     string             `json:"source"`
	Kind       store.AnalysisKind `json:"kind"`
	FrameRate  float64            `json:"frame_rate"`
	Flip       store.Event        `json:"flip"`
}

// App is the main application that runs flip detection on videos and the camera.
type App struct {
	config   Config
	tuning   *config.Tuning
	camera   capture.Camera
	detector detector.Detector
	hookMgr  *hook.Manager
	hookExec *hook.Executor

	mu      sync.RWMutex
	flipCfg flip.Config
	live    *session

	subMu  sync.Mutex
	subs   map[int]func(Notification)
	nextID int

	hooksWG sync.WaitGroup
}

// New creates a new App instance with the given configuration.
func New(cfg Config) *App {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = &config.Tuning{}
	}

	a := &App{
		config:   cfg,
		tuning:   tuning,
		camera:   cfg.Camera,
		detector: cfg.Detector,
		hookMgr:  hook.NewManager(cfg.HookDir),
		hookExec: hook.NewExecutor(tuning.GetHookTimeout()),
		flipCfg:  tuning.FlipConfig(),
		subs:     make(map[int]func(Notification)),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.CameraID)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Println("Using MediaPipe pose detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// FlipConfig returns the detection thresholds used for new runs.
func (a *App) FlipConfig() flip.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.flipCfg
}

// SetFlipConfig replaces the thresholds for later runs. A running live
// session keeps the thresholds it started with.
func (a *App) SetFlipConfig(cfg flip.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flipCfg = cfg
	return nil
}

// Store returns the backing store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// HookManager returns the hook manager.
func (a *App) HookManager() *hook.Manager {
	return a.hookMgr
}

// DiscoverHooks scans the hook directory.
func (a *App) DiscoverHooks() error {
	return a.hookMgr.Discover()
}

// Subscribe registers fn for every confirmed flip, offline or live. fn runs
// on the publishing goroutine and must not block. The returned function
// removes the subscription.
func (a *App) Subscribe(fn func(Notification)) func() {
	a.subMu.Lock()
	defer a.subMu.Unlock()

	id := a.nextID
	a.nextID++
	a.subs[id] = fn

	return func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		delete(a.subs, id)
	}
}

// publish notifies subscribers and starts the enabled hooks for n.
func (a *App) publish(n Notification) {
	a.subMu.Lock()
	subs := make([]func(Notification), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.subMu.Unlock()

	for _, fn := range subs {
		fn(n)
	}

	a.dispatchHooks(n)
}

// Close stops a live session, waits for running hooks and releases the detector.
func (a *App) Close() error {
	if _, err := a.StopLive(); err != nil && !errors.Is(err, ErrLiveNotRunning) {
		log.Printf("Error stopping live session: %v", err)
	}

	a.hooksWG.Wait()

	if err := a.detector.Close(); err != nil {
		log.Printf("Error closing detector: %v", err)
		return err
	}
	return nil
}
