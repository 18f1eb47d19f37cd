package capture

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrNoFrameRate is returned when a video does not report a usable frame rate.
	ErrNoFrameRate = errors.New("video has no usable frame rate")
	// ErrSourceClosed is returned by FrameAt after Close.
	ErrSourceClosed = errors.New("source is closed")
)

// Source is a seekable video: a frame rate, a length, and random access by timestamp.
type Source interface {
	FrameRate() float64
	Duration() time.Duration
	// FrameAt returns the frame shown at ts, or nil with a nil error when the
	// video has no frame there. The caller closes the returned Mat.
	FrameAt(ts time.Duration) (*gocv.Mat, error)
	Close() error
}

// VideoFile is a Source backed by a file OpenCV can decode.
type VideoFile struct {
	path     string
	capture  *gocv.VideoCapture
	fps      float64
	duration time.Duration
	mu       sync.Mutex
	closed   bool
}

// OpenVideoFile opens path and reads its frame rate and frame count.
func OpenVideoFile(path string) (*VideoFile, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open video %s: not readable", path)
	}

	fps := vc.Get(gocv.VideoCaptureFPS)
	if !validFrameRate(fps) {
		vc.Close()
		return nil, fmt.Errorf("%w: %s reports %v", ErrNoFrameRate, path, fps)
	}

	count := vc.Get(gocv.VideoCaptureFrameCount)
	if count < 0 || math.IsNaN(count) {
		count = 0
	}

	return &VideoFile{
		path:     path,
		capture:  vc,
		fps:      fps,
		duration: time.Duration(count / fps * float64(time.Second)),
	}, nil
}

// Path returns the file the video was opened from.
func (v *VideoFile) Path() string { return v.path }

// FrameRate returns the frame rate stored in the container.
func (v *VideoFile) FrameRate() float64 { return v.fps }

// Duration returns frame count divided by frame rate.
func (v *VideoFile) Duration() time.Duration { return v.duration }

// FrameAt seeks to ts and decodes one frame. A failed seek or read past the
// end yields nil, nil.
func (v *VideoFile) FrameAt(ts time.Duration) (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrSourceClosed
	}
	if ts < 0 {
		return nil, nil
	}

	v.capture.Set(gocv.VideoCapturePosMsec, float64(ts)/float64(time.Millisecond))

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, nil
	}
	return &mat, nil
}

// Close releases the decoder.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	return v.capture.Close()
}

func validFrameRate(fps float64) bool {
	return fps > 0 && !math.IsInf(fps, 0) && !math.IsNaN(fps)
}
