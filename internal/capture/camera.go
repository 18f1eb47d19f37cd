// Package capture provides video frame sources using GoCV (OpenCV).
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. Flip detection needs a real frame rate; the
// foot-lift look-back is a handful of frames at 30fps.
const (
	DefaultFrameRate = 30.0
	DefaultWidth     = 640
	DefaultHeight    = 480
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera is a live frame source.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFrameRate(fps float64)
	FrameRate() float64
	IsOpen() bool
}

// deviceCamera reads from a local capture device.
type deviceCamera struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      float64
}

// NewCamera creates a Camera for the given device ID at DefaultFrameRate.
func NewCamera(deviceID int) Camera {
	return &deviceCamera{
		deviceID: deviceID,
		fps:      DefaultFrameRate,
	}
}

// Open opens the device at 640x480. If the driver reports the frame rate it
// actually delivers, that rate replaces the requested one.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, c.fps)

	if actual := capture.Get(gocv.VideoCaptureFPS); validFrameRate(actual) {
		c.fps = actual
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFrameRate requests a capture rate. Non-positive or non-finite values are ignored.
func (c *deviceCamera) SetFrameRate(fps float64) {
	if !validFrameRate(fps) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, fps)
	}
}

// FrameRate returns the current capture rate.
func (c *deviceCamera) FrameRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
