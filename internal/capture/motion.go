package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame differencing constants.
const (
	// GaussianBlurSize is the kernel size applied before differencing.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as motion.
	DiffThreshold = 25
)

// MotionGate decides whether a live frame is worth sending to the pose model.
// It opens on the first frame whose changed-pixel percentage exceeds the
// threshold and closes again after Hold without such a frame.
type MotionGate struct {
	threshold float64
	hold      time.Duration

	mu          sync.Mutex
	prevGray    gocv.Mat
	initialized bool
	lastMotion  time.Time
	open        bool
}

// NewMotionGate creates a gate. threshold is a percentage of pixels, so 1.0
// means 1% of the frame must change.
func NewMotionGate(threshold float64, hold time.Duration) *MotionGate {
	return &MotionGate{
		threshold: threshold,
		hold:      hold,
		prevGray:  gocv.NewMat(),
	}
}

// Observe feeds one frame taken at now and reports whether the gate is open
// after it. The first frame only sets the baseline.
func (g *MotionGate) Observe(frame *gocv.Mat, now time.Time) bool {
	moved, _ := g.Changed(frame)

	g.mu.Lock()
	defer g.mu.Unlock()

	if moved {
		g.lastMotion = now
		g.open = true
	} else if g.open && now.Sub(g.lastMotion) > g.hold {
		g.open = false
	}
	return g.open
}

// Open reports the gate state without feeding a frame.
func (g *MotionGate) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Changed compares frame against the previous one and returns whether the
// changed share exceeds the threshold, along with that share in percent:
// grayscale, 21x21 Gaussian blur, absolute difference, binary threshold at 25,
// then non-zero pixels over total.
func (g *MotionGate) Changed(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)

	if !g.initialized {
		blurred.CopyTo(&g.prevGray)
		g.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&g.prevGray)

	return changed > g.threshold, changed
}

// Reset forgets the baseline frame and closes the gate.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prevGray.Close()
	g.prevGray = gocv.NewMat()
	g.initialized = false
	g.open = false
}

// Close releases the baseline frame.
func (g *MotionGate) Close() {
	g.Reset()
}
