// Package analysis samples a video on the frame-rate schedule, runs the pose
// model on each sampled frame and feeds the result to the flip detector.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
)

// ErrNoDetector is returned by New when no pose detector is supplied.
var ErrNoDetector = errors.New("no pose detector")

// Report is the outcome of analyzing one source.
type Report struct {
	FrameRate float64
	Duration  time.Duration
	Schedule  flip.Schedule

	// Scheduled is the number of timestamps visited.
	Scheduled int
	// Sampled is the number of entries handed to the detector.
	Sampled int
	// MissingFrames counts timestamps the source had no frame for.
	MissingFrames int
	// EmptyDetections counts frames in which the pose model found nobody.
	EmptyDetections int
	// DetectorErrors counts frames the pose model failed on. They are skipped
	// like empty detections.
	DetectorErrors int

	Sequence flip.Sequence
	Result   flip.Result
}

// Analyzer runs offline analyses. It is safe for sequential reuse; the pose
// detector it wraps decides whether concurrent use is safe.
type Analyzer struct {
	detector detector.Detector
	config   flip.Config
}

// New creates an Analyzer using d for pose estimation and cfg for detection thresholds.
func New(d detector.Detector, cfg flip.Config) (*Analyzer, error) {
	if d == nil {
		return nil, ErrNoDetector
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{detector: d, config: cfg}, nil
}

// Config returns the detection thresholds in use.
func (a *Analyzer) Config() flip.Config {
	return a.config
}

// Analyze walks the schedule for src. Every timestamp keeps its schedule
// position as its original frame index, so entries skipped for lack of a
// frame or a person leave gaps in the index space. The context is checked
// between frames.
func (a *Analyzer) Analyze(ctx context.Context, src capture.Source) (*Report, error) {
	fps := src.FrameRate()
	sched, err := flip.NewSchedule(fps, src.Duration())
	if err != nil {
		return nil, err
	}

	r := &Report{
		FrameRate: fps,
		Duration:  src.Duration(),
		Schedule:  sched,
	}

	for i := 0; i < sched.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.Scheduled++
		pose, ok, err := a.sample(src, sched.At(i), r)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if ok {
			r.Sequence.Append(i, pose)
		}
	}
	r.Sampled = r.Sequence.Len()

	res, err := flip.Detect(r.Sequence, fps, a.config)
	if err != nil {
		return nil, err
	}
	r.Result = res

	log.Printf("analysis: %d/%d frames sampled (%d missing, %d empty, %d failed), %d flips",
		r.Sampled, r.Scheduled, r.MissingFrames, r.EmptyDetections, r.DetectorErrors, len(res.Events))

	return r, nil
}

// sample fetches and detects one timestamp. A source error aborts the run;
// a detector error only skips the frame.
func (a *Analyzer) sample(src capture.Source, ts time.Duration, r *Report) (detector.Pose, bool, error) {
	frame, err := src.FrameAt(ts)
	if err != nil {
		return detector.Pose{}, false, fmt.Errorf("read frame at %v: %w", ts, err)
	}
	if frame == nil {
		r.MissingFrames++
		return detector.Pose{}, false, nil
	}
	defer frame.Close()

	poses, err := a.detector.Detect(frame)
	if err != nil {
		r.DetectorErrors++
		log.Printf("analysis: pose detection at %v failed: %v", ts, err)
		return detector.Pose{}, false, nil
	}
	if len(poses) == 0 {
		r.EmptyDetections++
		return detector.Pose{}, false, nil
	}

	// Single-person detector: only the first pose is used.
	return poses[0], true, nil
}
