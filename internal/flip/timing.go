package flip

import (
	"fmt"
	"math"
	"time"
)

// MaxFrameRate is the highest frame rate accepted. Schedules step in whole
// milliseconds, so faster rates cannot be sampled anyway.
const MaxFrameRate = 1000

// maxWindow bounds scaled windows so entry arithmetic cannot overflow.
const maxWindow = math.MaxInt32

// Window bounds a flip attempt. Both fields count entries in a Sequence,
// not original frames and not milliseconds.
type Window struct {
	Min int
	Max int
}

// WindowFor scales the configured intervals by the frame rate:
// Min = round(frameRate * MinIntervalSeconds), Max = round(frameRate * MaxIntervalSeconds).
func WindowFor(frameRate float64, cfg Config) (Window, error) {
	if err := checkFrameRate(frameRate); err != nil {
		return Window{}, err
	}

	lo := math.Round(frameRate * cfg.MinIntervalSeconds)
	hi := math.Round(frameRate * cfg.MaxIntervalSeconds)
	if !finite(lo) || !finite(hi) || lo < 0 || hi < 0 || hi > maxWindow {
		return Window{}, fmt.Errorf("%w: window %v..%v entries at %v fps", ErrInvalidTiming, lo, hi, frameRate)
	}
	return Window{Min: int(lo), Max: int(hi)}, nil
}

// Schedule is the list of timestamps a clip is sampled at: 0, Step, 2*Step, ...
// up to and including Steps*Step.
type Schedule struct {
	Step  time.Duration
	Steps int
}

// NewSchedule builds the sampling schedule for a clip. Step is 1000/frameRate
// rounded to whole milliseconds and Steps is ceil(frameRate * seconds).
func NewSchedule(frameRate float64, duration time.Duration) (Schedule, error) {
	if err := checkFrameRate(frameRate); err != nil {
		return Schedule{}, err
	}
	if duration < 0 {
		return Schedule{}, fmt.Errorf("%w: negative duration %v", ErrInvalidTiming, duration)
	}

	stepMs := math.Round(1000 / frameRate)
	if stepMs < 1 {
		stepMs = 1
	}

	steps := math.Ceil(frameRate * duration.Seconds())
	if steps > maxWindow {
		return Schedule{}, fmt.Errorf("%w: %v steps for %v at %v fps", ErrInvalidTiming, steps, duration, frameRate)
	}

	return Schedule{
		Step:  time.Duration(stepMs) * time.Millisecond,
		Steps: int(steps),
	}, nil
}

// Len returns the number of timestamps in the schedule, Steps+1.
func (s Schedule) Len() int {
	return s.Steps + 1
}

// At returns the i-th timestamp. The position i is the original frame index
// of whatever pose is detected there.
func (s Schedule) At(i int) time.Duration {
	return time.Duration(i) * s.Step
}

// Timestamps returns every timestamp in order.
func (s Schedule) Timestamps() []time.Duration {
	ts := make([]time.Duration, s.Len())
	for i := range ts {
		ts[i] = s.At(i)
	}
	return ts
}

func checkFrameRate(frameRate float64) error {
	if !finite(frameRate) || frameRate <= 0 || frameRate > MaxFrameRate {
		return fmt.Errorf("%w: frame rate %v", ErrInvalidTiming, frameRate)
	}
	return nil
}
