// Package flip recognizes backflips in a sequence of body poses.
//
// A flip is a launch stance (arms forward, body straight), followed by a
// tuck, followed by an inversion with the ankles above the hips, all within a
// frame-rate scaled window. The reported moment of each flip is the first
// entry, during the tuck, at which both feet had risen further than the
// shin length compared to a short look-back.
package flip

import "github.com/ayusman/backflip/internal/detector"

// Detect runs one full pass over seq and returns every confirmed flip.
// It keeps no state between calls.
func Detect(seq Sequence, frameRate float64, cfg Config) (Result, error) {
	m, err := NewMachine(seq, frameRate, cfg)
	if err != nil {
		return Result{}, err
	}
	if err := m.Run(); err != nil {
		return Result{}, err
	}
	return m.Result(), nil
}

// DetectApexes runs Detect with DefaultConfig and returns the apex frame
// indices, in the original video's numbering.
func DetectApexes(poses []detector.Pose, indices []int, frameRate float64) ([]int, error) {
	res, err := Detect(Sequence{Poses: poses, Indices: indices}, frameRate, DefaultConfig())
	if err != nil {
		return nil, err
	}
	return res.ApexFrames(), nil
}
