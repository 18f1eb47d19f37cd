package testdata

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
)

//go:embed sequences/*.json
var sequencesFS embed.FS

// Frame is one sampled pose in a recorded clip.
type Frame struct {
	Index  int                                 `json:"index"`
	Joints map[detector.Joint]detector.Point2D `json:"joints"`
}

// Clip is a recorded landmark sequence with the flips it contains. It
// decodes from the same shape POST /api/detect accepts.
type Clip struct {
	Name      string  `json:"name"`
	FrameRate float64 `json:"frame_rate"`
	Frames    []Frame `json:"frames"`
	Expected  struct {
		LiftoffFrames []int `json:"liftoff_frames"`
		LandingFrames []int `json:"landing_frames"`
	} `json:"expected"`
}

// Sequence converts the clip into detector input.
func (c *Clip) Sequence() flip.Sequence {
	var seq flip.Sequence
	for _, f := range c.Frames {
		seq.Append(f.Index, detector.Pose{Joints: f.Joints, Score: 1})
	}
	return seq
}

// LoadRaw returns the JSON of a recorded sequence by file name.
func LoadRaw(name string) ([]byte, error) {
	data, err := sequencesFS.ReadFile("sequences/" + name)
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}
	return data, nil
}

// LoadClip loads and decodes a recorded sequence by file name.
func LoadClip(name string) (*Clip, error) {
	data, err := LoadRaw(name)
	if err != nil {
		return nil, err
	}

	var c Clip
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}
	return &c, nil
}

// Clips returns the file names of every recorded sequence.
func Clips() ([]string, error) {
	entries, err := sequencesFS.ReadDir("sequences")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
