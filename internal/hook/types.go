// Package hook discovers and runs external executables that react to
// confirmed flips.
package hook

import "encoding/json"

// EventFlipConfirmed is the only event hooks currently receive.
const EventFlipConfirmed = "flip.confirmed"

// Manifest is the hook.json file describing a hook.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the manifest subscribes to event. A manifest
// without an events list receives everything.
func (m Manifest) Handles(event string) bool {
	if len(m.Events) == 0 {
		return true
	}
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Flip is the event payload. Frame numbers are original frame indices.
type Flip struct {
	Seq     int  `json:"seq"`
	Liftoff int  `json:"liftoff_frame"`
	Apex    *int `json:"apex_frame"`
	Landing int  `json:"landing_frame"`
}

// Request is written to the hook's stdin as one JSON document.
type Request struct {
	Event      string          `json:"event"`
	AnalysisID string          `json:"analysis_id"`
	Source     string          `json:"source"`
	FrameRate  float64         `json:"frame_rate"`
	Flip       Flip            `json:"flip"`
	Config     json.RawMessage `json:"config"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
