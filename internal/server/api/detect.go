package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/backflip/internal/config"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
)

// DetectHandler runs flip detection on a landmark sequence supplied by the client.
type DetectHandler struct {
	defaults func() flip.Config
}

// NewDetectHandler creates a DetectHandler. defaults supplies the thresholds
// a request starts from; nil means the built-in defaults.
func NewDetectHandler(defaults func() flip.Config) *DetectHandler {
	if defaults == nil {
		defaults = flip.DefaultConfig
	}
	return &DetectHandler{defaults: defaults}
}

type detectFrame struct {
	Index  int                                 `json:"index"`
	Joints map[detector.Joint]detector.Point2D `json:"joints"`
}

type detectRequest struct {
	FrameRate float64         `json:"frame_rate"`
	Frames    []detectFrame   `json:"frames"`
	Config    json.RawMessage `json:"config,omitempty"`
}

type eventResponse struct {
	Seq          int  `json:"seq"`
	LiftoffFrame int  `json:"liftoff_frame"`
	ApexFrame    *int `json:"apex_frame"`
	LandingFrame int  `json:"landing_frame"`
}

type detectResponse struct {
	ApexFrames    []int           `json:"apex_frames"`
	LiftoffFrames []int           `json:"liftoff_frames"`
	Events        []eventResponse `json:"events"`
	Degenerate    int             `json:"degenerate"`
}

// ServeHTTP handles POST /api/detect.
func (h *DetectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req detectRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	cfg := h.defaults()
	if len(req.Config) > 0 {
		tuning, err := config.Parse(req.Config)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tuning.ApplyTo(&cfg)
	}

	var seq flip.Sequence
	for _, f := range req.Frames {
		seq.Append(f.Index, detector.Pose{Joints: f.Joints})
	}

	res, err := flip.Detect(seq, req.FrameRate, cfg)
	if err != nil {
		writeError(w, detectStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toDetectResponse(res))
}

// detectStatus maps detection errors to HTTP statuses. Every error caused by
// the input is a 400.
func detectStatus(err error) int {
	var malformed *flip.MalformedFrameError
	switch {
	case errors.As(err, &malformed),
		errors.Is(err, flip.ErrInvalidTiming),
		errors.Is(err, flip.ErrInvalidSequence),
		errors.Is(err, flip.ErrDegenerateGeometry),
		errors.Is(err, flip.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func toDetectResponse(res flip.Result) detectResponse {
	resp := detectResponse{
		ApexFrames:    res.ApexFrames(),
		LiftoffFrames: res.LiftoffFrames(),
		Events:        make([]eventResponse, 0, len(res.Events)),
		Degenerate:    res.Degenerate,
	}
	for i, e := range res.Events {
		ev := eventResponse{Seq: i, LiftoffFrame: e.Liftoff, LandingFrame: e.Landing}
		if e.HasApex {
			apex := e.Apex
			ev.ApexFrame = &apex
		}
		resp.Events = append(resp.Events, ev)
	}
	return resp
}
