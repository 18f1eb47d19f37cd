package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/backflip/internal/app"
	"github.com/ayusman/backflip/internal/config"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/store"
)

// Runner runs and reruns analyses. *app.App implements it.
type Runner interface {
	AnalyzeFile(ctx context.Context, path string) (*app.Outcome, error)
	Redetect(id string, cfg flip.Config) (*app.Outcome, error)
	FlipConfig() flip.Config
}

// AnalysisHandler handles HTTP requests for analysis resources.
type AnalysisHandler struct {
	store  *store.Store
	runner Runner
}

// NewAnalysisHandler creates a new AnalysisHandler. runner may be nil, which
// disables creating and rerunning analyses.
func NewAnalysisHandler(s *store.Store, runner Runner) *AnalysisHandler {
	return &AnalysisHandler{store: s, runner: runner}
}

// ServeHTTP routes:
//
//	GET, POST      /api/analyses
//	GET, DELETE    /api/analyses/{id}
//	GET            /api/analyses/{id}/events
//	POST           /api/analyses/{id}/redetect
func (h *AnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/analyses")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "events":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.events(w, r, id)
	case "redetect":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.redetect(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

type createAnalysisRequest struct {
	Path string `json:"path"`
}

type analysisResponse struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Kind       string          `json:"kind"`
	FrameRate  float64         `json:"frame_rate"`
	DurationMs int64           `json:"duration_ms"`
	Scheduled  int             `json:"scheduled"`
	Sampled    int             `json:"sampled"`
	Degenerate int             `json:"degenerate"`
	Config     json.RawMessage `json:"config"`
	CreatedAt  string          `json:"created_at"`
	Events     []eventResponse `json:"events,omitempty"`
	ApexFrames []int           `json:"apex_frames,omitempty"`
}

type listAnalysesResponse struct {
	Analyses []analysisResponse `json:"analyses"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

func toAnalysisResponse(a *store.Analysis) analysisResponse {
	return analysisResponse{
		ID:         a.ID,
		Source:     a.Source,
		Kind:       string(a.Kind),
		FrameRate:  a.FrameRate,
		DurationMs: a.DurationMs,
		Scheduled:  a.Scheduled,
		Sampled:    a.Sampled,
		Degenerate: a.Degenerate,
		Config:     a.Config,
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
}

func toEventResponses(events []store.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			Seq:          e.Seq,
			LiftoffFrame: e.LiftoffFrame,
			ApexFrame:    e.ApexFrame,
			LandingFrame: e.LandingFrame,
		})
	}
	return out
}

func apexFrames(events []store.Event) []int {
	frames := make([]int, 0, len(events))
	for _, e := range events {
		if e.ApexFrame != nil {
			frames = append(frames, *e.ApexFrame)
		}
	}
	return frames
}

// withEvents fills in the events of an analysis response.
func withEvents(resp analysisResponse, events []store.Event) analysisResponse {
	resp.Events = toEventResponses(events)
	resp.ApexFrames = apexFrames(events)
	return resp
}

// list handles GET /api/analyses.
func (h *AnalysisHandler) list(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.store.Analyses().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	response := listAnalysesResponse{
		Analyses: make([]analysisResponse, 0, len(analyses)),
	}
	for _, a := range analyses {
		response.Analyses = append(response.Analyses, toAnalysisResponse(a))
	}

	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/analyses, analyzing a video file on the server.
func (h *AnalysisHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis is not available")
		return
	}

	var req createAnalysisRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "Path is required")
		return
	}
	if _, err := os.Stat(req.Path); err != nil {
		writeError(w, http.StatusBadRequest, "Video not found")
		return
	}

	out, err := h.runner.AnalyzeFile(r.Context(), req.Path)
	if err != nil {
		log.Printf("analysis of %s failed: %v", req.Path, err)
		if errors.Is(err, context.Canceled) {
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, withEvents(toAnalysisResponse(out.Analysis), out.Events))
}

// get handles GET /api/analyses/{id}.
func (h *AnalysisHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	a, err := h.store.Analyses().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}

	events, err := h.store.Events().ListByAnalysis(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get events")
		return
	}

	writeJSON(w, http.StatusOK, withEvents(toAnalysisResponse(a), events))
}

// events handles GET /api/analyses/{id}/events.
func (h *AnalysisHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Analyses().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}

	events, err := h.store.Events().ListByAnalysis(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get events")
		return
	}

	writeJSON(w, http.StatusOK, listEventsResponse{Events: toEventResponses(events)})
}

// redetect handles POST /api/analyses/{id}/redetect. The body holds optional
// threshold overrides in tuning-file form, applied over the current defaults.
func (h *AnalysisHandler) redetect(w http.ResponseWriter, r *http.Request, id string) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis is not available")
		return
	}

	var raw json.RawMessage
	if !decodeBody(w, r, &raw, true) {
		return
	}

	cfg := h.runner.FlipConfig()
	if len(raw) > 0 {
		tuning, err := config.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tuning.ApplyTo(&cfg)
	}

	out, err := h.runner.Redetect(id, cfg)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Analysis not found")
		case detectStatus(err) == http.StatusBadRequest:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to rerun detection")
		}
		return
	}

	writeJSON(w, http.StatusOK, withEvents(toAnalysisResponse(out.Analysis), out.Events))
}

// delete handles DELETE /api/analyses/{id}.
func (h *AnalysisHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Analyses().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete analysis")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
