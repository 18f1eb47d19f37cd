package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/backflip/internal/app"
)

// LiveController starts and stops live camera sessions. *app.App implements it.
type LiveController interface {
	StartLive() (string, error)
	StopLive() (*app.Outcome, error)
	LiveStatus() app.LiveStatus
}

// LiveHandler handles the live session endpoints.
type LiveHandler struct {
	live LiveController
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(c LiveController) *LiveHandler {
	return &LiveHandler{live: c}
}

type startLiveResponse struct {
	ID string `json:"id"`
}

// ServeHTTP routes GET /api/live, POST /api/live/start and POST /api/live/stop.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/live"), "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.live.LiveStatus())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stop(w)
	default:
		http.NotFound(w, r)
	}
}

func (h *LiveHandler) start(w http.ResponseWriter) {
	id, err := h.live.StartLive()
	if err != nil {
		if errors.Is(err, app.ErrLiveRunning) {
			writeError(w, http.StatusConflict, "Live session already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start live session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, startLiveResponse{ID: id})
}

func (h *LiveHandler) stop(w http.ResponseWriter) {
	out, err := h.live.StopLive()
	if err != nil {
		if errors.Is(err, app.ErrLiveNotRunning) {
			writeError(w, http.StatusConflict, "No live session running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to stop live session")
		return
	}
	writeJSON(w, http.StatusOK, withEvents(toAnalysisResponse(out.Analysis), out.Events))
}
