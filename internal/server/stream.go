package server

import (
	"fmt"
	"net/http"
	"time"
)

// Snapshotter supplies the latest live frame as JPEG.
type Snapshotter interface {
	Snapshot() ([]byte, bool)
}

// StreamHandler serves the live preview as MJPEG. It never touches the
// camera itself; it repeats whatever frame the live session last read.
type StreamHandler struct {
	source   Snapshotter
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler sending about 15 frames a second.
func NewStreamHandler(source Snapshotter) *StreamHandler {
	return &StreamHandler{source: source, interval: 66 * time.Millisecond}
}

// ServeHTTP streams MJPEG frames until the client goes away. Without a live
// session it answers 503.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, ok := h.source.Snapshot(); !ok {
		http.Error(w, "No live session", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		jpeg, ok := h.source.Snapshot()
		if !ok {
			return
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
