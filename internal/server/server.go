// Package server provides the HTTP server for flip detection.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/backflip/internal/app"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/server/api"
	"github.com/ayusman/backflip/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// App enables analysis, hooks and live sessions. Without it only health
	// and landmark detection are served.
	App *app.App
}

// Server represents the HTTP server for the backflip application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	hub    *EventHub
	unsub  func()
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		hub:    NewEventHub(),
	}
	if config.App != nil {
		s.unsub = config.App.Subscribe(s.hub.Publish)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var defaults func() flip.Config
	if s.config.App != nil {
		defaults = s.config.App.FlipConfig
	}
	s.mux.Handle("/api/detect", api.NewDetectHandler(defaults))

	if s.config.Store != nil {
		var runner api.Runner
		if s.config.App != nil {
			runner = s.config.App
		}
		analyses := api.NewAnalysisHandler(s.config.Store, runner)
		s.mux.Handle("/api/analyses", analyses)
		s.mux.Handle("/api/analyses/", analyses)
	}

	if a := s.config.App; a != nil {
		hooks := api.NewHookHandler(a.HookManager())
		s.mux.Handle("/api/hooks", hooks)
		s.mux.Handle("/api/hooks/", hooks)

		if s.config.Store != nil {
			bindings := api.NewBindingHandler(s.config.Store, a.HookManager())
			s.mux.Handle("/api/bindings", bindings)
			s.mux.Handle("/api/bindings/", bindings)
		}

		live := api.NewLiveHandler(a)
		s.mux.Handle("/api/live", live)
		s.mux.Handle("/api/live/start", live)
		s.mux.Handle("/api/live/stop", live)
		s.mux.Handle("/api/live/events", s.hub)
		s.mux.Handle("/api/live/stream", NewStreamHandler(a))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the websocket hub that receives confirmed flips.
func (s *Server) Hub() *EventHub {
	return s.hub
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["live"] = s.config.App.LiveStatus().Running
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close detaches the server from the application's flip notifications.
func (s *Server) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
