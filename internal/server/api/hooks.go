package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/backflip/internal/hook"
	"github.com/ayusman/backflip/internal/store"
)

// HookHandler lists installed hooks and rescans the hook directory.
type HookHandler struct {
	manager *hook.Manager
}

// NewHookHandler creates a new HookHandler.
func NewHookHandler(m *hook.Manager) *HookHandler {
	return &HookHandler{manager: m}
}

type hookResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Events      []string `json:"events"`
}

type listHooksResponse struct {
	Hooks []hookResponse `json:"hooks"`
}

// ServeHTTP handles GET /api/hooks and POST /api/hooks/discover.
func (h *HookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/hooks"), "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w)
	case path == "discover" && r.Method == http.MethodPost:
		if err := h.manager.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to discover hooks")
			return
		}
		h.list(w)
	case path == "" || path == "discover":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *HookHandler) list(w http.ResponseWriter) {
	hooks := h.manager.List()
	response := listHooksResponse{Hooks: make([]hookResponse, 0, len(hooks))}
	for _, hk := range hooks {
		events := hk.Manifest.Events
		if events == nil {
			events = []string{}
		}
		response.Hooks = append(response.Hooks, hookResponse{
			Name:        hk.Manifest.Name,
			Version:     hk.Manifest.Version,
			Description: hk.Manifest.Description,
			Events:      events,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// BindingHandler handles HTTP requests for hook binding resources.
type BindingHandler struct {
	store   *store.Store
	manager *hook.Manager
}

// NewBindingHandler creates a new BindingHandler. Bindings may only name
// hooks the manager knows.
func NewBindingHandler(s *store.Store, m *hook.Manager) *BindingHandler {
	return &BindingHandler{store: s, manager: m}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/bindings or /api/bindings/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

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

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createBindingRequest struct {
	HookName string          `json:"hook_name"`
	Config   json.RawMessage `json:"config"`
	Enabled  *bool           `json:"enabled"`
}

type updateBindingRequest struct {
	HookName string          `json:"hook_name"`
	Config   json.RawMessage `json:"config"`
	Enabled  *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID        string          `json:"id"`
	HookName  string          `json:"hook_name"`
	Config    json.RawMessage `json:"config"`
	Enabled   bool            `json:"enabled"`
	CreatedAt string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.HookBinding) bindingResponse {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:        b.ID,
		HookName:  b.HookName,
		Config:    config,
		Enabled:   b.Enabled,
		CreatedAt: b.CreatedAt.Format(timeFormat),
	}
}

// checkHook reports whether name is an installed hook, writing the error
// response if it is not.
func (h *BindingHandler) checkHook(w http.ResponseWriter, name string) bool {
	if _, err := h.manager.Get(name); err != nil {
		if errors.Is(err, hook.ErrHookNotFound) {
			writeError(w, http.StatusBadRequest, "Hook not found")
			return false
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify hook")
		return false
	}
	return true
}

// list handles GET /api/bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings. New bindings are enabled unless the
// request says otherwise.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if req.HookName == "" {
		writeError(w, http.StatusBadRequest, "hook_name is required")
		return
	}
	if !h.checkHook(w, req.HookName) {
		return
	}

	config := req.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	b := &store.HookBinding{
		ID:       uuid.New().String(),
		HookName: req.HookName,
		Config:   config,
		Enabled:  enabled,
	}
	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	if req.HookName != "" && req.HookName != b.HookName {
		if !h.checkHook(w, req.HookName) {
			return
		}
		b.HookName = req.HookName
	}
	if req.Config != nil {
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
