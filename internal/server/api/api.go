// Package api provides HTTP API handlers for flip detection.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const timeFormat = time.RFC3339

// maxBodyBytes limits request bodies. A landmark sequence for a few minutes
// of 60fps video fits comfortably.
const maxBodyBytes = 16 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeBody decodes a size-limited JSON body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON")
	return false
}
