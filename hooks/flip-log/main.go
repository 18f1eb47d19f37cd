// Package main provides a hook that appends every confirmed flip to a JSON
// lines file.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Request is the document the executor writes to stdin.
type Request struct {
	Event      string          `json:"event"`
	AnalysisID string          `json:"analysis_id"`
	Source     string          `json:"source"`
	FrameRate  float64         `json:"frame_rate"`
	Flip       Flip            `json:"flip"`
	Config     json.RawMessage `json:"config"`
}

// Flip mirrors the executor's event payload.
type Flip struct {
	Seq     int  `json:"seq"`
	Liftoff int  `json:"liftoff_frame"`
	Apex    *int `json:"apex_frame"`
	Landing int  `json:"landing_frame"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the binding configuration.
type Config struct {
	Path string `json:"path"`
}

// entry is one line of the log file.
type entry struct {
	Time       time.Time `json:"time"`
	AnalysisID string    `json:"analysis_id"`
	Source     string    `json:"source"`
	Flip       Flip      `json:"flip"`
	// ApexSeconds is the apex position in video time, absent without an apex.
	ApexSeconds *float64 `json:"apex_seconds,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if err := handle(req); err != nil {
		writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
		return
	}

	writeSuccessResponse()
}

func handle(req Request) error {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Path == "" {
		cfg.Path = "flips.jsonl"
	}

	e := entry{
		Time:       time.Now().UTC(),
		AnalysisID: req.AnalysisID,
		Source:     req.Source,
		Flip:       req.Flip,
	}
	if req.Flip.Apex != nil && req.FrameRate > 0 {
		s := float64(*req.Flip.Apex) / req.FrameRate
		e.ApexSeconds = &s
	}

	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(line, '\n'))
	return err
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
