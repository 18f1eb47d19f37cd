// Package main provides a hook that posts confirmed flips to an HTTP endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Request is the document the executor writes to stdin. The flip is kept raw
// and forwarded as received.
type Request struct {
	Event      string          `json:"event"`
	AnalysisID string          `json:"analysis_id"`
	Source     string          `json:"source"`
	FrameRate  float64         `json:"frame_rate"`
	Flip       json.RawMessage `json:"flip"`
	Config     json.RawMessage `json:"config"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the binding configuration.
type Config struct {
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	TimeoutMs int               `json:"timeout_ms"`
}

type payload struct {
	Event      string          `json:"event"`
	AnalysisID string          `json:"analysis_id"`
	Source     string          `json:"source"`
	FrameRate  float64         `json:"frame_rate"`
	Flip       json.RawMessage `json:"flip"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	status, err := post(req)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("event %s failed: %v", req.Event, err))
		return
	}

	data, _ := json.Marshal(map[string]int{"status": status})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

func post(req Request) (int, error) {
	var cfg Config
	if err := json.Unmarshal(req.Config, &cfg); err != nil {
		return 0, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.URL == "" {
		return 0, fmt.Errorf("url is required")
	}
	timeout := 3 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	body, err := json.Marshal(payload{
		Event:      req.Event,
		AnalysisID: req.AnalysisID,
		Source:     req.Source,
		FrameRate:  req.FrameRate,
		Flip:       req.Flip,
	})
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
