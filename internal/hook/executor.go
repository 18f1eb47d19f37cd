package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single hook run.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a hook runs past the executor timeout.
var ErrTimeout = errors.New("hook timed out")

// Executor runs hooks with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout means DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Timeout returns the per-run limit.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute runs h in its own directory with req as JSON on stdin and parses
// stdout as a Response. A Response with Success false is returned as is,
// without an error.
func (e *Executor) Execute(ctx context.Context, h *Hook, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, h.Executable)
	cmd.Dir = h.Path
	// Children that inherit stdout would otherwise keep Run blocked after a kill.
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, h.Manifest.Name, e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("hook %s failed: %w, stderr: %s", h.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("hook %s failed: %w", h.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, stdout.String())
	}

	return &resp, nil
}
