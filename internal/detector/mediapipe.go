package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// idleShutdown is how long the Python process may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// ErrScriptNotFound is returned when pose_service.py cannot be located.
var ErrScriptNotFound = errors.New("pose_service.py not found")

// MediaPipeDetector implements Detector using a Python MediaPipe Pose subprocess.
//
// Each request is a 4-byte big-endian length followed by a JPEG frame; each
// response is a single JSON line.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	stdout     *bufio.Reader
	mu         sync.Mutex
	started    bool
	idleTimer  *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe pose detector.
// The Python process is started lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := findPoseScript()
	if scriptPath == "" {
		return nil, ErrScriptNotFound
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
	}, nil
}

// Detect encodes the frame, sends it to the subprocess and parses the poses it returns.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	poses, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return poses, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, d.scriptPath,
		"--num-poses", strconv.Itoa(d.config.MaxPoses),
		"--min-detection", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-presence", strconv.FormatFloat(d.config.MinPresenceConf, 'f', -1, 64),
		"--min-tracking", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findPoseScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		filepath.Join(execDir, "scripts/pose_service.py"),
		filepath.Join(os.Getenv("HOME"), ".backflip/scripts/pose_service.py"),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".backflip/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonPose is one detected person as emitted by the Python service.
// Landmarks are positional, indexed by MediaPipe landmark number.
type jsonPose struct {
	Landmarks []jsonLandmark `json:"landmarks"`
	Score     float64        `json:"score"`
}

type jsonLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

func parseResponse(line []byte) ([]Pose, error) {
	var response struct {
		Poses []jsonPose `json:"poses"`
		Error string     `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("pose service: %s", response.Error)
	}

	poses := make([]Pose, 0, len(response.Poses))
	for _, p := range response.Poses {
		poses = append(poses, p.toPose())
	}
	return poses, nil
}

// toPose keeps the tracked joints and drops the depth component.
func (p jsonPose) toPose() Pose {
	pose := Pose{
		Joints: make(map[Joint]Point2D, len(jointNames)),
		Score:  p.Score,
	}

	for i := 0; i < NumLandmarks && i < len(p.Landmarks); i++ {
		j := Joint(i)
		if _, tracked := jointNames[j]; !tracked {
			continue
		}
		pose.Joints[j] = Point2D{X: p.Landmarks[i].X, Y: p.Landmarks[i].Y}
	}

	return pose
}
