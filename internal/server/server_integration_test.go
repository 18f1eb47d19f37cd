package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/backflip/internal/app"
	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/store"
)

func repeat(p func() detector.Pose, n int) [][]detector.Pose {
	out := make([][]detector.Pose, n)
	for i := range out {
		out[i] = []detector.Pose{p()}
	}
	return out
}

func flipScript() [][]detector.Pose {
	var s [][]detector.Pose
	s = append(s, repeat(detector.NeutralPose, 4)...)
	s = append(s, repeat(detector.LaunchPose, 1)...)
	s = append(s, repeat(detector.NeutralPose, 1)...)
	s = append(s, repeat(detector.TuckPose, 5)...)
	s = append(s, repeat(detector.InvertedPose, 1)...)
	s = append(s, repeat(detector.NeutralPose, 19)...)
	return s
}

func newTestApp(t *testing.T, cam capture.Camera) (*app.App, *store.Store, *detector.MockDetector) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	det := detector.NewMockDetector()
	det.SetScript(flipScript())

	a := app.New(app.Config{Store: st, Detector: det, Camera: cam, HookDir: t.TempDir(), FrameInterval: time.Millisecond})
	t.Cleanup(func() { a.Close() })
	return a, st, det
}

func TestAPI_Detect(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	type frame struct {
		Index  int                                  `json:"index"`
		Joints map[detector.Joint]detector.Point2D `json:"joints"`
	}
	var frames []frame
	for i, poses := range flipScript() {
		frames = append(frames, frame{Index: i * 2, Joints: poses[0].Joints})
	}
	body, _ := json.Marshal(map[string]any{"frame_rate": 30, "frames": frames})

	resp, err := ts.Client().Post(ts.URL+"/api/detect", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/detect error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got struct {
		ApexFrames    []int `json:"apex_frames"`
		LiftoffFrames []int `json:"liftoff_frames"`
		Events        []struct {
			LiftoffFrame int `json:"liftoff_frame"`
			LandingFrame int `json:"landing_frame"`
		} `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&got)

	// Original indices are echoed back, not positions.
	if len(got.LiftoffFrames) != 1 || got.LiftoffFrames[0] != 8 {
		t.Errorf("liftoff_frames = %v, want [8]", got.LiftoffFrames)
	}
	if len(got.Events) != 1 || got.Events[0].LandingFrame != 22 {
		t.Errorf("events = %+v, want one landing at 22", got.Events)
	}
}

func TestAPI_AnalysisWorkflow(t *testing.T) {
	a, st, _ := newTestApp(t, nil)
	out, err := a.AnalyzeSource(context.Background(), "yard.mp4", capture.NewMockSource(30, time.Second))
	if err != nil {
		t.Fatal(err)
	}

	srv := New(Config{Store: st, App: a})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	// 1. List
	resp, _ := client.Get(ts.URL + "/api/analyses")
	var listed struct {
		Analyses []struct {
			ID string `json:"id"`
		} `json:"analyses"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Analyses) != 1 || listed.Analyses[0].ID != out.Analysis.ID {
		t.Fatalf("analyses = %+v", listed.Analyses)
	}

	// 2. Redetect with a tuck nobody can reach
	resp, _ = client.Post(ts.URL+"/api/analyses/"+out.Analysis.ID+"/redetect", "application/json",
		strings.NewReader(`{"tuck_leg_max": 1}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redetect status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/analyses/" + out.Analysis.ID + "/events")
	var events struct {
		Events []json.RawMessage `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&events)
	resp.Body.Close()
	if len(events.Events) != 0 {
		t.Errorf("events after strict redetect = %d, want 0", len(events.Events))
	}

	// 3. Delete and verify
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/analyses/"+out.Analysis.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/analyses/" + out.Analysis.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_LiveEventsOverWebsocket(t *testing.T) {
	script := flipScript()
	frames := make([]*gocv.Mat, len(script))
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	defer func() {
		for _, m := range frames {
			m.Close()
		}
	}()
	cam := capture.NewMockCamera(frames, false)

	a, st, _ := newTestApp(t, cam)
	srv := New(Config{Store: st, App: a})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/live/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Hub().Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := ts.Client().Post(ts.URL+"/api/live/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var started struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no flip pushed: %v", err)
	}
	var n app.Notification
	if err := json.Unmarshal(msg, &n); err != nil {
		t.Fatalf("bad message %s: %v", msg, err)
	}
	if n.AnalysisID != started.ID || n.Kind != store.KindLive || n.Flip.LiftoffFrame != 4 {
		t.Errorf("notification = %+v", n)
	}

	resp, _ = ts.Client().Post(ts.URL+"/api/live/stop", "application/json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	resp, _ = ts.Client().Post(ts.URL+"/api/live/stop", "application/json", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}
	resp.Body.Close()
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
