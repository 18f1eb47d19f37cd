package e2e

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

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/backflip/internal/app"
	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/server"
	"github.com/ayusman/backflip/internal/store"
	"github.com/ayusman/backflip/testdata"
)

type eventJSON struct {
	Seq          int  `json:"seq"`
	LiftoffFrame int  `json:"liftoff_frame"`
	ApexFrame    *int `json:"apex_frame"`
	LandingFrame int  `json:"landing_frame"`
}

type analysisJSON struct {
	ID         string      `json:"id"`
	Sampled    int         `json:"sampled"`
	Events     []eventJSON `json:"events"`
	ApexFrames []int       `json:"apex_frames"`
}

func liftoffs(events []eventJSON) []int {
	out := make([]int, 0, len(events))
	for _, e := range events {
		out = append(out, e.LiftoffFrame)
	}
	return out
}

func landings(events []eventJSON) []int {
	out := make([]int, 0, len(events))
	for _, e := range events {
		out = append(out, e.LandingFrame)
	}
	return out
}

func TestE2E_DetectRecordedClips(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	ts := httptest.NewServer(server.New(server.Config{}))
	defer ts.Close()

	names, err := testdata.Clips()
	if err != nil {
		t.Fatalf("Clips() error = %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no recorded clips")
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			clip, err := testdata.LoadClip(name)
			if err != nil {
				t.Fatal(err)
			}
			raw, _ := testdata.LoadRaw(name)

			resp, err := ts.Client().Post(ts.URL+"/api/detect", "application/json", bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("detect error = %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
			}

			var got struct {
				ApexFrames    []int       `json:"apex_frames"`
				LiftoffFrames []int       `json:"liftoff_frames"`
				Events        []eventJSON `json:"events"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(clip.Expected.LiftoffFrames, got.LiftoffFrames); diff != "" {
				t.Errorf("liftoff frames mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(clip.Expected.LandingFrames, landings(got.Events)); diff != "" {
				t.Errorf("landing frames mismatch (-want +got):\n%s", diff)
			}

			res, err := flip.Detect(clip.Sequence(), clip.FrameRate, flip.DefaultConfig())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if diff := cmp.Diff(res.ApexFrames(), got.ApexFrames); diff != "" {
				t.Errorf("apex frames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// scriptFor replays a clip through the mock pose model: one answer per
// scheduled frame, nobody in the frame where the clip has a gap.
func scriptFor(clip *testdata.Clip) [][]detector.Pose {
	last := clip.Frames[len(clip.Frames)-1].Index
	script := make([][]detector.Pose, last+1)
	for _, f := range clip.Frames {
		script[f.Index] = []detector.Pose{{Joints: f.Joints, Score: 1}}
	}
	return script
}

func TestE2E_OfflineWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	clip, err := testdata.LoadClip("two_flips.json")
	if err != nil {
		t.Fatal(err)
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	det := detector.NewMockDetector()
	script := scriptFor(clip)
	det.SetScript(script)

	application := app.New(app.Config{
		Store:    s,
		HookDir:  filepath.Join(tmpDir, "hooks"),
		Detector: det,
	})
	defer application.Close()

	srv := server.New(server.Config{Store: s, App: application})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	// Just short of the last scheduled frame's boundary so the schedule
	// covers exactly len(script) timestamps.
	span := time.Duration(float64(len(script)-1)/clip.FrameRate*float64(time.Second)) - 5*time.Millisecond
	out, err := application.AnalyzeSource(context.Background(), "two_flips.mp4", capture.NewMockSource(clip.FrameRate, span))
	if err != nil {
		t.Fatalf("AnalyzeSource() error = %v", err)
	}
	id := out.Analysis.ID

	get := func(t *testing.T) analysisJSON {
		t.Helper()
		resp, err := client.Get(ts.URL + "/api/analyses/" + id)
		if err != nil {
			t.Fatalf("get analysis error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var a analysisJSON
		json.NewDecoder(resp.Body).Decode(&a)
		return a
	}

	redetect := func(t *testing.T, body string) analysisJSON {
		t.Helper()
		resp, err := client.Post(ts.URL+"/api/analyses/"+id+"/redetect", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("redetect error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("redetect status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		var a analysisJSON
		json.NewDecoder(resp.Body).Decode(&a)
		return a
	}

	t.Run("Stored", func(t *testing.T) {
		a := get(t)
		if a.Sampled != len(clip.Frames) {
			t.Errorf("sampled = %d, want %d", a.Sampled, len(clip.Frames))
		}
		if diff := cmp.Diff(clip.Expected.LiftoffFrames, liftoffs(a.Events)); diff != "" {
			t.Errorf("liftoff frames mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(clip.Expected.LandingFrames, landings(a.Events)); diff != "" {
			t.Errorf("landing frames mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("RedetectStricterTuck", func(t *testing.T) {
		a := redetect(t, `{"tuck_leg_max": 1}`)
		if len(a.Events) != 0 {
			t.Errorf("expected no flips with an impossible tuck, got %d", len(a.Events))
		}
		if len(get(t).Events) != 0 {
			t.Error("redetect did not replace stored events")
		}
	})

	t.Run("RedetectDefaults", func(t *testing.T) {
		a := redetect(t, ``)
		if diff := cmp.Diff(clip.Expected.LiftoffFrames, liftoffs(a.Events)); diff != "" {
			t.Errorf("liftoff frames mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("PoseModelCalledOncePerFrame", func(t *testing.T) {
		// Gaps are scheduled frames where the model found nobody.
		if det.Calls() != len(script) {
			t.Errorf("detector calls = %d, want %d", det.Calls(), len(script))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/analyses/"+id, nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("delete status = %d, want %d", resp.StatusCode, http.StatusNoContent)
		}

		resp, _ = client.Get(ts.URL + "/api/analyses/" + id)
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status after delete = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after app operations")
		}
	})
}
