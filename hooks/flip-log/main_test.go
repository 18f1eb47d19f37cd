package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flips.jsonl")
	cfg, _ := json.Marshal(Config{Path: path})

	apex := 15
	reqs := []Request{
		{Event: "flip.confirmed", AnalysisID: "a1", FrameRate: 30, Flip: Flip{Seq: 0, Liftoff: 10, Apex: &apex, Landing: 22}, Config: cfg},
		{Event: "flip.confirmed", AnalysisID: "a1", FrameRate: 30, Flip: Flip{Seq: 1, Liftoff: 40, Landing: 52}, Config: cfg},
	}
	for _, r := range reqs {
		if err := handle(r); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		got = append(got, e)
	}

	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].ApexSeconds == nil || *got[0].ApexSeconds != 0.5 {
		t.Errorf("apex_seconds = %v, want 0.5", got[0].ApexSeconds)
	}
	if got[1].ApexSeconds != nil {
		t.Errorf("apex_seconds = %v, want absent", *got[1].ApexSeconds)
	}
	if got[1].Flip.Seq != 1 || got[1].Flip.Liftoff != 40 {
		t.Errorf("flip = %+v", got[1].Flip)
	}
}

func TestHandle_BadConfig(t *testing.T) {
	if err := handle(Request{Config: json.RawMessage(`[1,2]`)}); err == nil {
		t.Error("expected error for malformed config")
	}
}
