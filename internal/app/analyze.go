package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ayusman/backflip/internal/analysis"
	"github.com/ayusman/backflip/internal/capture"
	"github.com/ayusman/backflip/internal/detector"
	"github.com/ayusman/backflip/internal/flip"
	"github.com/ayusman/backflip/internal/store"
)

// Outcome is a finished run: the stored analysis row and its flips.
type Outcome struct {
	Analysis *store.Analysis
	Events   []store.Event
	Result   flip.Result
	// Report is set for offline analyses only.
	Report *analysis.Report
}

// ApexFrames returns the apex frame of every flip that has one.
func (o *Outcome) ApexFrames() []int {
	return o.Result.ApexFrames()
}

// AnalyzeFile opens a video and analyzes it.
func (a *App) AnalyzeFile(ctx context.Context, path string) (*Outcome, error) {
	src, err := capture.OpenVideoFile(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return a.AnalyzeSource(ctx, path, src)
}

// AnalyzeSource samples src on the frame-rate schedule, detects flips and,
// with a store configured, persists the analysis with its events and
// sampled poses. Confirmed flips are published afterwards.
func (a *App) AnalyzeSource(ctx context.Context, name string, src capture.Source) (*Outcome, error) {
	cfg := a.FlipConfig()

	analyzer, err := analysis.New(a.detector, cfg)
	if err != nil {
		return nil, err
	}

	report, err := analyzer.Analyze(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", name, err)
	}

	an := &store.Analysis{
		ID:         uuid.New().String(),
		Source:     name,
		Kind:       store.KindOffline,
		FrameRate:  report.FrameRate,
		DurationMs: report.Duration.Milliseconds(),
		Scheduled:  report.Scheduled,
		Sampled:    report.Sampled,
		Degenerate: report.Result.Degenerate,
	}

	events, err := a.persist(an, cfg, report.Sequence, report.Result)
	if err != nil {
		return nil, err
	}

	for _, e := range events {
		a.publish(notification(an, e))
	}

	return &Outcome{Analysis: an, Events: events, Result: report.Result, Report: report}, nil
}

// Redetect reruns flip detection on the poses stored for an analysis and
// replaces its events. Hooks are not run again.
func (a *App) Redetect(id string, cfg flip.Config) (*Outcome, error) {
	if a.config.Store == nil {
		return nil, fmt.Errorf("redetect %s: no store configured", id)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	an, err := a.config.Store.Analyses().GetByID(id)
	if err != nil {
		return nil, err
	}

	frames, err := a.config.Store.Frames().ListByAnalysis(id)
	if err != nil {
		return nil, err
	}
	seq, err := sequenceFromFrames(frames)
	if err != nil {
		return nil, fmt.Errorf("redetect %s: %w", id, err)
	}

	res, err := flip.Detect(seq, an.FrameRate, cfg)
	if err != nil {
		return nil, fmt.Errorf("redetect %s: %w", id, err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	events := eventsFromResult(res)
	if err := a.config.Store.Events().Replace(id, events); err != nil {
		return nil, err
	}
	if err := a.config.Store.Analyses().UpdateResult(id, res.Degenerate, cfgJSON); err != nil {
		return nil, err
	}
	an.Degenerate = res.Degenerate
	an.Config = cfgJSON

	log.Printf("Redetected %s: %d flips from %d stored frames", id, len(events), len(frames))
	return &Outcome{Analysis: an, Events: events, Result: res}, nil
}

// persist writes the analysis row, its events and its sampled poses in one
// transaction. Without a store the events are only numbered.
func (a *App) persist(an *store.Analysis, cfg flip.Config, seq flip.Sequence, res flip.Result) ([]store.Event, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	an.Config = cfgJSON

	events := eventsFromResult(res)
	for i := range events {
		events[i].AnalysisID = an.ID
		events[i].Seq = i
	}

	st := a.config.Store
	if st == nil {
		return events, nil
	}

	frames, err := framesFromSequence(seq)
	if err != nil {
		return nil, err
	}

	if err := st.SaveAnalysis(an, events, frames); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	return events, nil
}

func notification(an *store.Analysis, e store.Event) Notification {
	return Notification{
		AnalysisID: an.ID,
		Source:     an.Source,
		Kind:       an.Kind,
		FrameRate:  an.FrameRate,
		Flip:       e,
	}
}

// eventsFromResult converts detector events to their stored form.
func eventsFromResult(res flip.Result) []store.Event {
	events := make([]store.Event, len(res.Events))
	for i, e := range res.Events {
		events[i] = storeEvent(e)
	}
	return events
}

func storeEvent(e flip.Event) store.Event {
	se := store.Event{
		LiftoffFrame: e.Liftoff,
		LandingFrame: e.Landing,
	}
	if e.HasApex {
		apex := e.Apex
		se.ApexFrame = &apex
	}
	return se
}

func framesFromSequence(seq flip.Sequence) ([]store.Frame, error) {
	frames := make([]store.Frame, seq.Len())
	for i, pose := range seq.Poses {
		data, err := json.Marshal(pose)
		if err != nil {
			return nil, fmt.Errorf("encode pose %d: %w", i, err)
		}
		frames[i] = store.Frame{Position: i, FrameIndex: seq.Indices[i], Data: data}
	}
	return frames, nil
}

func sequenceFromFrames(frames []store.Frame) (flip.Sequence, error) {
	var seq flip.Sequence
	for _, f := range frames {
		var pose detector.Pose
		if err := json.Unmarshal(f.Data, &pose); err != nil {
			return flip.Sequence{}, fmt.Errorf("decode frame %d: %w", f.Position, err)
		}
		seq.Append(f.FrameIndex, pose)
	}
	return seq, nil
}
