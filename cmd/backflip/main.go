package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/backflip/internal/app"
	"github.com/ayusman/backflip/internal/config"
	"github.com/ayusman/backflip/internal/server"
	"github.com/ayusman/backflip/internal/store"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		dataDir    = flag.String("data", "", "data directory (default ~/.backflip)")
		hookDir    = flag.String("hooks", "", "hook directory (default <data>/hooks)")
		cameraID   = flag.Int("camera", 0, "camera device for live sessions")
		tuningPath = flag.String("config", "", "tuning file (.json)")
		webDir     = flag.String("web", "", "static files to serve (default: search for web/)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [analyze <video>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dir = filepath.Join(homeDir, ".backflip")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if *hookDir == "" {
		*hookDir = filepath.Join(dir, "hooks")
	}

	var tuning *config.Tuning
	if *tuningPath != "" {
		t, err := config.Load(*tuningPath)
		if err != nil {
			log.Fatalf("Failed to load tuning: %v", err)
		}
		tuning = t
	}

	st, err := store.New(filepath.Join(dir, "backflip.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	a := app.New(app.Config{
		Store:    st,
		HookDir:  *hookDir,
		CameraID: *cameraID,
		Tuning:   tuning,
	})
	defer a.Close()

	if err := a.DiscoverHooks(); err != nil {
		log.Printf("hook discovery failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args := flag.Args(); len(args) > 0 {
		if args[0] != "analyze" || len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		if err := analyze(ctx, a, args[1]); err != nil {
			log.Fatalf("Analysis failed: %v", err)
		}
		return
	}

	fmt.Println("Backflip - Apex Detection")

	static := *webDir
	if static == "" {
		static = findWebDir(dir)
	}
	if static != "" {
		fmt.Printf("Serving static files from: %s\n", static)
	}

	srv := server.New(server.Config{
		StaticDir: static,
		Store:     st,
		App:       a,
	})
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		errCh <- srv.ListenAndServe(*addr)
	}()

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-ctx.Done():
		// Close stops any live session and waits for running hooks.
		log.Println("shutting down")
	}
}

// analyze runs one video through the detector and prints the stored
// analysis with its apex frames as JSON.
func analyze(ctx context.Context, a *app.App, path string) error {
	out, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ID            string `json:"id"`
		Source        string `json:"source"`
		ApexFrames    []int  `json:"apex_frames"`
		LiftoffFrames []int  `json:"liftoff_frames"`
		Degenerate    int    `json:"degenerate"`
	}{
		ID:            out.Analysis.ID,
		Source:        out.Analysis.Source,
		ApexFrames:    out.ApexFrames(),
		LiftoffFrames: out.Result.LiftoffFrames(),
		Degenerate:    out.Result.Degenerate,
	})
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
