package app

import (
	"context"
	"errors"
	"log"

	"github.com/ayusman/backflip/internal/hook"
	"github.com/ayusman/backflip/internal/store"
)

// dispatchHooks runs every enabled binding whose hook subscribes to flip
// events. Hooks run in the background; Close waits for them.
func (a *App) dispatchHooks(n Notification) {
	if a.config.Store == nil {
		return
	}

	bindings, err := a.config.Store.Bindings().ListEnabled()
	if err != nil {
		log.Printf("Failed to load hook bindings: %v", err)
		return
	}

	for _, b := range bindings {
		h, err := a.hookMgr.Get(b.HookName)
		if err != nil {
			if errors.Is(err, hook.ErrHookNotFound) {
				log.Printf("Hook %q bound by %s is not installed", b.HookName, b.ID)
				continue
			}
			log.Printf("Failed to look up hook %q: %v", b.HookName, err)
			continue
		}
		if !h.Manifest.Handles(hook.EventFlipConfirmed) {
			continue
		}

		req := hookRequest(n, b)
		a.hooksWG.Add(1)
		go func() {
			defer a.hooksWG.Done()
			a.runHook(h, req)
		}()
	}
}

func (a *App) runHook(h *hook.Hook, req *hook.Request) {
	resp, err := a.hookExec.Execute(context.Background(), h, req)
	if err != nil {
		log.Printf("Hook %s failed for flip %d of %s: %v", h.Manifest.Name, req.Flip.Seq, req.AnalysisID, err)
		return
	}
	if !resp.Success {
		log.Printf("Hook %s reported an error for flip %d of %s: %s", h.Manifest.Name, req.Flip.Seq, req.AnalysisID, resp.Error)
		return
	}
	log.Printf("Hook %s handled flip %d of %s", h.Manifest.Name, req.Flip.Seq, req.AnalysisID)
}

func hookRequest(n Notification, b *store.HookBinding) *hook.Request {
	return &hook.Request{
		Event:      hook.EventFlipConfirmed,
		AnalysisID: n.AnalysisID,
		Source:     n.Source,
		FrameRate:  n.FrameRate,
		Flip: hook.Flip{
			Seq:     n.Flip.Seq,
			Liftoff: n.Flip.LiftoffFrame,
			Apex:    n.Flip.ApexFrame,
			Landing: n.Flip.LandingFrame,
		},
		Config: b.Config,
	}
}
