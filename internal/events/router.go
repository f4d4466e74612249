package events

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/justchokingaround/nextup/internal/player"
)

// SessionTracker is the tracker surface the router drives
type SessionTracker interface {
	Start(ctx context.Context, server, itemID, token string) error
	Stop(ctx context.Context) error
	OnPauseChanged(ctx context.Context, paused bool)
	MarkWatchedFromEvent(ctx context.Context)
}

// AutoplayOrchestrator is the orchestrator surface the router drives
type AutoplayOrchestrator interface {
	SetupForEpisode(ctx context.Context, server, episodeID, token string)
	ConsumeQueued() bool
	ResetForNewFile()
}

// Router wires player lifecycle events to the session tracker and the
// autoplay orchestrator. It is deliberately thin: every decision beyond
// "which component handles this event" lives in those two components.
type Router struct {
	mu sync.Mutex

	tracker SessionTracker
	orch    AutoplayOrchestrator
	logger  *slog.Logger

	server string
	token  string

	// expectAdvance is set when an end-of-file was the prelude to an
	// autoplay advance; the next file-loaded then belongs to the queued
	// episode and must not reset the orchestrator
	expectAdvance bool
}

// NewRouter creates an event router for one server credential
func NewRouter(tracker SessionTracker, orch AutoplayOrchestrator, server, token string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		tracker: tracker,
		orch:    orch,
		logger:  logger,
		server:  server,
		token:   token,
	}
}

// Bind registers the router's handlers on the player's event surface
func (r *Router) Bind(events player.Events) {
	events.OnFileLoaded(r.HandleFileLoaded)
	events.OnPauseChanged(r.HandlePauseChanged)
	events.OnEndFile(r.HandleEndFile)
	events.OnShutdown(r.HandleShutdown)
}

// HandleFileLoaded starts tracking and autoplay resolution for the loaded item
func (r *Router) HandleFileLoaded(path string) {
	itemID := ItemIDFromPath(path)
	if itemID == "" {
		r.logger.Debug("loaded file is not a server item, ignoring", "path", path)
		return
	}

	r.mu.Lock()
	advance := r.expectAdvance
	r.expectAdvance = false
	r.mu.Unlock()

	if !advance {
		// A fresh file, not the queued autoplay product
		r.orch.ResetForNewFile()
	}

	ctx := context.Background()
	if err := r.tracker.Start(ctx, r.server, itemID, r.token); err != nil {
		r.logger.Warn("failed to start session", "item", itemID, "error", err)
	}
	r.orch.SetupForEpisode(ctx, r.server, itemID, r.token)
}

// HandlePauseChanged forwards the new pause state to the tracker
func (r *Router) HandlePauseChanged(paused bool) {
	r.tracker.OnPauseChanged(context.Background(), paused)
}

// HandleEndFile distinguishes an autoplay advance from a genuine stop
func (r *Router) HandleEndFile() {
	ctx := context.Background()

	// Player-fired EOF is a secondary trigger for the watched mark only
	r.tracker.MarkWatchedFromEvent(ctx)

	if r.orch.ConsumeQueued() {
		r.mu.Lock()
		r.expectAdvance = true
		r.mu.Unlock()
		return
	}

	if err := r.tracker.Stop(ctx); err != nil {
		r.logger.Warn("failed to stop session on end-of-file", "error", err)
	}
}

// HandleShutdown tears down the session when the player exits
func (r *Router) HandleShutdown() {
	if err := r.tracker.Stop(context.Background()); err != nil {
		r.logger.Warn("failed to stop session on shutdown", "error", err)
	}
}

// ItemIDFromPath extracts the item id from a stream URL of the form
// {server}/Videos/{id}/stream?... Returns "" for anything else.
func ItemIDFromPath(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "Videos" && parts[i+2] == "stream" {
			id, err := url.PathUnescape(parts[i+1])
			if err != nil {
				return ""
			}
			return id
		}
	}
	return ""
}
