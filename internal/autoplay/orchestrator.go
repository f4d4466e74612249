package autoplay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/justchokingaround/nextup/internal/database"
	"github.com/justchokingaround/nextup/internal/jellyfin"
	"github.com/justchokingaround/nextup/internal/player"
)

// Metadata is the item-lookup capability the orchestrator consumes
type Metadata interface {
	Item(ctx context.Context, server, token, itemID string) (*jellyfin.Item, error)
}

// NextResolver finds the episode following the given one, (nil, nil) at end
// of series
type NextResolver interface {
	ResolveNext(ctx context.Context, server, token, seriesID, seasonID string, currentIndex int) (*ResolvedEpisode, error)
}

// QueuePlayer is the playlist capability surface the orchestrator consumes
type QueuePlayer interface {
	QueueSet(ctx context.Context, url string, mode player.QueueMode, title string) error
	QueueLength(ctx context.Context) (int, error)
	QueuePosition(ctx context.Context) (int, error)
	QueueRemove(ctx context.Context, index int) error
	ShowText(ctx context.Context, text string) error
}

// Prefs exposes the preference flags the orchestrator honors
type Prefs interface {
	Autoplay() bool
	ShowNotifications() bool
	VideoTitle() bool
}

// BookmarkStore persists the current-episode bookmark per series
type BookmarkStore interface {
	SaveBookmark(b database.Bookmark) error
}

// Orchestrator ensures at most one in-flight "find and queue the next
// episode" computation is meaningful at a time. Resolution is a multi-step
// asynchronous pipeline; each run captures the request counter at launch and
// re-checks it after every fetch, so a run superseded by a newer episode
// discards its result instead of corrupting the queue.
type Orchestrator struct {
	mu sync.Mutex

	meta      Metadata
	resolver  NextResolver
	player    QueuePlayer
	prefs     Prefs
	bookmarks BookmarkStore // optional
	logger    *slog.Logger

	lastProcessedEpisodeID string
	lastProcessedSeriesID  string
	requestCounter         uint64
	queued                 bool
}

// NewOrchestrator creates an autoplay orchestrator. bookmarks may be nil.
func NewOrchestrator(meta Metadata, resolver NextResolver, queue QueuePlayer, prefs Prefs, bookmarks BookmarkStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		meta:      meta,
		resolver:  resolver,
		player:    queue,
		prefs:     prefs,
		bookmarks: bookmarks,
		logger:    logger,
	}
}

// SetupForEpisode launches the resolution pipeline for the episode that just
// started playing. A duplicate call for the same episode is a no-op. The
// pipeline runs in its own goroutine; the caller is never blocked.
func (o *Orchestrator) SetupForEpisode(ctx context.Context, server, episodeID, token string) {
	if !o.prefs.Autoplay() {
		return
	}

	o.mu.Lock()
	if episodeID == o.lastProcessedEpisodeID {
		o.mu.Unlock()
		return
	}
	o.lastProcessedEpisodeID = episodeID
	o.queued = false
	o.requestCounter++
	requestID := o.requestCounter
	o.mu.Unlock()

	go o.runPipeline(ctx, requestID, server, episodeID, token)
}

// Queued reports whether a next episode has been inserted for the current cycle
func (o *Orchestrator) Queued() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queued
}

// ConsumeQueued implements the end-of-file handshake: it returns true when
// the ending file is about to auto-advance into the already-queued entry
// (and clears the flag), false when the end-of-file is a genuine stop.
func (o *Orchestrator) ConsumeQueued() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.queued {
		return false
	}
	o.queued = false
	return true
}

// ResetForNewFile clears the per-file state so a newly loaded, unrelated file
// is processed cleanly even when it shares an id with a stale prior entry.
func (o *Orchestrator) ResetForNewFile() {
	o.mu.Lock()
	o.lastProcessedEpisodeID = ""
	o.queued = false
	o.mu.Unlock()
}

// isCurrent reports whether requestID is still the newest resolution run
func (o *Orchestrator) isCurrent(requestID uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.requestCounter == requestID
}

// runPipeline resolves and queues the next episode. Missing series or season
// linkage aborts softly; a stale request id aborts silently at every step.
func (o *Orchestrator) runPipeline(ctx context.Context, requestID uint64, server, episodeID, token string) {
	item, err := o.meta.Item(ctx, server, token, episodeID)
	if err != nil {
		o.logger.Warn("autoplay metadata fetch failed", "item", episodeID, "error", err)
		return
	}
	if !item.IsEpisode() || item.SeriesID == "" || item.SeasonID == "" || item.IndexNumber == nil {
		o.logger.Debug("item has no episode linkage, autoplay skipped", "item", episodeID, "type", item.Type)
		return
	}

	if !o.isCurrent(requestID) {
		return
	}

	currentIndex := *item.IndexNumber
	seasonNumber := 0
	if item.ParentIndexNumber != nil {
		seasonNumber = *item.ParentIndexNumber
	}

	o.mu.Lock()
	if o.lastProcessedSeriesID != item.SeriesID {
		o.lastProcessedSeriesID = item.SeriesID
	}
	o.mu.Unlock()

	o.saveBookmark(item, seasonNumber, currentIndex)

	next, err := o.resolver.ResolveNext(ctx, server, token, item.SeriesID, item.SeasonID, currentIndex)
	if err != nil {
		o.logger.Warn("next episode resolution failed", "series", item.SeriesID, "error", err)
		return
	}

	// Resolution is multi-step and slow, re-validate before touching the queue
	if !o.isCurrent(requestID) {
		return
	}

	if next == nil {
		o.logger.Info("end of series, nothing to queue", "series", item.SeriesID, "episode", currentIndex)
		return
	}

	nextSeasonNumber := seasonNumber
	if next.SeasonNumber != nil {
		nextSeasonNumber = *next.SeasonNumber
	}
	title := fmt.Sprintf("%s S%02dE%02d - %s", item.SeriesName, nextSeasonNumber, next.IndexNumber, next.Name)

	o.queueNext(ctx, requestID, next, title)
}

// saveBookmark persists the current-episode bookmark for the series
func (o *Orchestrator) saveBookmark(item *jellyfin.Item, seasonNumber, episodeNumber int) {
	if o.bookmarks == nil {
		return
	}
	err := o.bookmarks.SaveBookmark(database.Bookmark{
		SeriesID:     item.SeriesID,
		SeriesName:   item.SeriesName,
		SeasonID:     item.SeasonID,
		SeasonNumber: seasonNumber,
		Episode:      episodeNumber,
	})
	if err != nil {
		o.logger.Warn("failed to save series bookmark", "series", item.SeriesID, "error", err)
	}
}

// queueNext trims stale playlist entries and inserts exactly one entry after
// the current item. Trim failures are non-fatal; only a successful insert
// sets the queued flag.
func (o *Orchestrator) queueNext(ctx context.Context, requestID uint64, next *ResolvedEpisode, title string) {
	// Remove leftover entries after the play position so the inserted episode
	// is the only upcoming item
	if length, err := o.player.QueueLength(ctx); err == nil {
		if pos, err := o.player.QueuePosition(ctx); err == nil {
			for i := length - 1; i > pos; i-- {
				if err := o.player.QueueRemove(ctx, i); err != nil {
					o.logger.Warn("failed to trim playlist entry", "index", i, "error", err)
				}
			}
		}
	}

	if !o.isCurrent(requestID) {
		return
	}

	displayTitle := ""
	if o.prefs.VideoTitle() {
		displayTitle = title
	}

	if err := o.player.QueueSet(ctx, next.PlayURL, player.QueueInsertNext, displayTitle); err != nil {
		o.logger.Warn("failed to queue next episode", "next", next.ID, "error", err)
		return
	}

	o.mu.Lock()
	if o.requestCounter == requestID {
		o.queued = true
	}
	o.mu.Unlock()

	o.logger.Info("queued next episode", "next", next.ID, "title", title)

	if o.prefs.ShowNotifications() {
		if err := o.player.ShowText(ctx, "Up next: "+title); err != nil {
			o.logger.Debug("failed to show notification", "error", err)
		}
	}
}
