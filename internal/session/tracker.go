package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/justchokingaround/nextup/internal/database"
	"github.com/justchokingaround/nextup/internal/jellyfin"
)

const (
	// reportEveryTicks throttles progress reports to one per N ticks
	reportEveryTicks = 10
	// watchedRatio is the position/duration ratio that marks an item watched
	watchedRatio = 0.95
	// eofWindowSeconds treats a position this close to the duration as end-of-file
	eofWindowSeconds = 0.5
	// minResumeSeconds below which a stored resume position is treated as noise
	minResumeSeconds = 15
)

// resumeDelay lets the player finish opening the file before seeking
var resumeDelay = time.Second

// API is the subset of the Jellyfin client the tracker consumes
type API interface {
	Item(ctx context.Context, server, token, itemID string) (*jellyfin.Item, error)
	PlaybackInfo(ctx context.Context, server, token, itemID string) (*jellyfin.PlaybackInfoResponse, error)
	ReportStart(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string) error
	ReportProgress(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string, positionTicks int64, paused bool) error
	ReportStopped(ctx context.Context, server, token, itemID, mediaSourceID, playSessionID string, positionTicks int64) error
	MarkPlayed(ctx context.Context, server, token, itemID string) error
}

// Transport is the player capability surface the tracker reads from
type Transport interface {
	Position(ctx context.Context) (float64, error)
	Duration(ctx context.Context) (float64, error)
	IsPaused(ctx context.Context) (bool, error)
	SeekTo(ctx context.Context, seconds float64) error
}

// Prefs exposes the preference flags the tracker honors
type Prefs interface {
	SyncProgress() bool
}

// HistoryStore persists a local record of finished or abandoned sessions
type HistoryStore interface {
	SaveProgress(rec database.PlaybackRecord) error
}

// Session describes the one item currently being tracked
type Session struct {
	ServerBase string
	ItemID     string
	Token      string

	// Identifiers from the playback-info fetch; empty when that fetch
	// failed, in which case reports fall back to the item id
	PlaySessionID string
	MediaSourceID string

	StartTime time.Time
	Duration  float64 // seconds, 0 until the player reports it

	HasReportedWatched bool

	// Display metadata from the item fetch, used for the local history record
	Name          string
	SeriesID      string
	SeriesName    string
	SeasonNumber  int
	EpisodeNumber int
}

// tickState is the per-session bookkeeping of the tick loop
type tickState struct {
	lastKnownPosition    float64
	lastReportedPosition float64
	tickCount            int
}

// Tracker owns the lifecycle of at most one playback session: it starts and
// stops server-side sessions, runs the 1-second tick loop that throttles
// progress reports, and detects watched and end-of-file conditions from the
// player clock rather than relying on player events alone.
type Tracker struct {
	mu sync.Mutex

	api     API
	player  Transport
	prefs   Prefs
	history HistoryStore // optional
	logger  *slog.Logger

	tickInterval time.Duration

	session *Session
	tick    tickState
	stopCh  chan struct{} // closes when the current session's tick loop must end
}

// NewTracker creates a session tracker. history may be nil.
func NewTracker(api API, player Transport, prefs Prefs, history HistoryStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		api:          api,
		player:       player,
		prefs:        prefs,
		history:      history,
		logger:       logger,
		tickInterval: time.Second,
	}
}

// Current returns a copy of the active session, or nil when idle
func (t *Tracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	snapshot := *t.session
	return &snapshot
}

// Start begins tracking a new playback session for the given item. Any
// existing session is torn down first. When progress sync is disabled no
// session is created. A failed playback-info fetch is non-fatal: reports
// are sent with the item id standing in for the media source id.
func (t *Tracker) Start(ctx context.Context, serverBase, itemID, token string) error {
	// Tear down whatever was playing before
	if err := t.Stop(ctx); err != nil {
		t.logger.Warn("failed to stop previous session", "error", err)
	}

	if !t.prefs.SyncProgress() {
		t.logger.Debug("progress sync disabled, not tracking", "item", itemID)
		return nil
	}

	sess := &Session{
		ServerBase:    serverBase,
		ItemID:        itemID,
		Token:         token,
		MediaSourceID: itemID,
		StartTime:     time.Now(),
	}

	if info, err := t.api.PlaybackInfo(ctx, serverBase, token, itemID); err != nil {
		t.logger.Warn("playback info fetch failed, reporting with defaults", "item", itemID, "error", err)
	} else {
		sess.PlaySessionID = info.PlaySessionID
		if len(info.MediaSources) > 0 && info.MediaSources[0].ID != "" {
			sess.MediaSourceID = info.MediaSources[0].ID
		}
	}

	// The item fetch supplies the resume point and display metadata
	var item *jellyfin.Item
	if fetched, err := t.api.Item(ctx, serverBase, token, itemID); err != nil {
		t.logger.Warn("item fetch failed, no resume", "item", itemID, "error", err)
	} else {
		item = fetched
		sess.Name = item.Name
		sess.SeriesID = item.SeriesID
		sess.SeriesName = item.SeriesName
		if item.ParentIndexNumber != nil {
			sess.SeasonNumber = *item.ParentIndexNumber
		}
		if item.IndexNumber != nil {
			sess.EpisodeNumber = *item.IndexNumber
		}
	}

	if dur, err := t.player.Duration(ctx); err == nil && dur > 0 {
		sess.Duration = dur
	}

	stopCh := make(chan struct{})

	t.mu.Lock()
	t.session = sess
	t.tick = tickState{}
	t.stopCh = stopCh
	t.mu.Unlock()

	if err := t.api.ReportStart(ctx, serverBase, token, itemID, sess.MediaSourceID, sess.PlaySessionID); err != nil {
		t.logger.Warn("playback start report failed", "item", itemID, "error", err)
	}

	t.maybeResume(sess, item)

	go t.runTickLoop(sess, stopCh)

	t.logger.Info("session started",
		"item", itemID,
		"name", sess.Name,
		"play_session", sess.PlaySessionID,
	)
	return nil
}

// maybeResume seeks to the server-side resume point when one applies.
// The seek is deferred so the player can finish opening the file.
func (t *Tracker) maybeResume(sess *Session, item *jellyfin.Item) {
	if item == nil || item.UserData == nil {
		return
	}
	if item.UserData.Played {
		return
	}
	resumeSeconds := jellyfin.TicksToSeconds(item.UserData.PlaybackPositionTicks)
	if resumeSeconds < minResumeSeconds {
		return
	}

	go func() {
		time.Sleep(resumeDelay)

		t.mu.Lock()
		current := t.session == sess
		t.mu.Unlock()
		if !current {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.player.SeekTo(ctx, resumeSeconds); err != nil {
			t.logger.Warn("resume seek failed", "item", sess.ItemID, "position", resumeSeconds, "error", err)
			return
		}
		t.logger.Info("resumed from server position", "item", sess.ItemID, "position", resumeSeconds)
	}()
}

// Stop ends the active session, sending a final stopped report with the best
// known position. Idempotent: a second call is a no-op. Session and tick
// state are cleared unconditionally, report failure included.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	sess := t.session
	tick := t.tick
	stopCh := t.stopCh
	t.session = nil
	t.tick = tickState{}
	t.stopCh = nil
	t.mu.Unlock()

	if sess == nil {
		return nil
	}
	if stopCh != nil {
		close(stopCh)
	}

	// Prefer a live reading, then the tick loop's last position, then the
	// last value actually reported
	position := tick.lastKnownPosition
	if pos, err := t.player.Position(ctx); err == nil && pos > 0 {
		position = pos
	}
	if position <= 0 {
		position = tick.lastReportedPosition
	}

	if err := t.api.ReportStopped(ctx, sess.ServerBase, sess.Token, sess.ItemID,
		sess.MediaSourceID, sess.PlaySessionID, jellyfin.SecondsToTicks(position)); err != nil {
		t.logger.Warn("playback stopped report failed", "item", sess.ItemID, "error", err)
	}

	t.saveHistory(sess, position)

	t.logger.Info("session stopped", "item", sess.ItemID, "position", position)
	return nil
}

// saveHistory writes the local record of the session. Failures are logged,
// never propagated.
func (t *Tracker) saveHistory(sess *Session, position float64) {
	if t.history == nil {
		return
	}
	percent := 0.0
	if sess.Duration > 0 {
		percent = position / sess.Duration * 100
	}
	rec := database.PlaybackRecord{
		ItemID:          sess.ItemID,
		ItemName:        sess.Name,
		SeriesID:        sess.SeriesID,
		SeriesName:      sess.SeriesName,
		Season:          sess.SeasonNumber,
		Episode:         sess.EpisodeNumber,
		PositionSeconds: int(position),
		DurationSeconds: int(sess.Duration),
		ProgressPercent: percent,
		Watched:         sess.HasReportedWatched,
		StartedAt:       sess.StartTime,
		EndedAt:         time.Now(),
	}
	if err := t.history.SaveProgress(rec); err != nil {
		t.logger.Warn("failed to save playback history", "item", sess.ItemID, "error", err)
	}
}

// OnPauseChanged reports progress immediately with the new pause state so a
// manual pause or resume reaches the server before the next scheduled report.
func (t *Tracker) OnPauseChanged(ctx context.Context, paused bool) {
	t.mu.Lock()
	sess := t.session
	if sess == nil {
		t.mu.Unlock()
		return
	}
	position := t.tick.lastKnownPosition
	t.mu.Unlock()

	if pos, err := t.player.Position(ctx); err == nil && pos > 0 {
		position = pos
	}

	reported := t.reportProgress(ctx, sess, position, paused)

	t.mu.Lock()
	if t.session == sess {
		t.tick.tickCount = 0 // avoid double-reporting right after this one
		if pos := position; pos > 0 {
			t.tick.lastKnownPosition = pos
		}
		if reported {
			t.tick.lastReportedPosition = position
		}
	}
	t.mu.Unlock()
}

// runTickLoop drives tick() once per interval until the session ends
func (t *Tracker) runTickLoop(sess *Session, stopCh chan struct{}) {
	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.safeTick(sess)
		}
	}
}

// safeTick shields the ticker goroutine from panics in a tick
func (t *Tracker) safeTick(sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tick panicked", "item", sess.ItemID, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.tickOnce(ctx, sess)
}

// tickOnce samples the player, throttles progress reports, runs the watched
// check after each report, and detects end-of-file from the player clock.
func (t *Tracker) tickOnce(ctx context.Context, sess *Session) {
	t.mu.Lock()
	if t.session != sess {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	// Refresh position and duration outside the lock, IPC reads can stall
	position, posErr := t.player.Position(ctx)
	validPos := posErr == nil && position > 0

	var duration float64
	if sess.Duration <= 0 {
		if dur, err := t.player.Duration(ctx); err == nil && dur > 0 {
			duration = dur
		}
	}

	paused := false
	if p, err := t.player.IsPaused(ctx); err == nil {
		paused = p
	}

	t.mu.Lock()
	if t.session != sess {
		t.mu.Unlock()
		return
	}
	if validPos {
		t.tick.lastKnownPosition = position
	}
	if duration > 0 {
		sess.Duration = duration
	}

	t.tick.tickCount++
	shouldReport := t.tick.tickCount >= reportEveryTicks
	if shouldReport {
		t.tick.tickCount = 0
	}
	reportPos := t.tick.lastKnownPosition
	eof := sess.Duration > 0 && sess.Duration-t.tick.lastKnownPosition <= eofWindowSeconds
	t.mu.Unlock()

	if shouldReport {
		if t.reportProgress(ctx, sess, reportPos, paused) {
			t.mu.Lock()
			if t.session == sess {
				t.tick.lastReportedPosition = reportPos
			}
			t.mu.Unlock()
		}
		t.checkWatched(ctx, sess, reportPos)
	}

	// The tick loop is the primary EOF detector; player end-file events only
	// feed the watched mark
	if eof {
		t.logger.Debug("position reached duration, stopping session", "item", sess.ItemID)
		if err := t.Stop(ctx); err != nil {
			t.logger.Warn("stop after end-of-file failed", "item", sess.ItemID, "error", err)
		}
	}
}

// checkWatched latches the watched flag and notifies the server once the
// played ratio crosses the threshold. Runs only after a progress report, so
// the ratio is sampled at most once per report window.
func (t *Tracker) checkWatched(ctx context.Context, sess *Session, position float64) {
	t.mu.Lock()
	if t.session != sess || sess.HasReportedWatched || sess.Duration <= 0 {
		t.mu.Unlock()
		return
	}
	ratio := position / sess.Duration
	if ratio < watchedRatio {
		t.mu.Unlock()
		return
	}
	sess.HasReportedWatched = true // latch before the network call
	t.mu.Unlock()

	if err := t.api.MarkPlayed(ctx, sess.ServerBase, sess.Token, sess.ItemID); err != nil {
		t.logger.Warn("mark watched failed", "item", sess.ItemID, "error", err)
		return
	}
	t.logger.Info("marked watched", "item", sess.ItemID, "ratio", ratio)
}

// MarkWatchedFromEvent applies the watched check in response to a player
// end-of-file event. It never stops the session: the tick loop owns that.
func (t *Tracker) MarkWatchedFromEvent(ctx context.Context) {
	t.mu.Lock()
	sess := t.session
	position := t.tick.lastKnownPosition
	t.mu.Unlock()
	if sess == nil {
		return
	}
	t.checkWatched(ctx, sess, position)
}

// reportProgress sends one progress report, logging and swallowing failure
func (t *Tracker) reportProgress(ctx context.Context, sess *Session, position float64, paused bool) bool {
	err := t.api.ReportProgress(ctx, sess.ServerBase, sess.Token, sess.ItemID,
		sess.MediaSourceID, sess.PlaySessionID, jellyfin.SecondsToTicks(position), paused)
	if err != nil {
		t.logger.Warn("progress report failed", "item", sess.ItemID, "error", err)
		return false
	}
	return true
}
