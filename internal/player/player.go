package player

import "context"

// QueueMode selects how a queue entry is applied to the player playlist
type QueueMode string

const (
	// QueueReplace replaces the whole playlist with the entry
	QueueReplace QueueMode = "replace"
	// QueueInsertNext inserts the entry immediately after the current item
	QueueInsertNext QueueMode = "insert-next"
)

// Controller is the narrow capability surface the session tracker and
// autoplay orchestrator consume. Position and duration are in seconds;
// an error means the player could not produce a reading (not yet loaded,
// IPC gone), which callers treat as "unknown" rather than fatal.
type Controller interface {
	Position(ctx context.Context) (float64, error)
	Duration(ctx context.Context) (float64, error)
	IsPaused(ctx context.Context) (bool, error)
	SeekTo(ctx context.Context, seconds float64) error

	QueueSet(ctx context.Context, url string, mode QueueMode, title string) error
	QueueLength(ctx context.Context) (int, error)
	QueuePosition(ctx context.Context) (int, error)
	QueueRemove(ctx context.Context, index int) error

	// ShowText displays a short on-screen message (OSD)
	ShowText(ctx context.Context, text string) error
}

// Events delivers player lifecycle notifications. Callbacks are invoked
// from the player's monitor goroutine, one at a time.
type Events interface {
	OnFileLoaded(callback func(path string))
	OnPauseChanged(callback func(paused bool))
	OnEndFile(callback func())
	OnShutdown(callback func())
}

// Player is a controllable media player with lifecycle management
type Player interface {
	Controller
	Events

	// Launch starts the player with the given URL and options
	Launch(ctx context.Context, url string, options LaunchOptions) error
	// Stop quits the player and releases its resources
	Stop(ctx context.Context) error
	// Done is closed when the player process has exited
	Done() <-chan struct{}
}

// LaunchOptions contains options for starting the player
type LaunchOptions struct {
	Title      string  `json:"title,omitempty"`
	StartTime  float64 `json:"start_time,omitempty"` // seconds
	Fullscreen bool    `json:"fullscreen"`

	// ExtraArgs are passed through to the player binary
	ExtraArgs []string `json:"extra_args,omitempty"`
}
