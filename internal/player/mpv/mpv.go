package mpv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/diniamo/gopv"

	"github.com/justchokingaround/nextup/internal/player"
)

// eventPollInterval is the cadence of the property poll that synthesizes
// file-loaded / pause / end-file events. gopv exposes request/response only,
// so lifecycle events are derived from property transitions.
const eventPollInterval = 250 * time.Millisecond

// MPVPlayer implements the player.Player interface using mpv with JSON IPC
type MPVPlayer struct {
	mu sync.RWMutex

	// mpv process and IPC
	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform

	// Callbacks
	onFileLoaded   func(path string)
	onPauseChanged func(paused bool)
	onEndFile      func()
	onShutdown     func()

	// Control
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	stopped      bool
	clientClosed bool

	// Configuration
	debug          bool
	loadUserConfig bool
}

// Options configures a new MPVPlayer
type Options struct {
	Debug          bool
	LoadUserConfig bool
}

// New creates a new mpv player instance, verifying the binary is available
func New(opts Options) (*MPVPlayer, error) {
	platform := DetectPlatform()

	if _, err := FindExecutable(platform); err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}

	return &MPVPlayer{
		platform:       platform,
		done:           make(chan struct{}),
		debug:          opts.Debug,
		loadUserConfig: opts.LoadUserConfig,
	}, nil
}

// Launch starts mpv with the given URL and options. It returns once the
// process is started; IPC connection happens asynchronously and failures
// are reported through the shutdown callback.
func (p *MPVPlayer) Launch(ctx context.Context, url string, options player.LaunchOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("player already running")
	}

	mpvExec := Executable(p.platform)
	if _, err := exec.LookPath(mpvExec); err != nil {
		return fmt.Errorf("mpv executable not found in PATH (%s): %w", mpvExec, err)
	}

	ipcConfig, err := NewIPCConfig(p.platform)
	if err != nil {
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	p.ipcConfig = ipcConfig

	args := p.buildArgs(url, options)

	p.cmd = exec.Command(mpvExec, args...)

	// Detach mpv from the terminal entirely so its output and input handling
	// never interleave with ours
	p.cmd.Stdin = nil
	p.cmd.Stdout = nil
	p.cmd.Stderr = nil
	setupProcessAttributes(p.cmd)

	if err := p.cmd.Start(); err != nil {
		p.cleanupIPC()
		p.cmd = nil
		return fmt.Errorf("failed to start %s: %w", mpvExec, err)
	}

	p.stopped = false
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.asyncInitialize(ipcConfig)
	go p.monitorProcess(p.cmd)

	return nil
}

// asyncInitialize waits for the IPC endpoint and connects to it
func (p *MPVPlayer) asyncInitialize(ipcConfig *IPCConfig) {
	initCtx, cancel := context.WithTimeout(p.ctx, 15*time.Second)
	defer cancel()

	if err := p.waitForIPC(initCtx, ipcConfig); err != nil {
		p.failLaunch(fmt.Errorf("timeout waiting for mpv IPC at %s: %w", ipcConfig.Address, err))
		return
	}

	client, err := gopv.Connect(ipcConfig.Address, func(err error) {
		// Connection errors surface when mpv dies, monitorProcess handles
		// the actual teardown
	})
	if err != nil {
		p.failLaunch(fmt.Errorf("failed to connect to mpv IPC at %s: %w", ipcConfig.Address, err))
		return
	}

	p.mu.Lock()
	if p.stopped {
		// Stop raced with initialization, drop the connection
		p.mu.Unlock()
		go func() { _, _ = client.Request("quit") }()
		return
	}
	p.client = client
	p.clientClosed = false
	p.mu.Unlock()

	go p.monitorEvents()
}

// failLaunch kills the process after a failed IPC bootstrap
func (p *MPVPlayer) failLaunch(err error) {
	p.mu.Lock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cleanupIPC()
	p.mu.Unlock()
	_ = err // exit is observed via monitorProcess and the shutdown callback
}

// Stop quits mpv and cleans up resources. Safe to call multiple times.
func (p *MPVPlayer) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// stopLocked stops playback, must be called with the lock held
func (p *MPVPlayer) stopLocked() error {
	if p.stopped {
		return nil
	}
	p.stopped = true

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	// Ask mpv to quit, then force-kill. gopv closes its connection itself
	// when the process side goes away; closing here as well would double-close.
	if p.client != nil && !p.clientClosed {
		p.clientClosed = true
		client := p.client
		p.client = nil
		go func() {
			quitDone := make(chan struct{})
			go func() {
				_, _ = client.Request("quit")
				close(quitDone)
			}()
			select {
			case <-quitDone:
			case <-time.After(500 * time.Millisecond):
			}
		}()
	}

	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil

	p.cleanupIPC()
	return nil
}

// cleanupIPC removes the Unix socket file if one was created
func (p *MPVPlayer) cleanupIPC() {
	if p.ipcConfig != nil && p.ipcConfig.IsSocket {
		_ = os.Remove(p.ipcConfig.Address)
	}
	p.ipcConfig = nil
}

// Done is closed once the mpv process has exited
func (p *MPVPlayer) Done() <-chan struct{} {
	return p.done
}

// request performs a single IPC request against the live client
func (p *MPVPlayer) request(args ...any) (any, error) {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("player not initialized")
	}
	return client.Request(args...)
}

// floatProperty reads a float64 mpv property
func (p *MPVPlayer) floatProperty(name string) (float64, error) {
	result, err := p.request("get_property", name)
	if err != nil {
		return 0, fmt.Errorf("get_property %s: %w", name, err)
	}
	val, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("get_property %s: unexpected type %T", name, result)
	}
	return val, nil
}

// boolProperty reads a bool mpv property
func (p *MPVPlayer) boolProperty(name string) (bool, error) {
	result, err := p.request("get_property", name)
	if err != nil {
		return false, fmt.Errorf("get_property %s: %w", name, err)
	}
	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("get_property %s: unexpected type %T", name, result)
	}
	return val, nil
}

// Position returns the current playback position in seconds
func (p *MPVPlayer) Position(ctx context.Context) (float64, error) {
	return p.floatProperty("time-pos")
}

// Duration returns the duration of the current file in seconds
func (p *MPVPlayer) Duration(ctx context.Context) (float64, error) {
	return p.floatProperty("duration")
}

// IsPaused returns the current pause state
func (p *MPVPlayer) IsPaused(ctx context.Context) (bool, error) {
	return p.boolProperty("pause")
}

// SeekTo seeks to an absolute position in seconds
func (p *MPVPlayer) SeekTo(ctx context.Context, seconds float64) error {
	if _, err := p.request("set_property", "time-pos", seconds); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// QueueSet loads a URL into the playlist. QueueReplace swaps the current
// file, QueueInsertNext places the entry right after the playing item.
func (p *MPVPlayer) QueueSet(ctx context.Context, url string, mode player.QueueMode, title string) error {
	flag := "replace"
	if mode == player.QueueInsertNext {
		flag = "insert-next"
	}

	args := []any{"loadfile", url, flag}
	if title != "" {
		args = append(args, -1, fmt.Sprintf("force-media-title=%s", title))
	}

	if _, err := p.request(args...); err != nil {
		return fmt.Errorf("loadfile %s failed: %w", flag, err)
	}
	return nil
}

// QueueLength returns the number of playlist entries
func (p *MPVPlayer) QueueLength(ctx context.Context) (int, error) {
	count, err := p.floatProperty("playlist-count")
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// QueuePosition returns the index of the currently playing playlist entry
func (p *MPVPlayer) QueuePosition(ctx context.Context) (int, error) {
	pos, err := p.floatProperty("playlist-pos")
	if err != nil {
		return 0, err
	}
	return int(pos), nil
}

// QueueRemove removes the playlist entry at the given index
func (p *MPVPlayer) QueueRemove(ctx context.Context, index int) error {
	if _, err := p.request("playlist-remove", index); err != nil {
		return fmt.Errorf("playlist-remove %d failed: %w", index, err)
	}
	return nil
}

// ShowText displays a short OSD message
func (p *MPVPlayer) ShowText(ctx context.Context, text string) error {
	if _, err := p.request("show-text", text, 4000); err != nil {
		return fmt.Errorf("show-text failed: %w", err)
	}
	return nil
}

// OnFileLoaded sets the file-loaded callback
func (p *MPVPlayer) OnFileLoaded(callback func(path string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFileLoaded = callback
}

// OnPauseChanged sets the pause-change callback
func (p *MPVPlayer) OnPauseChanged(callback func(paused bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPauseChanged = callback
}

// OnEndFile sets the end-of-file callback
func (p *MPVPlayer) OnEndFile(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEndFile = callback
}

// OnShutdown sets the player-exit callback
func (p *MPVPlayer) OnShutdown(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onShutdown = callback
}

// propertySample is one poll of the watched mpv properties. The ok flags
// mark which reads succeeded; a failed read keeps the previous value so a
// transient IPC hiccup never looks like a property transition.
type propertySample struct {
	path     string
	pathOK   bool
	paused   bool
	pausedOK bool
	eof      bool
	eofOK    bool
}

// propertyEvents is the set of lifecycle events one sample produced
type propertyEvents struct {
	fileLoaded bool
	loadedPath string

	pauseChanged bool
	paused       bool

	endFile bool
}

// eventState derives lifecycle events from successive property samples:
// a path change is a file load, a pause flip is a pause change, an
// eof-reached edge is an end-of-file.
type eventState struct {
	lastPath   string
	lastPaused bool
	lastEOF    bool
}

func (e *eventState) observe(s propertySample) propertyEvents {
	if !s.pathOK {
		s.path = e.lastPath
	}
	if !s.pausedOK {
		s.paused = e.lastPaused
	}
	if !s.eofOK {
		s.eof = e.lastEOF
	}

	var out propertyEvents

	hadFile := e.lastPath != ""
	if s.path != "" && s.path != e.lastPath {
		out.fileLoaded = true
		out.loadedPath = s.path
		// New file resets the derived edge state
		e.lastEOF = false
		e.lastPaused = s.paused
	}
	e.lastPath = s.path

	if hadFile && s.paused != e.lastPaused {
		out.pauseChanged = true
		out.paused = s.paused
	}
	e.lastPaused = s.paused

	if s.eof && !e.lastEOF {
		out.endFile = true
	}
	e.lastEOF = s.eof

	return out
}

// monitorEvents polls mpv properties and synthesizes lifecycle events from
// their transitions.
func (p *MPVPlayer) monitorEvents() {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	var state eventState

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.RLock()
			client := p.client
			fileLoaded := p.onFileLoaded
			pauseChanged := p.onPauseChanged
			endFile := p.onEndFile
			p.mu.RUnlock()

			if client == nil {
				return
			}

			var sample propertySample
			if result, err := client.Request("get_property", "path"); err == nil {
				if val, ok := result.(string); ok {
					sample.path = val
					sample.pathOK = true
				}
			}
			if result, err := client.Request("get_property", "pause"); err == nil {
				if val, ok := result.(bool); ok {
					sample.paused = val
					sample.pausedOK = true
				}
			}
			if result, err := client.Request("get_property", "eof-reached"); err == nil {
				if val, ok := result.(bool); ok {
					sample.eof = val
					sample.eofOK = true
				}
			}

			events := state.observe(sample)
			if events.fileLoaded && fileLoaded != nil {
				fileLoaded(events.loadedPath)
			}
			if events.pauseChanged && pauseChanged != nil {
				pauseChanged(events.paused)
			}
			if events.endFile && endFile != nil {
				endFile()
			}
		}
	}
}

// monitorProcess waits for the mpv process to exit and finalizes state
func (p *MPVPlayer) monitorProcess(cmd *exec.Cmd) {
	_ = cmd.Wait()

	p.mu.Lock()
	shutdown := p.onShutdown
	alreadyStopped := p.stopped
	p.mu.Unlock()

	_ = p.Stop(context.Background())

	if shutdown != nil && !alreadyStopped {
		shutdown()
	}
	close(p.done)
}

// buildArgs builds the command-line arguments for mpv
func (p *MPVPlayer) buildArgs(url string, opts player.LaunchOptions) []string {
	args := []string{
		IPCArgument(p.ipcConfig),
		"--idle=yes", // keep mpv alive between playlist entries
		"--no-ytdl",
	}

	if !p.loadUserConfig {
		args = append(args, "--no-config")
	}
	if !p.debug {
		args = append(args, "--msg-level=all=warn")
	}

	if opts.StartTime > 0 {
		args = append(args, fmt.Sprintf("--start=%f", opts.StartTime))
	}
	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if opts.Title != "" {
		args = append(args, fmt.Sprintf("--force-media-title=%s", opts.Title))
	}

	args = append(args, opts.ExtraArgs...)

	// URL must be last
	args = append(args, url)

	return args
}

// waitForIPC waits for the IPC endpoint to come up
func (p *MPVPlayer) waitForIPC(ctx context.Context, ipcConfig *IPCConfig) error {
	timeoutDuration := 5 * time.Second
	if ipcConfig.Type == IPCNamedPipe {
		timeoutDuration = 10 * time.Second
	}

	timeout := time.After(timeoutDuration)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	// Give mpv a moment to start before checking
	time.Sleep(300 * time.Millisecond)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("timeout after %v", timeoutDuration)
		case <-ticker.C:
			if ipcConfig.IsSocket {
				if _, err := os.Stat(ipcConfig.Address); err == nil {
					// Socket exists, give mpv a moment to accept
					time.Sleep(200 * time.Millisecond)
					return nil
				}
			} else if isPipeReady(ipcConfig.Address) {
				time.Sleep(200 * time.Millisecond)
				return nil
			}
		}
	}
}
