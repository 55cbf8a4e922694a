// Package mpv implements the playback element on top of an external mpv
// process controlled over its JSON IPC. Property polling is translated into
// the standard media events the playback core consumes.
package mpv

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/diniamo/gopv"

	"github.com/aniview/aniview/internal/config"
	"github.com/aniview/aniview/internal/media"
)

const (
	pollInterval = 500 * time.Millisecond
	quitTimeout  = 500 * time.Millisecond
	initTimeout  = 15 * time.Second
)

// Element drives one mpv process as a media.Element
type Element struct {
	mu sync.RWMutex

	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform

	dispatch media.Dispatcher
	logger   *slog.Logger

	// Poll-loop state
	pollCancel context.CancelFunc
	metaKnown  bool
	paused     *bool
	endedSent  bool
	lastPos    time.Duration
	lastDur    time.Duration

	available      bool
	loadUserConfig bool
}

var _ media.Element = (*Element)(nil)

// New creates an mpv element. A missing mpv binary is not an error: the
// element reports itself unsupported and every session stays silently
// sourceless, which is the defined degradation.
func New(cfg *config.PlayerConfig, logger *slog.Logger) *Element {
	if logger == nil {
		logger = slog.Default()
	}
	platform := DetectPlatform()
	_, err := FindExecutable(platform)

	return &Element{
		platform:       platform,
		logger:         logger,
		available:      err == nil,
		loadUserConfig: cfg != nil && cfg.LoadUserConfig,
	}
}

// SupportsAdaptive reports whether mpv (and with it the HLS demuxer) is
// available on this platform
func (e *Element) SupportsAdaptive() bool {
	return e.available
}

// CanPlayNative reports whether a direct source assignment would play
func (e *Element) CanPlayNative(url string) bool {
	return e.available
}

// Subscribe registers a media event listener
func (e *Element) Subscribe(fn func(media.Event)) func() {
	return e.dispatch.Subscribe(fn)
}

// Load detaches any previous source, launches mpv and begins loading url.
// Events start flowing once the IPC connection is up and metadata is known.
func (e *Element) Load(ctx context.Context, url string, opts media.LoadOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.available {
		return fmt.Errorf("mpv not found in PATH")
	}

	if err := e.detachLocked(); err != nil {
		return fmt.Errorf("failed to detach previous source: %w", err)
	}

	ipcConfig, err := NewIPCConfig(e.platform)
	if err != nil {
		return fmt.Errorf("failed to create IPC config: %w", err)
	}
	e.ipcConfig = ipcConfig

	args := e.buildArgs(url, opts)
	e.cmd = exec.Command(Executable(e.platform), args...)

	// Detach mpv from the terminal so it cannot steal input from the TUI
	// or corrupt its output
	e.cmd.Stdin = nil
	e.cmd.Stdout = nil
	e.cmd.Stderr = nil
	setupProcessAttributes(e.cmd)

	if err := e.cmd.Start(); err != nil {
		e.cleanupIPC()
		return fmt.Errorf("failed to start mpv: %w", err)
	}

	e.metaKnown = false
	e.paused = nil
	e.endedSent = false
	e.lastPos = 0
	e.lastDur = 0

	pollCtx, cancel := context.WithCancel(context.Background())
	e.pollCancel = cancel

	go e.connect(pollCtx, ipcConfig)
	go e.monitorProcess(e.cmd)

	return nil
}

// connect waits for the IPC endpoint, attaches the gopv client and starts
// the event poll loop
func (e *Element) connect(ctx context.Context, ipcConfig *IPCConfig) {
	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := waitForIPC(initCtx, ipcConfig); err != nil {
		e.logger.Warn("mpv IPC never came up", "address", ipcConfig.Address, "error", err)
		_ = e.Detach(context.Background())
		return
	}

	client, err := gopv.Connect(ConnectionString(ipcConfig), func(err error) {
		e.logger.Debug("mpv IPC error", "error", err)
	})
	if err != nil {
		e.logger.Warn("failed to connect to mpv IPC", "address", ipcConfig.Address, "error", err)
		_ = e.Detach(context.Background())
		return
	}

	e.mu.Lock()
	e.client = client
	e.mu.Unlock()

	e.poll(ctx)
}

// poll reads playback properties on a fixed cadence and synthesizes media
// events from their transitions
func (e *Element) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce()
		}
	}
}

func (e *Element) pollOnce() {
	e.mu.Lock()
	client := e.client
	if client == nil {
		e.mu.Unlock()
		return
	}

	pos := requestFloat(client, "time-pos")
	dur := requestFloat(client, "duration")
	paused := requestBool(client, "pause")
	eof := requestBool(client, "eof-reached")

	position := time.Duration(pos * float64(time.Second))
	duration := time.Duration(dur * float64(time.Second))
	if duration > 0 {
		e.lastDur = duration
	}
	if position > 0 {
		e.lastPos = position
	}

	snapshot := media.Event{Position: e.lastPos, Duration: e.lastDur}

	var events []media.Event

	if !e.metaKnown && duration > 0 {
		e.metaKnown = true
		events = append(events,
			withType(snapshot, media.EventLoadedMetadata),
			withType(snapshot, media.EventCanPlay),
		)
	}

	if e.metaKnown {
		switch {
		case e.paused == nil:
			e.paused = &paused
			if paused {
				events = append(events, withType(snapshot, media.EventPause))
			} else {
				events = append(events, withType(snapshot, media.EventPlay))
			}
		case *e.paused != paused:
			*e.paused = paused
			if paused {
				events = append(events, withType(snapshot, media.EventPause))
			} else {
				events = append(events, withType(snapshot, media.EventPlay))
			}
		}

		if eof && !e.endedSent {
			e.endedSent = true
			events = append(events, withType(snapshot, media.EventEnded))
		} else if !paused && !eof {
			events = append(events, withType(snapshot, media.EventTimeUpdate))
		}
	}
	e.mu.Unlock()

	for _, ev := range events {
		e.dispatch.Emit(ev)
	}
}

func withType(ev media.Event, t media.EventType) media.Event {
	ev.Type = t
	return ev
}

// monitorProcess waits for the mpv process and treats an unexpected exit as
// a pause: the position gets flushed and the timer stops, but the episode is
// not marked viewed
func (e *Element) monitorProcess(cmd *exec.Cmd) {
	_ = cmd.Wait()

	e.mu.Lock()
	stale := e.cmd != cmd
	snapshot := media.Event{Position: e.lastPos, Duration: e.lastDur, Type: media.EventPause}
	ended := e.endedSent
	meta := e.metaKnown
	e.mu.Unlock()

	if stale {
		return
	}

	if meta && !ended {
		e.dispatch.Emit(snapshot)
	}
	_ = e.Detach(context.Background())
}

// Detach tears the session down: poll loop, IPC client, process, socket file
func (e *Element) Detach(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detachLocked()
}

func (e *Element) detachLocked() error {
	if e.pollCancel != nil {
		e.pollCancel()
		e.pollCancel = nil
	}

	if e.client != nil {
		client := e.client
		e.client = nil
		go func() {
			// Ask mpv to quit but never wait on a dead pipe. The process
			// kill below cleans up regardless.
			done := make(chan struct{})
			go func() {
				_, _ = client.Request("quit")
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(quitTimeout):
			}
		}()
	}

	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	e.cmd = nil

	e.cleanupIPC()
	e.metaKnown = false
	e.paused = nil

	return nil
}

func (e *Element) cleanupIPC() {
	if e.ipcConfig != nil {
		e.ipcConfig.Cleanup()
		e.ipcConfig = nil
	}
}

// Seek moves the playback position
func (e *Element) Seek(ctx context.Context, pos time.Duration) error {
	client, err := e.liveClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "time-pos", pos.Seconds()); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// Play resumes playback
func (e *Element) Play(ctx context.Context) error {
	client, err := e.liveClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "pause", false); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	return nil
}

// Pause suspends playback
func (e *Element) Pause(ctx context.Context) error {
	client, err := e.liveClient()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", "pause", true); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	return nil
}

// Position reports the current playback position
func (e *Element) Position(ctx context.Context) (time.Duration, error) {
	client, err := e.liveClient()
	if err != nil {
		return 0, err
	}
	return time.Duration(requestFloat(client, "time-pos") * float64(time.Second)), nil
}

// Duration reports the loaded media's duration
func (e *Element) Duration(ctx context.Context) (time.Duration, error) {
	client, err := e.liveClient()
	if err != nil {
		return 0, err
	}
	return time.Duration(requestFloat(client, "duration") * float64(time.Second)), nil
}

func (e *Element) liveClient() (*gopv.Client, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil, fmt.Errorf("no source attached")
	}
	return e.client, nil
}

func (e *Element) buildArgs(url string, opts media.LoadOptions) []string {
	args := []string{
		IPCArgument(e.ipcConfig),
		"--idle=yes",
		"--no-ytdl",
		"--msg-level=all=warn",
	}
	if !e.loadUserConfig {
		args = append(args, "--no-config")
	}
	if opts.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if opts.Volume > 0 {
		args = append(args, fmt.Sprintf("--volume=%d", opts.Volume))
	}
	if opts.Title != "" {
		args = append(args, fmt.Sprintf("--force-media-title=%s", opts.Title))
	}
	// URL must be last
	args = append(args, url)
	return args
}

func requestFloat(client *gopv.Client, property string) float64 {
	result, err := client.Request("get_property", property)
	if err != nil {
		return 0
	}
	val, ok := result.(float64)
	if !ok {
		return 0
	}
	return val
}

func requestBool(client *gopv.Client, property string) bool {
	result, err := client.Request("get_property", property)
	if err != nil {
		return false
	}
	val, ok := result.(bool)
	if !ok {
		return false
	}
	return val
}
