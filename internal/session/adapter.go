// Package session binds the shared playback element to one episode source
// at a time. Exactly one session is live per element; opening a new one
// always releases the previous one first.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aniview/aniview/internal/media"
)

// seekGuardBand keeps resume seeks clear of the very end of the media
const seekGuardBand = time.Second

// controlTimeout bounds the element calls issued from event handlers
const controlTimeout = 5 * time.Second

// Adapter presents one playback session over the element, hiding whether
// the adaptive engine or native playback backs it
type Adapter struct {
	mu sync.Mutex

	element media.Element
	logger  *slog.Logger

	// Downstream subscribers survive session changes; the element
	// subscription is rewired once per open
	dispatch    media.Dispatcher
	unsubscribe func()

	token       uuid.UUID
	open        bool
	usesNative  bool
	startOffset time.Duration
	seeked      bool
}

// New creates an adapter around the shared playback element
func New(element media.Element, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		element: element,
		logger:  logger,
	}
}

// Subscribe registers a listener for the live session's media events.
// Listeners persist across session changes; events from superseded sessions
// are never delivered.
func (a *Adapter) Subscribe(fn func(media.Event)) func() {
	return a.dispatch.Subscribe(fn)
}

// Open tears down any previous session, then loads url and arranges the
// seek-then-play sequence once metadata is ready. startOffset is only
// honored when it falls inside the media's duration minus a guard band.
func (a *Adapter) Open(ctx context.Context, url string, startOffset time.Duration, opts media.LoadOptions) error {
	a.mu.Lock()
	a.closeLocked()

	token := uuid.New()
	a.token = token
	a.open = true
	a.startOffset = startOffset
	a.seeked = false

	adaptive := a.element.SupportsAdaptive()
	native := !adaptive && a.element.CanPlayNative(url)
	a.usesNative = native

	if !adaptive && !native {
		// Neither path can play: the session stays sourceless and nothing
		// ever plays. Not an error by contract.
		a.mu.Unlock()
		a.logger.Warn("no playback capability available, session has no source")
		return nil
	}

	a.unsubscribe = a.element.Subscribe(func(ev media.Event) {
		a.handleElementEvent(token, ev)
	})
	a.mu.Unlock()

	return a.element.Load(ctx, url, opts)
}

// handleElementEvent runs the per-session seek-then-play sequence and
// forwards live-session events downstream. Events carrying a stale token
// belong to a superseded session and are dropped.
func (a *Adapter) handleElementEvent(token uuid.UUID, ev media.Event) {
	a.mu.Lock()
	if token != a.token {
		a.mu.Unlock()
		return
	}

	var seekTo time.Duration
	seek := false
	play := false
	if ev.Type == media.EventLoadedMetadata && !a.seeked {
		a.seeked = true
		if a.startOffset > 0 && a.startOffset < ev.Duration-seekGuardBand {
			seek = true
			seekTo = a.startOffset
		}
		play = true
	}
	a.mu.Unlock()

	if seek || play {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		if seek {
			if err := a.element.Seek(ctx, seekTo); err != nil {
				a.logger.Debug("resume seek failed", "offset", seekTo, "error", err)
			}
		}
		if play {
			if err := a.element.Play(ctx); err != nil {
				a.logger.Debug("autoplay failed", "error", err)
			}
		}
	}

	a.dispatch.Emit(ev)
}

// Close releases the live session. Idempotent; safe without an open session.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *Adapter) closeLocked() {
	if !a.open {
		return
	}
	a.open = false
	a.token = uuid.Nil

	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	if err := a.element.Detach(ctx); err != nil {
		a.logger.Debug("element detach failed", "error", err)
	}
}

// IsOpen reports whether a session is live
func (a *Adapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// UsesNative reports whether the live session fell back to native playback
func (a *Adapter) UsesNative() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usesNative
}

// Position reads the element's current playback position
func (a *Adapter) Position(ctx context.Context) (time.Duration, error) {
	return a.element.Position(ctx)
}

// Duration reads the loaded media's duration
func (a *Adapter) Duration(ctx context.Context) (time.Duration, error) {
	return a.element.Duration(ctx)
}
