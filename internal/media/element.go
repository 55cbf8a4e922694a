// Package media abstracts the shared playback element. One element maps to
// one external player surface; sessions take turns owning it and consume
// the standard media events it emits.
package media

import (
	"context"
	"sync"
	"time"
)

// EventType names the media events the element emits
type EventType string

const (
	EventLoadedMetadata EventType = "loadedmetadata"
	EventCanPlay        EventType = "canplay"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventEnded          EventType = "ended"
	EventTimeUpdate     EventType = "timeupdate"
)

// Event is one media event with the playback snapshot at dispatch time
type Event struct {
	Type     EventType
	Position time.Duration
	Duration time.Duration
}

// LoadOptions tune how a source is opened
type LoadOptions struct {
	Title      string
	Fullscreen bool
	Volume     int // 0 keeps the player's own default
}

// Element is the playback surface a streaming session binds to
type Element interface {
	// Load assigns a source and begins loading it. Any previously loaded
	// source must be detached first.
	Load(ctx context.Context, url string, opts LoadOptions) error

	// Detach releases the current source and stops event delivery.
	// Idempotent; safe to call when nothing is loaded.
	Detach(ctx context.Context) error

	// Seek moves the playback position
	Seek(ctx context.Context, pos time.Duration) error

	// Play resumes playback
	Play(ctx context.Context) error

	// Pause suspends playback
	Pause(ctx context.Context) error

	// Position reports the current playback position
	Position(ctx context.Context) (time.Duration, error)

	// Duration reports the loaded media's duration, 0 until metadata is known
	Duration(ctx context.Context) (time.Duration, error)

	// Subscribe registers a listener for media events and returns its
	// unsubscribe function
	Subscribe(fn func(Event)) (unsubscribe func())

	// SupportsAdaptive reports whether the adaptive-streaming engine is
	// available on this platform
	SupportsAdaptive() bool

	// CanPlayNative reports whether the element can play the URL without
	// the adaptive engine
	CanPlayNative(url string) bool
}

// Dispatcher is a small fan-out helper for element implementations
type Dispatcher struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

// Subscribe registers a listener and returns its unsubscribe function
func (d *Dispatcher) Subscribe(fn func(Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners == nil {
		d.listeners = make(map[int]func(Event))
	}
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.listeners, id)
	}
}

// Emit delivers an event to all registered listeners
func (d *Dispatcher) Emit(ev Event) {
	d.mu.Lock()
	fns := make([]func(Event), 0, len(d.listeners))
	for _, fn := range d.listeners {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
