package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniview/aniview/internal/media"
)

// fakeElement is an in-memory media.Element for adapter tests
type fakeElement struct {
	mu sync.Mutex

	dispatch  media.Dispatcher
	adaptive  bool
	native    bool
	loads     []string
	detaches  int
	seeks     []time.Duration
	plays     int
	listeners int
}

func newFakeElement() *fakeElement {
	return &fakeElement{adaptive: true, native: true}
}

func (f *fakeElement) Load(ctx context.Context, url string, opts media.LoadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, url)
	return nil
}

func (f *fakeElement) Detach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches++
	return nil
}

func (f *fakeElement) Seek(ctx context.Context, pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, pos)
	return nil
}

func (f *fakeElement) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeElement) Pause(ctx context.Context) error { return nil }

func (f *fakeElement) Position(ctx context.Context) (time.Duration, error) { return 0, nil }

func (f *fakeElement) Duration(ctx context.Context) (time.Duration, error) { return 0, nil }

func (f *fakeElement) Subscribe(fn func(media.Event)) func() {
	f.mu.Lock()
	f.listeners++
	f.mu.Unlock()

	unsub := f.dispatch.Subscribe(fn)
	return func() {
		f.mu.Lock()
		f.listeners--
		f.mu.Unlock()
		unsub()
	}
}

func (f *fakeElement) SupportsAdaptive() bool        { return f.adaptive }
func (f *fakeElement) CanPlayNative(url string) bool { return f.native }

func (f *fakeElement) emit(ev media.Event) { f.dispatch.Emit(ev) }

func (f *fakeElement) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners
}

func TestOpenClosesPriorSession(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u1", 0, media.LoadOptions{}))
	require.NoError(t, a.Open(context.Background(), "u2", 0, media.LoadOptions{}))

	assert.Equal(t, []string{"u1", "u2"}, el.loads)
	assert.Equal(t, 1, el.detaches, "second open must detach the first session")
	assert.Equal(t, 1, el.listenerCount(), "no duplicate listeners across re-opens")
}

func TestSeekThenPlayOnMetadata(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u", 300*time.Second, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})

	assert.Equal(t, []time.Duration{300 * time.Second}, el.seeks)
	assert.Equal(t, 1, el.plays)
}

func TestSeekSkippedOutsideGuardBand(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	// Offset lands within the final second of the media
	require.NoError(t, a.Open(context.Background(), "u", 600*time.Second-500*time.Millisecond, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})

	assert.Empty(t, el.seeks, "seek past duration-1s must be skipped")
	assert.Equal(t, 1, el.plays, "playback still starts")
}

func TestZeroOffsetDoesNotSeek(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u", 0, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})

	assert.Empty(t, el.seeks)
	assert.Equal(t, 1, el.plays)
}

func TestSeekHappensOncePerSession(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u", 120*time.Second, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})

	assert.Len(t, el.seeks, 1)
}

func TestEventsForwardedDownstream(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	var got []media.EventType
	a.Subscribe(func(ev media.Event) { got = append(got, ev.Type) })

	require.NoError(t, a.Open(context.Background(), "u", 0, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventLoadedMetadata, Duration: 600 * time.Second})
	el.emit(media.Event{Type: media.EventPlay})
	el.emit(media.Event{Type: media.EventTimeUpdate, Position: 5 * time.Second})

	assert.Equal(t, []media.EventType{
		media.EventLoadedMetadata,
		media.EventPlay,
		media.EventTimeUpdate,
	}, got)
}

func TestDownstreamSubscribersSurviveReopen(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	var got []media.EventType
	a.Subscribe(func(ev media.Event) { got = append(got, ev.Type) })

	require.NoError(t, a.Open(context.Background(), "u1", 0, media.LoadOptions{}))
	require.NoError(t, a.Open(context.Background(), "u2", 0, media.LoadOptions{}))
	el.emit(media.Event{Type: media.EventPlay})

	assert.Equal(t, []media.EventType{media.EventPlay}, got)
}

func TestNativeFallback(t *testing.T) {
	el := newFakeElement()
	el.adaptive = false
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u", 0, media.LoadOptions{}))
	assert.True(t, a.UsesNative())
	assert.Equal(t, []string{"u"}, el.loads)
}

func TestNoCapabilityMeansNoSource(t *testing.T) {
	el := newFakeElement()
	el.adaptive = false
	el.native = false
	a := New(el, nil)

	require.NoError(t, a.Open(context.Background(), "u", 0, media.LoadOptions{}))
	assert.Empty(t, el.loads, "nothing must be loaded without a capable path")
	assert.True(t, a.IsOpen())
}

func TestCloseIsIdempotent(t *testing.T) {
	el := newFakeElement()
	a := New(el, nil)

	a.Close() // nothing open yet
	assert.Equal(t, 0, el.detaches)

	require.NoError(t, a.Open(context.Background(), "u", 0, media.LoadOptions{}))
	a.Close()
	a.Close()
	assert.Equal(t, 1, el.detaches)
	assert.False(t, a.IsOpen())
	assert.Equal(t, 0, el.listenerCount())
}
