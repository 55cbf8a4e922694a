// Package playback orchestrates episode navigation, quality changes and
// session lifecycle for one player view. The Controller is the single
// writer of the playback state; everything else reads it through accessors.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aniview/aniview/internal/api"
	"github.com/aniview/aniview/internal/media"
	"github.com/aniview/aniview/internal/quality"
)

// ErrNotFound is reported when the anime behind a slug cannot be loaded.
// Fatal for the view: no session is opened and nothing is retried.
var ErrNotFound = errors.New("anime not found")

// ErrNotInitialized guards operations invoked before Initialize succeeded
var ErrNotInitialized = errors.New("playback not initialized")

// Session is the slice of the session adapter the controller drives
type Session interface {
	Open(ctx context.Context, url string, startOffset time.Duration, opts media.LoadOptions) error
	Close()
	Subscribe(fn func(media.Event)) func()
	Position(ctx context.Context) (time.Duration, error)
	UsesNative() bool
}

// ResumeSource supplies prior watch progress. Implementations degrade to
// zero progress on any failure; these lookups never error.
type ResumeSource interface {
	LastWatched(ctx context.Context, animeGID string) (episode int, offset time.Duration)
	WatcherFor(ctx context.Context, animeGID string, episode int) (offset time.Duration, viewed bool)
}

// QualityStore persists the per-title quality choice across sessions
type QualityStore interface {
	Quality(contentPath string) (string, error)
	SaveQuality(contentPath, label string) error
}

// State is the authoritative in-memory playback state
type State struct {
	Episode            int
	TotalEpisodes      int
	RequestedQuality   string
	ResolvedQuality    string
	ResumeOffset       time.Duration
	UsesNativePlayback bool
	ViewedSignalSent   bool
}

// Controller owns the playback state for one player view
type Controller struct {
	mu sync.Mutex

	gateway api.Gateway
	session Session
	resume  ResumeSource
	prefs   QualityStore
	logger  *slog.Logger

	loadOpts media.LoadOptions

	anime       *api.Anime
	qualities   []string
	state       State
	unsubscribe func()
	willChange  func()
}

// NewController wires a controller; Initialize must be called before any
// other operation
func NewController(gateway api.Gateway, session Session, resume ResumeSource, prefs QualityStore, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gateway: gateway,
		session: session,
		resume:  resume,
		prefs:   prefs,
		logger:  logger,
	}
}

// SetLoadOptions applies player options used on every session open
func (c *Controller) SetLoadOptions(opts media.LoadOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadOpts = opts
}

// OnSessionWillChange registers a hook fired just before the live session
// is replaced, so progress tracking tied to it can settle first
func (c *Controller) OnSessionWillChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.willChange = fn
}

// Initialize loads the anime descriptor, seeds episode and quality from
// prior progress and the stored preference, and opens the first session
func (c *Controller) Initialize(ctx context.Context, slug string) error {
	anime, err := c.gateway.AnimeBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return fmt.Errorf("load anime %q: %w", slug, err)
	}

	c.mu.Lock()
	c.anime = anime

	c.qualities = append([]string(nil), anime.VideoSizes...)
	sort.SliceStable(c.qualities, func(i, j int) bool {
		return quality.Height(c.qualities[i]) < quality.Height(c.qualities[j])
	})

	c.state.TotalEpisodes = anime.SeriesCount
	if c.state.TotalEpisodes < 1 {
		c.state.TotalEpisodes = 1
	}
	c.state.Episode = 1
	c.state.ResumeOffset = 0

	saved, err := c.prefs.Quality(anime.VideoPath)
	if err != nil {
		c.logger.Debug("quality preference lookup failed", "error", err)
	}
	if saved == "" {
		saved = quality.Auto
	}
	c.state.RequestedQuality = saved
	c.state.ResolvedQuality = quality.Resolve(saved, c.qualities)

	// Track position through the element's own clock
	if c.unsubscribe == nil {
		c.unsubscribe = c.session.Subscribe(c.onMediaEvent)
	}
	c.mu.Unlock()

	// Seed from the most recently watched episode of this title, if any
	if episode, offset := c.resume.LastWatched(ctx, anime.GID); episode > 0 {
		c.mu.Lock()
		c.state.Episode = clamp(episode, 1, c.state.TotalEpisodes)
		c.state.ResumeOffset = offset
		c.mu.Unlock()
	}

	c.fireWillChange()
	return c.openSession(ctx)
}

// fireWillChange runs the registered pre-replacement hook, if any
func (c *Controller) fireWillChange() {
	c.mu.Lock()
	hook := c.willChange
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// onMediaEvent keeps the resume offset in lockstep with playback
func (c *Controller) onMediaEvent(ev media.Event) {
	if ev.Type != media.EventTimeUpdate {
		return
	}
	c.mu.Lock()
	c.state.ResumeOffset = ev.Position.Truncate(time.Second)
	c.mu.Unlock()
}

// NextEpisode advances to the following episode. A no-op at the last one.
// The destination episode's own watcher record decides where to resume,
// the same lookup Initialize uses.
func (c *Controller) NextEpisode(ctx context.Context) error {
	return c.navigate(ctx, 1)
}

// PreviousEpisode steps back one episode. A no-op at the first one.
func (c *Controller) PreviousEpisode(ctx context.Context) error {
	return c.navigate(ctx, -1)
}

func (c *Controller) navigate(ctx context.Context, delta int) error {
	c.mu.Lock()
	if c.anime == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	target := c.state.Episode + delta
	if target < 1 || target > c.state.TotalEpisodes {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// Let progress tracking settle against the outgoing episode first
	c.fireWillChange()

	c.mu.Lock()
	c.state.Episode = target
	c.state.ResumeOffset = 0
	gid := c.anime.GID
	c.mu.Unlock()

	offset, _ := c.resume.WatcherFor(ctx, gid, target)

	c.mu.Lock()
	c.state.ResumeOffset = offset
	c.mu.Unlock()

	return c.openSession(ctx)
}

// ChangeQuality switches renditions on the current episode without losing
// the playback position
func (c *Controller) ChangeQuality(ctx context.Context, label string) error {
	c.mu.Lock()
	if c.anime == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	fallback := c.state.ResumeOffset
	videoPath := c.anime.VideoPath
	c.mu.Unlock()

	// Capture the position before anything touches the session
	pos, err := c.session.Position(ctx)
	if err != nil || pos == 0 {
		pos = fallback
	}

	c.fireWillChange()

	c.mu.Lock()
	c.state.ResumeOffset = pos.Truncate(time.Second)
	c.state.RequestedQuality = label
	c.state.ResolvedQuality = quality.Resolve(label, c.qualities)
	c.mu.Unlock()

	if err := c.prefs.SaveQuality(videoPath, label); err != nil {
		c.logger.Debug("failed to persist quality preference", "error", err)
	}

	return c.openSession(ctx)
}

// openSession resolves the stream URL from current state and re-opens the
// session. Resets the per-session viewed signal.
func (c *Controller) openSession(ctx context.Context) error {
	c.mu.Lock()
	c.state.ViewedSignalSent = false
	url := c.streamURLLocked()
	offset := c.state.ResumeOffset
	opts := c.loadOpts
	opts.Title = fmt.Sprintf("%s — %d/%d", c.anime.Name, c.state.Episode, c.state.TotalEpisodes)
	c.mu.Unlock()

	if err := c.session.Open(ctx, url, offset, opts); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	c.mu.Lock()
	c.state.UsesNativePlayback = c.session.UsesNative()
	c.mu.Unlock()
	return nil
}

// StreamURL resolves the playlist URL for the current state
func (c *Controller) StreamURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anime == nil {
		return ""
	}
	return c.streamURLLocked()
}

func (c *Controller) streamURLLocked() string {
	base := strings.TrimSuffix(c.anime.VideoPath, "/")
	return fmt.Sprintf("%s/%s/%d/playlist.m3u8", base, c.state.ResolvedQuality, c.state.Episode)
}

// Close tears down the view: session released, event tracking unhooked
func (c *Controller) Close() {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Unlock()
	c.session.Close()
}

// Snapshot returns a copy of the playback state for display
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AnimeGID identifies the loaded title, empty before Initialize
func (c *Controller) AnimeGID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anime == nil {
		return ""
	}
	return c.anime.GID
}

// Title is the loaded title's display name
func (c *Controller) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anime == nil {
		return ""
	}
	return c.anime.Name
}

// Description is the loaded title's synopsis
func (c *Controller) Description() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anime == nil {
		return ""
	}
	return c.anime.Description
}

// Qualities lists available labels in ascending height order
func (c *Controller) Qualities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.qualities...)
}

// Episode is the 1-based current episode number
func (c *Controller) Episode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Episode
}

// TotalEpisodes is the episode count of the loaded title
func (c *Controller) TotalEpisodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.TotalEpisodes
}

// AtFirst reports whether Previous would be a no-op
func (c *Controller) AtFirst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Episode <= 1
}

// AtLast reports whether Next would be a no-op
func (c *Controller) AtLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Episode >= c.state.TotalEpisodes
}

// Position is the last known playback position
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ResumeOffset
}

// ViewedSent reports whether the completed signal went out this session
func (c *Controller) ViewedSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ViewedSignalSent
}

// MarkViewedSent latches the completed signal for the current session
func (c *Controller) MarkViewedSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ViewedSignalSent = true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
