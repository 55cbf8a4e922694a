// Package watchsync keeps server-side watch progress in step with local
// playback. It listens to session events, writes watcher records on a
// fixed cadence and on pause/ended, and answers resume lookups with a
// local cache fallback for when the backend is unreachable.
package watchsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/aniview/aniview/internal/api"
	"github.com/aniview/aniview/internal/database"
	"github.com/aniview/aniview/internal/media"
)

const (
	// tickInterval is the steady-state write cadence while playing
	tickInterval = 15 * time.Second

	// completionWindow marks an episode viewed once the remaining time
	// drops to this or below
	completionWindow = 180 * time.Second

	// writeTimeout bounds each synchronous watcher write
	writeTimeout = 5 * time.Second
)

// Playback is the slice of the playback controller the synchronizer reads
type Playback interface {
	AnimeGID() string
	Episode() int
	ViewedSent() bool
	MarkViewedSent()
}

// EventSource delivers media events; the session adapter satisfies it
type EventSource interface {
	Subscribe(fn func(media.Event)) func()
}

// CacheRecord is one locally cached acknowledged progress write
type CacheRecord struct {
	Episode         int
	TimecodeSeconds int
	Viewed          bool
}

// Cache stores the last acknowledged write per (anime, episode) pair
type Cache interface {
	Upsert(animeGID string, episode, timecodeSeconds int, viewed bool) error
	Episode(animeGID string, episode int) (*CacheRecord, error)
	Latest(animeGID string) (*CacheRecord, error)
}

// GormCache backs Cache with the application database
type GormCache struct {
	DB *gorm.DB
}

func (c GormCache) Upsert(animeGID string, episode, timecodeSeconds int, viewed bool) error {
	return database.UpsertWatchCache(c.DB, animeGID, episode, timecodeSeconds, viewed)
}

func (c GormCache) Episode(animeGID string, episode int) (*CacheRecord, error) {
	entry, err := database.GetWatchCache(c.DB, animeGID, episode)
	if err != nil || entry == nil {
		return nil, err
	}
	return &CacheRecord{Episode: entry.Episode, TimecodeSeconds: entry.TimecodeSeconds, Viewed: entry.Viewed}, nil
}

func (c GormCache) Latest(animeGID string) (*CacheRecord, error) {
	entry, err := database.GetLastWatchCache(c.DB, animeGID)
	if err != nil || entry == nil {
		return nil, err
	}
	return &CacheRecord{Episode: entry.Episode, TimecodeSeconds: entry.TimecodeSeconds, Viewed: entry.Viewed}, nil
}

// snapshot is the playback moment the next write will report
type snapshot struct {
	gid      string
	episode  int
	position time.Duration
	duration time.Duration
	valid    bool
}

// Synchronizer drives watcher writes for whatever episode is playing
type Synchronizer struct {
	mu sync.Mutex

	gateway api.Gateway
	cache   Cache
	logger  *slog.Logger

	playback    Playback
	unsubscribe func()
	cancelTick  context.CancelFunc
	cur         snapshot
}

// NewSynchronizer wires a synchronizer; Bind and Start complete the setup
func NewSynchronizer(gateway api.Gateway, cache Cache, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		gateway: gateway,
		cache:   cache,
		logger:  logger,
	}
}

// Bind attaches the playback state the synchronizer reports against
func (s *Synchronizer) Bind(p Playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = p
}

// Start subscribes to session events. Call Stop to detach.
func (s *Synchronizer) Start(events EventSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = events.Subscribe(s.handleEvent)
}

// Stop detaches from events and halts the write cadence
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.stopTimerLocked()
	s.mu.Unlock()
}

// SessionWillChange settles progress tracking before the live session is
// replaced: the cadence stops and the outgoing snapshot is written out
func (s *Synchronizer) SessionWillChange() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	s.write(false)

	s.mu.Lock()
	s.cur = snapshot{}
	s.mu.Unlock()
}

func (s *Synchronizer) handleEvent(ev media.Event) {
	s.mu.Lock()
	p := s.playback
	s.mu.Unlock()
	if p == nil {
		return
	}

	gid := p.AnimeGID()
	episode := p.Episode()

	s.mu.Lock()
	s.cur.gid = gid
	s.cur.episode = episode
	s.cur.valid = gid != ""
	if ev.Duration > 0 {
		s.cur.duration = ev.Duration
	}
	if ev.Position > 0 || ev.Type == media.EventTimeUpdate {
		s.cur.position = ev.Position
	}
	s.mu.Unlock()

	switch ev.Type {
	case media.EventPlay:
		s.mu.Lock()
		s.startTimerLocked()
		s.mu.Unlock()
	case media.EventPause:
		s.mu.Lock()
		s.stopTimerLocked()
		s.mu.Unlock()
		s.write(false)
	case media.EventEnded:
		s.mu.Lock()
		s.stopTimerLocked()
		s.mu.Unlock()
		s.write(true)
	}
}

// write reports the current snapshot. forced marks the episode viewed
// regardless of the completion window; the viewed signal still goes out
// at most once per session.
func (s *Synchronizer) write(forced bool) {
	s.mu.Lock()
	cur := s.cur
	p := s.playback
	s.mu.Unlock()

	if !cur.valid || p == nil {
		return
	}

	viewed := forced || isViewed(cur.position, cur.duration)
	if viewed && p.ViewedSent() {
		return
	}

	upd := api.WatcherUpdate{
		AnimeGID:     cur.gid,
		SeriesNumber: cur.episode,
		Timecode:     int(cur.position / time.Second),
		Viewed:       viewed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.gateway.PutWatcher(ctx, upd); err != nil {
		s.logger.Warn("progress write failed",
			"anime", cur.gid, "episode", cur.episode, "error", err)
		return
	}

	if err := s.cache.Upsert(cur.gid, cur.episode, upd.Timecode, viewed); err != nil {
		s.logger.Debug("progress cache update failed", "error", err)
	}
	if viewed {
		p.MarkViewedSent()
	}
}

// Flush issues a final fire-and-forget write on teardown. The process may
// exit before delivery; the local cache keeps the acknowledged state only.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	s.stopTimerLocked()
	cur := s.cur
	s.mu.Unlock()

	if !cur.valid {
		return
	}

	s.gateway.PutWatcherAsync(api.WatcherUpdate{
		AnimeGID:     cur.gid,
		SeriesNumber: cur.episode,
		Timecode:     int(cur.position / time.Second),
		Viewed:       isViewed(cur.position, cur.duration),
	})
}

// LastWatched answers the title-wide resume lookup. Any failure degrades
// to the local cache, then to zero progress.
func (s *Synchronizer) LastWatched(ctx context.Context, animeGID string) (int, time.Duration) {
	last, err := s.gateway.LastWatched(ctx, animeGID)
	if err == nil {
		return last.SeriesNumber, secondsToDuration(last.Timecode)
	}
	if errors.Is(err, api.ErrNoWatcher) {
		return 0, 0
	}
	s.logger.Debug("last watched lookup failed, trying cache",
		"anime", animeGID, "error", err)

	entry, cerr := s.cache.Latest(animeGID)
	if cerr != nil || entry == nil {
		return 0, 0
	}
	return entry.Episode, time.Duration(entry.TimecodeSeconds) * time.Second
}

// WatcherFor answers the per-episode resume lookup with the same
// degradation order as LastWatched
func (s *Synchronizer) WatcherFor(ctx context.Context, animeGID string, episode int) (time.Duration, bool) {
	w, err := s.gateway.Watcher(ctx, animeGID, episode)
	if err == nil {
		return secondsToDuration(w.Timecode), w.Viewed
	}
	if errors.Is(err, api.ErrNoWatcher) {
		return 0, false
	}
	s.logger.Debug("watcher lookup failed, trying cache",
		"anime", animeGID, "episode", episode, "error", err)

	entry, cerr := s.cache.Episode(animeGID, episode)
	if cerr != nil || entry == nil {
		return 0, false
	}
	return time.Duration(entry.TimecodeSeconds) * time.Second, entry.Viewed
}

// startTimerLocked restarts the write cadence. Any previous cadence is
// cancelled first so at most one runs.
func (s *Synchronizer) startTimerLocked() {
	s.stopTimerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTick = cancel
	go s.runCadence(ctx)
}

func (s *Synchronizer) stopTimerLocked() {
	if s.cancelTick != nil {
		s.cancelTick()
		s.cancelTick = nil
	}
}

func (s *Synchronizer) runCadence(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.write(false)
		}
	}
}

func isViewed(position, duration time.Duration) bool {
	return duration > 0 && duration-position <= completionWindow
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
