// Package api talks to the anime site's REST backend: title metadata and
// the per-episode watcher records that hold watch progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apihttp "github.com/aniview/aniview/internal/api/http"
	"github.com/aniview/aniview/internal/config"
)

// ErrNotFound is returned when the backend has no anime for a slug
var ErrNotFound = errors.New("anime not found")

// ErrNoWatcher is returned when no progress record exists for a lookup
var ErrNoWatcher = errors.New("no watcher record")

// flushTimeout bounds the fire-and-forget write issued on teardown
const flushTimeout = 2 * time.Second

// Gateway is the backend surface the playback core consumes
type Gateway interface {
	// AnimeBySlug resolves a catalog slug into a full anime descriptor
	AnimeBySlug(ctx context.Context, slug string) (*Anime, error)

	// Watcher fetches the progress record for one episode.
	// Returns ErrNoWatcher when the episode was never watched.
	Watcher(ctx context.Context, animeGID string, episode int) (*Watcher, error)

	// LastWatched fetches the most recently updated record across all
	// episodes of a title. Returns ErrNoWatcher when none exists.
	LastWatched(ctx context.Context, animeGID string) (*LastWatched, error)

	// PutWatcher upserts a progress record
	PutWatcher(ctx context.Context, upd WatcherUpdate) error

	// PutWatcherAsync delivers an upsert without waiting for the result.
	// The write may be lost; callers must not depend on it.
	PutWatcherAsync(upd WatcherUpdate)
}

// Client is the resty-backed Gateway implementation
type Client struct {
	baseURL    string
	httpClient *apihttp.Client
	logger     *slog.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a gateway client from the application configuration
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := apihttp.NewClient(apihttp.ClientConfig{
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		UserAgent:  "aniview/1.0",
		AuthToken:  cfg.API.Token,
		Debug:      cfg.Advanced.Debug,
		Logger:     logger,
	})

	return &Client{
		baseURL:    cfg.API.BaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// AnimeBySlug resolves a slug via GET /api/v1/anime/link
func (c *Client) AnimeBySlug(ctx context.Context, slug string) (*Anime, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL+"/api/v1/anime/link", map[string]string{
		"url": slug,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch anime %q: %w", slug, err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrNotFound
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch anime %q: %w", slug, c.apiError(resp.Body(), resp.StatusCode()))
	}

	var anime Anime
	if err := json.Unmarshal(resp.Body(), &anime); err != nil {
		return nil, fmt.Errorf("parse anime %q: %w", slug, err)
	}
	if anime.GID == "" {
		return nil, ErrNotFound
	}
	return &anime, nil
}

// Watcher fetches one episode's progress record
func (c *Client) Watcher(ctx context.Context, animeGID string, episode int) (*Watcher, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL+"/api/v1/watcher/", map[string]string{
		"anime_gid":     animeGID,
		"series_number": strconv.Itoa(episode),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch watcher %s/%d: %w", animeGID, episode, err)
	}
	// The backend answers 400 for a never-watched episode
	if resp.StatusCode() >= 400 {
		return nil, ErrNoWatcher
	}
	if len(resp.Body()) == 0 {
		return nil, ErrNoWatcher
	}

	var w Watcher
	if err := json.Unmarshal(resp.Body(), &w); err != nil {
		return nil, fmt.Errorf("parse watcher %s/%d: %w", animeGID, episode, err)
	}
	return &w, nil
}

// LastWatched fetches the title-wide resume point via need_last=true
func (c *Client) LastWatched(ctx context.Context, animeGID string) (*LastWatched, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL+"/api/v1/watcher/", map[string]string{
		"anime_gid": animeGID,
		"need_last": "true",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch last watched %s: %w", animeGID, err)
	}
	if resp.StatusCode() >= 400 || len(resp.Body()) == 0 {
		return nil, ErrNoWatcher
	}

	var last LastWatched
	if err := json.Unmarshal(resp.Body(), &last); err != nil {
		return nil, fmt.Errorf("parse last watched %s: %w", animeGID, err)
	}
	if last.SeriesNumber == 0 {
		return nil, ErrNoWatcher
	}
	return &last, nil
}

// PutWatcher upserts a progress record
func (c *Client) PutWatcher(ctx context.Context, upd WatcherUpdate) error {
	resp, err := c.httpClient.Put(ctx, c.baseURL+"/api/v1/watcher/", upd)
	if err != nil {
		return fmt.Errorf("put watcher %s/%d: %w", upd.AnimeGID, upd.SeriesNumber, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("put watcher %s/%d: %w", upd.AnimeGID, upd.SeriesNumber,
			c.apiError(resp.Body(), resp.StatusCode()))
	}
	return nil
}

// PutWatcherAsync fires the upsert from a detached goroutine and drops the
// result. Used on page-exit style teardown where blocking is not an option.
func (c *Client) PutWatcherAsync(upd WatcherUpdate) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := c.PutWatcher(ctx, upd); err != nil {
			c.logger.Debug("exit flush dropped", "error", err)
		}
	}()
}

func (c *Client) apiError(body []byte, status int) error {
	var envelope ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return fmt.Errorf("API error (%d): %s", status, envelope.Error)
	}
	return fmt.Errorf("API error: HTTP %d", status)
}
