package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aniview/aniview/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.MaxRetries = 1

	return NewClient(cfg, nil), srv
}

func TestAnimeBySlug(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/anime/link", r.URL.Path)
		assert.Equal(t, "zero-one", r.URL.Query().Get("url"))
		_ = json.NewEncoder(w).Encode(Anime{
			GID:         "a-1",
			Name:        "Zero One",
			VideoPath:   "/video/zero-one/",
			SeriesCount: 12,
			VideoSizes:  []string{"480p", "720p", "1080p"},
		})
	}))

	anime, err := client.AnimeBySlug(context.Background(), "zero-one")
	require.NoError(t, err)
	assert.Equal(t, "a-1", anime.GID)
	assert.Equal(t, 12, anime.SeriesCount)
	assert.Equal(t, []string{"480p", "720p", "1080p"}, anime.VideoSizes)
}

func TestAnimeBySlugNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.AnimeBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatcher(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/watcher/", r.URL.Path)
		assert.Equal(t, "a-1", r.URL.Query().Get("anime_gid"))
		assert.Equal(t, "3", r.URL.Query().Get("series_number"))
		_ = json.NewEncoder(w).Encode(Watcher{Timecode: 420, Viewed: false})
	}))

	w, err := client.Watcher(context.Background(), "a-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 420.0, w.Timecode)
	assert.False(t, w.Viewed)
}

func TestWatcherNeverWatchedIs400(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	_, err := client.Watcher(context.Background(), "a-1", 9)
	assert.ErrorIs(t, err, ErrNoWatcher)
}

func TestLastWatched(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("need_last"))
		_ = json.NewEncoder(w).Encode(LastWatched{SeriesNumber: 5, Timecode: 130})
	}))

	last, err := client.LastWatched(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, 5, last.SeriesNumber)
	assert.Equal(t, 130.0, last.Timecode)
}

func TestLastWatchedEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))

	_, err := client.LastWatched(context.Background(), "a-1")
	assert.ErrorIs(t, err, ErrNoWatcher)
}

func TestPutWatcher(t *testing.T) {
	var received WatcherUpdate
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
	}))

	err := client.PutWatcher(context.Background(), WatcherUpdate{
		AnimeGID:     "a-1",
		SeriesNumber: 4,
		Timecode:     521,
		Viewed:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", received.AnimeGID)
	assert.Equal(t, 4, received.SeriesNumber)
	assert.Equal(t, 521, received.Timecode)
	assert.True(t, received.Viewed)
}

func TestPutWatcherAsyncDoesNotBlock(t *testing.T) {
	done := make(chan WatcherUpdate, 1)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var upd WatcherUpdate
		_ = json.NewDecoder(r.Body).Decode(&upd)
		done <- upd
	}))

	client.PutWatcherAsync(WatcherUpdate{AnimeGID: "a-1", SeriesNumber: 1, Timecode: 10})

	select {
	case upd := <-done:
		assert.Equal(t, 10, upd.Timecode)
	case <-time.After(3 * time.Second):
		t.Fatal("async write never reached the server")
	}
}
