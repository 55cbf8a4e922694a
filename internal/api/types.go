package api

// Anime describes one title as served by the backend. Immutable for the
// lifetime of a player view.
type Anime struct {
	GID         string   `json:"gid"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	VideoPath   string   `json:"video_path"`
	SeriesCount int      `json:"series_count"`
	VideoSizes  []string `json:"video_size"`
	PreviewPath string   `json:"preview_path"`
}

// Watcher is the server-side progress record for one (anime, episode) pair
type Watcher struct {
	Timecode float64 `json:"timecode"`
	Viewed   bool    `json:"viewed"`
}

// LastWatched points at the most recently updated watcher record of a title
type LastWatched struct {
	SeriesNumber int     `json:"series_number"`
	Timecode     float64 `json:"timecode"`
}

// WatcherUpdate is the upsert body for the watcher endpoint
type WatcherUpdate struct {
	AnimeGID     string `json:"anime_gid"`
	SeriesNumber int    `json:"series_number"`
	Timecode     int    `json:"timecode"`
	Viewed       bool   `json:"viewed"`
}

// ErrorResponse is the backend's error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}
