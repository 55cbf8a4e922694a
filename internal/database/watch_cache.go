package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertWatchCache records the last progress write that the backend
// acknowledged for an (anime, episode) pair
func UpsertWatchCache(db *gorm.DB, animeGID string, episode, timecodeSeconds int, viewed bool) error {
	entry := WatchCache{
		AnimeGID:        animeGID,
		Episode:         episode,
		TimecodeSeconds: timecodeSeconds,
		Viewed:          viewed,
		UpdatedAt:       time.Now(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "anime_gid"}, {Name: "episode"}},
		DoUpdates: clause.AssignmentColumns([]string{"timecode_seconds", "viewed", "updated_at"}),
	}).Create(&entry).Error
}

// GetWatchCache returns the cached record for an episode, or nil when the
// pair was never cached
func GetWatchCache(db *gorm.DB, animeGID string, episode int) (*WatchCache, error) {
	var entry WatchCache
	err := db.Where("anime_gid = ? AND episode = ?", animeGID, episode).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetLastWatchCache returns the most recently updated cache entry for a
// title across all episodes, or nil when none exists
func GetLastWatchCache(db *gorm.DB, animeGID string) (*WatchCache, error) {
	var entry WatchCache
	err := db.Where("anime_gid = ?", animeGID).Order("updated_at DESC").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
