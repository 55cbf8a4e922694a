package database

import (
	"time"

	"gorm.io/gorm"
)

// QualityPreference stores the chosen quality per content path, surviving
// across sessions on the same device. "auto" is a valid stored value.
type QualityPreference struct {
	ID          uint      `gorm:"primaryKey"`
	ContentPath string    `gorm:"not null;uniqueIndex"`
	Quality     string    `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (QualityPreference) TableName() string {
	return "quality_preferences"
}

// WatchCache mirrors the last watcher write that reached the backend for an
// (anime, episode) pair. Used as a resume hint when the backend lookup
// degrades to "no prior progress".
type WatchCache struct {
	ID              uint      `gorm:"primaryKey"`
	AnimeGID        string    `gorm:"column:anime_gid;not null;index:idx_watch_cache_pair,unique"`
	Episode         int       `gorm:"not null;index:idx_watch_cache_pair,unique"`
	TimecodeSeconds int       `gorm:"not null"`
	Viewed          bool      `gorm:"default:false"`
	UpdatedAt       time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (WatchCache) TableName() string {
	return "watch_cache"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&QualityPreference{},
		&WatchCache{},
	)
}
