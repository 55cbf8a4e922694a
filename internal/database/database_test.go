package database

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestQualityPreferenceRoundTrip(t *testing.T) {
	db := openTestDB(t)

	// Nothing stored yet
	got, err := GetQualityPreference(db, "/video/zero-one/")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	require.NoError(t, SaveQualityPreference(db, "/video/zero-one/", "1080p"))
	got, err = GetQualityPreference(db, "/video/zero-one/")
	require.NoError(t, err)
	assert.Equal(t, "1080p", got)

	// Second save for the same path updates, not duplicates
	require.NoError(t, SaveQualityPreference(db, "/video/zero-one/", "480p"))
	got, err = GetQualityPreference(db, "/video/zero-one/")
	require.NoError(t, err)
	assert.Equal(t, "480p", got)

	var count int64
	require.NoError(t, db.Model(&QualityPreference{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveQualityPreferenceRejectsEmpty(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, SaveQualityPreference(db, "/video/zero-one/", ""))
}

func TestWatchCacheUpsert(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, UpsertWatchCache(db, "a-1", 3, 120, false))
	require.NoError(t, UpsertWatchCache(db, "a-1", 3, 480, true))

	entry, err := GetWatchCache(db, "a-1", 3)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 480, entry.TimecodeSeconds)
	assert.True(t, entry.Viewed)

	var count int64
	require.NoError(t, db.Model(&WatchCache{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWatchCacheMissIsNil(t *testing.T) {
	db := openTestDB(t)

	entry, err := GetWatchCache(db, "a-1", 7)
	require.NoError(t, err)
	assert.Nil(t, entry)

	last, err := GetLastWatchCache(db, "a-1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestGetLastWatchCachePicksNewest(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, UpsertWatchCache(db, "a-1", 1, 600, true))
	require.NoError(t, UpsertWatchCache(db, "a-1", 2, 45, false))

	// Force distinct timestamps
	require.NoError(t, db.Model(&WatchCache{}).
		Where("episode = ?", 2).
		Update("updated_at", "2026-01-02 10:00:00").Error)
	require.NoError(t, db.Model(&WatchCache{}).
		Where("episode = ?", 1).
		Update("updated_at", "2026-01-01 10:00:00").Error)

	last, err := GetLastWatchCache(db, "a-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Episode)
}
