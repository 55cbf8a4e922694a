package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetQualityPreference retrieves the stored quality for a content path.
// Returns empty string when nothing is stored (not an error).
func GetQualityPreference(db *gorm.DB, contentPath string) (string, error) {
	var pref QualityPreference
	err := db.Where("content_path = ?", contentPath).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return pref.Quality, nil
}

// PreferenceStore adapts the preference helpers to a handle-carrying
// value for callers that should not see the raw *gorm.DB
type PreferenceStore struct {
	DB *gorm.DB
}

func (s PreferenceStore) Quality(contentPath string) (string, error) {
	return GetQualityPreference(s.DB, contentPath)
}

func (s PreferenceStore) SaveQuality(contentPath, qualityLabel string) error {
	return SaveQualityPreference(s.DB, contentPath, qualityLabel)
}

// SaveQualityPreference stores or updates the quality for a content path
func SaveQualityPreference(db *gorm.DB, contentPath, qualityLabel string) error {
	if qualityLabel == "" {
		return errors.New("quality label must not be empty")
	}

	pref := QualityPreference{
		ContentPath: contentPath,
		Quality:     qualityLabel,
		UpdatedAt:   time.Now(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_path"}},
		DoUpdates: clause.AssignmentColumns([]string{"quality", "updated_at"}),
	}).Create(&pref).Error
}
