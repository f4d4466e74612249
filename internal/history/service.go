package history

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justchokingaround/nextup/internal/database"
)

// Service provides access to local playback history and series bookmarks
type Service struct {
	db *gorm.DB
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SaveProgress records the outcome of a playback session. An unwatched
// record for the same item replaces the previous unwatched one so abandoned
// sessions don't pile up; a watched record clears earlier unwatched rows.
func (s *Service) SaveProgress(rec database.PlaybackRecord) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}

	if rec.Watched {
		if err := s.db.Where("item_id = ? AND watched = false", rec.ItemID).
			Delete(&database.PlaybackRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear unwatched records: %w", err)
		}
		return s.db.Create(&rec).Error
	}

	var existing database.PlaybackRecord
	err := s.db.Where("item_id = ? AND watched = false", rec.ItemID).
		Order("ended_at DESC").
		First(&existing).Error
	if err == nil {
		existing.PositionSeconds = rec.PositionSeconds
		existing.DurationSeconds = rec.DurationSeconds
		existing.ProgressPercent = rec.ProgressPercent
		existing.EndedAt = rec.EndedAt
		return s.db.Save(&existing).Error
	}

	return s.db.Create(&rec).Error
}

// SaveBookmark upserts the per-series bookmark of the most recently played
// episode
func (s *Service) SaveBookmark(b database.Bookmark) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	b.UpdatedAt = time.Now()
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"series_name", "season_id", "season_number", "episode", "updated_at",
		}),
	}).Create(&b).Error
}

// Bookmark returns the stored bookmark for a series, or nil when none exists
func (s *Service) Bookmark(seriesID string) (*database.Bookmark, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	var b database.Bookmark
	err := s.db.Where("series_id = ?", seriesID).First(&b).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Recent returns the most recent playback records, newest first
func (s *Service) Recent(limit int) ([]database.PlaybackRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	var records []database.PlaybackRecord
	err := s.db.Order("ended_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return records, nil
}
