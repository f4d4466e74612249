package database

import "time"

// PlaybackRecord is the local record of one playback session, written when
// the session stops
type PlaybackRecord struct {
	ID              uint      `gorm:"primaryKey"`
	ItemID          string    `gorm:"not null;index"`
	ItemName        string    `gorm:"default:''"`
	SeriesID        string    `gorm:"index;default:''"`
	SeriesName      string    `gorm:"default:''"`
	Season          int       `gorm:"default:0"`
	Episode         int       `gorm:"default:0"`
	PositionSeconds int       `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	ProgressPercent float64   `gorm:"not null"`
	Watched         bool      `gorm:"default:false"`
	StartedAt       time.Time `gorm:""`
	EndedAt         time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (PlaybackRecord) TableName() string {
	return "playback_records"
}

// Bookmark tracks the most recently played episode per series, one row per
// series, written by the autoplay orchestrator
type Bookmark struct {
	ID           uint      `gorm:"primaryKey"`
	SeriesID     string    `gorm:"not null;uniqueIndex"`
	SeriesName   string    `gorm:"default:''"`
	SeasonID     string    `gorm:"default:''"`
	SeasonNumber int       `gorm:"default:0"`
	Episode      int       `gorm:"default:0"`
	UpdatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Bookmark) TableName() string {
	return "bookmarks"
}
