package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Jorge5452/Melodify-Deezer/db"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

// PublishedTrackRepository defines the interface for published-track bookkeeping.
type PublishedTrackRepository interface {
	Record(ctx context.Context, track model.PublishedTrack) error
	GetByFingerprint(ctx context.Context, fingerprint string) (*model.PublishedTrack, error)
	Count(ctx context.Context) (int64, error)
}

// gormPublishedTrackRepository implements PublishedTrackRepository on GORM.
type gormPublishedTrackRepository struct {
	DB *gorm.DB
}

// NewPublishedTrackRepository creates a repository bound to the shared GORM connection.
func NewPublishedTrackRepository() PublishedTrackRepository {
	return &gormPublishedTrackRepository{DB: db.GormDB}
}

// Record inserts or refreshes the bookkeeping row for a published track.
// Re-publishing the same track and bitrate updates the existing row.
func (r *gormPublishedTrackRepository) Record(ctx context.Context, track model.PublishedTrack) error {
	if r.DB == nil {
		return fmt.Errorf("GORM database not initialized")
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "deezer_id"}, {Name: "bitrate"}},
		DoUpdates: clause.AssignmentColumns([]string{"fingerprint", "artifact_ref", "title", "artist", "duration"}),
	}).Create(&track).Error
	if err != nil {
		return fmt.Errorf("failed to record published track %d: %w", track.DeezerID, err)
	}
	return nil
}

// GetByFingerprint retrieves a published track by its vault fingerprint.
// Returns nil when no row matches.
func (r *gormPublishedTrackRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*model.PublishedTrack, error) {
	if r.DB == nil {
		return nil, fmt.Errorf("GORM database not initialized")
	}

	var track model.PublishedTrack
	err := r.DB.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&track).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query published track %s: %w", fingerprint, err)
	}
	return &track, nil
}

// Count returns the number of bookkeeping rows.
func (r *gormPublishedTrackRepository) Count(ctx context.Context) (int64, error) {
	if r.DB == nil {
		return 0, fmt.Errorf("GORM database not initialized")
	}

	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.PublishedTrack{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count published tracks: %w", err)
	}
	return n, nil
}
