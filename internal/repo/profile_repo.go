// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profiles.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// GetProfile returns the profile for userID or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile row for userID.
// A nil timezone clears the stored value (quota falls back to UTC).
func UpsertProfile(ctx context.Context, db *gorm.DB, userID string, timezone *string, preferences string) (*domain.Profile, error) {
	now := time.Now().UTC()
	p := &domain.Profile{
		UserID:      userID,
		Timezone:    timezone,
		Preferences: preferences,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"timezone", "preferences", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, userID)
}
