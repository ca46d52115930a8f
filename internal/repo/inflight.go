// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the in-flight marker table used as a
// cross-process test-and-set for adaptation requests.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// AcquireInFlight inserts the (userID, recipeID) marker and returns its owner
// token. It returns false without error when another request already holds
// it. Markers older than staleAfter are treated as abandoned by a crashed
// process and replaced; a zero staleAfter disables that takeover.
func AcquireInFlight(ctx context.Context, db *gorm.DB, userID, recipeID string, now time.Time, staleAfter time.Duration) (string, bool, error) {
	now = now.UTC()
	if staleAfter > 0 {
		if err := db.WithContext(ctx).
			Where("user_id = ? AND recipe_id = ? AND created_at < ?", userID, recipeID, now.Add(-staleAfter)).
			Delete(&domain.InFlight{}).Error; err != nil {
			return "", false, err
		}
	}
	token := uuid.NewString()
	err := db.WithContext(ctx).Create(&domain.InFlight{
		UserID:    userID,
		RecipeID:  recipeID,
		Token:     token,
		CreatedAt: now,
	}).Error
	if err != nil {
		if IsDuplicate(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return token, true, nil
}

// ReleaseInFlight removes the marker if it still carries token. A marker
// taken over by another request, or already gone, is left untouched.
func ReleaseInFlight(ctx context.Context, db *gorm.DB, userID, recipeID, token string) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ? AND token = ?", userID, recipeID, token).
		Delete(&domain.InFlight{}).Error
}

// CountInFlight returns the number of markers currently held.
func CountInFlight(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.InFlight{}).Count(&n).Error
	return n, err
}
