// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only adaptation attempt log counted by the daily quota.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// CreateAdaptationLog appends one attempt row stamped with createdAt (UTC).
func CreateAdaptationLog(ctx context.Context, db *gorm.DB, userID, recipeID string, goal domain.Goal, createdAt time.Time) (*domain.AdaptationLog, error) {
	l := &domain.AdaptationLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecipeID:  recipeID,
		Goal:      goal,
		CreatedAt: createdAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// CountAdaptationLogs counts the user's attempts with start <= created_at < end.
func CountAdaptationLogs(ctx context.Context, db *gorm.DB, userID string, start, end time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AdaptationLog{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start.UTC(), end.UTC()).
		Count(&n).Error
	return n, err
}

// GetAdaptationLog fetches an attempt by id, scoped to (userID, recipeID).
// A row owned by another user or recipe is reported as ErrNotFound.
func GetAdaptationLog(ctx context.Context, db *gorm.DB, id, userID, recipeID string) (*domain.AdaptationLog, error) {
	var l domain.AdaptationLog
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND recipe_id = ?", id, userID, recipeID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkAdaptationAccepted stamps accepted_at on a not-yet-accepted attempt.
// It returns ErrNotFound when the row is missing, foreign, or already accepted,
// which makes the transition happen at most once.
func MarkAdaptationAccepted(ctx context.Context, db *gorm.DB, id, userID, recipeID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.AdaptationLog{}).
		Where("id = ? AND user_id = ? AND recipe_id = ? AND accepted_at IS NULL", id, userID, recipeID).
		Update("accepted_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockUserQuota serializes quota check-and-insert for one user inside tx.
// On PostgreSQL it takes a transaction-scoped advisory lock; SQLite already
// serializes writers, so it is a no-op there.
func LockUserQuota(ctx context.Context, tx *gorm.DB, userID string) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", userID).Error
}
