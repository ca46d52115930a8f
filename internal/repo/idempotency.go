// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to replay adaptation outcomes on client retries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrDuplicate indicates that a row with the same unique key already exists:
// an idempotency record for (user_id, recipe_id, key) or an in-flight marker
// for (user_id, recipe_id).
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, recipeID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(recipeID) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ? AND key = ? AND expires_at > ?", userID, recipeID, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// An expired row under the same key is purged first so the key can be reused.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, recipeID, key string, outcome []byte, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	now = now.UTC()
	if err := db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ? AND key = ? AND expires_at <= ?", userID, recipeID, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		RecipeID:  recipeID,
		Key:       key,
		Outcome:   datatypes.JSON(outcome),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency deletes records whose TTL has elapsed.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// IsDuplicate reports whether err is a unique or primary key violation.
// glebarez/sqlite often returns plain-text errors, and postgres reports
// SQLSTATE 23505, so the message is matched as a fallback.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key") ||
		strings.Contains(low, "duplicate key value") ||
		strings.Contains(low, "sqlstate 23505")
}
