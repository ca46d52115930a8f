// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recipe model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a recipe is not found (or not owned by the caller), functions
//     return gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateRecipe(ctx, db, userID, title, text, macros) -> *domain.Recipe, error
//     Inserts a new Recipe row with UUID primary key and UTC timestamps.
//
//   - GetRecipe(ctx, db, id, userID) -> *domain.Recipe, error
//     Fetches a single recipe by ID scoped to its owner.
//
//   - ApplyAdaptation(ctx, db, id, userID, update) -> error
//     Conditionally rewrites text, macros, and explanation on (id, user_id)
//     and bumps Version. Zero matched rows returns ErrNotFound.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// RecipeUpdate carries the fields an accepted adaptation writes.
type RecipeUpdate struct {
	Text        string
	Macros      domain.Macros
	Explanation string
	UpdatedAt   time.Time
}

// CreateRecipe inserts a new Recipe owned by userID. Macros are rounded to
// two decimals before persisting.
func CreateRecipe(ctx context.Context, db *gorm.DB, userID, title, text string, macros domain.Macros) (*domain.Recipe, error) {
	now := time.Now().UTC()
	r := &domain.Recipe{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Text:      text,
		Macros:    macros.Rounded(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetRecipe fetches a single recipe by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetRecipe(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recipe, error) {
	var r domain.Recipe
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ApplyAdaptation writes an accepted adaptation onto the recipe identified by
// id and owned by userID in one conditional UPDATE. If no rows are affected
// (recipe deleted or reassigned concurrently) it returns ErrNotFound.
func ApplyAdaptation(ctx context.Context, db *gorm.DB, id, userID string, u RecipeUpdate) error {
	res := db.WithContext(ctx).
		Model(&domain.Recipe{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"text":          u.Text,
			"macro_kcal":    u.Macros.Kcal,
			"macro_protein": u.Macros.Protein,
			"macro_carbs":   u.Macros.Carbs,
			"macro_fat":     u.Macros.Fat,
			"explanation":   u.Explanation,
			"updated_at":    u.UpdatedAt.UTC(),
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
