// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency represents the recorded outcome of a previously processed
// adaptation request, keyed by (user_id, recipe_id, key). A retry carrying
// the same key replays Outcome without touching quota or the generator.
// Outcome holds the JSON-encoded tagged Outcome (completed or pending).
type Idempotency struct {
	ID        string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_recipe_key,priority:1"`
	RecipeID  string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_recipe_key,priority:2"`
	Key       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_recipe_key,priority:3"`
	Outcome   datatypes.JSON `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time      `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
