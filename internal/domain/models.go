// Package domain defines the persistence models for recipes, profiles, and
// AI adaptation attempts. These types are mapped with GORM and form the core
// data layer of the recipe backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Recipe is a user-owned recipe. Adaptations mutate Text, Macros, and
// Explanation in place under an ownership check and bump Version.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: owner; every read and write is scoped by it.
//   - Title: human-readable name.
//   - Text: full recipe body (ingredients + steps).
//   - Macros: per-serving nutrition, two decimal places.
//   - Explanation: rationale of the last accepted adaptation, if any.
//   - Version: incremented by every accepted adaptation.
//   - CreatedAt / UpdatedAt: timestamps (UpdatedAt set explicitly on accept).
//   - DeletedAt: soft deletion marker.
type Recipe struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_recipes"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Text        string         `json:"text"        gorm:"type:text;not null"`
	Macros      Macros         `json:"macros"      gorm:"embedded;embeddedPrefix:macro_"`
	Explanation string         `json:"explanation,omitempty" gorm:"type:text"`
	Version     int            `json:"version"     gorm:"not null;default:1"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Recipe.
func (Recipe) TableName() string { return "recipes" }

// Profile holds per-user preferences consumed by the adaptation pipeline.
// Timezone is nullable; an absent value means "UTC".
type Profile struct {
	UserID      string    `json:"user_id"     gorm:"type:varchar(64);primaryKey"`
	Timezone    *string   `json:"timezone"    gorm:"type:varchar(64)"`
	Preferences string    `json:"preferences" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// TimezoneOrDefault returns the stored timezone, or "UTC" when none is set.
func (p *Profile) TimezoneOrDefault() string {
	if p == nil || p.Timezone == nil || *p.Timezone == "" {
		return "UTC"
	}
	return *p.Timezone
}
