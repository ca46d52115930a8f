// Package services – RecipeService and ProfileService
//
// These are the thin CRUD collaborators the adaptation flow reads from:
// recipes scoped to their owner and the per-user profile that carries the
// quota timezone. Titles are normalized the same way everywhere.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/domain"
)

// RecipeRepo defines the repository contract required by RecipeService.
type RecipeRepo interface {
	// CreateRecipe inserts a new recipe row for the given user.
	CreateRecipe(ctx context.Context, db *gorm.DB, userID, title, text string, macros domain.Macros) (*domain.Recipe, error)

	// GetRecipe fetches a recipe by ID ensuring it belongs to the user.
	GetRecipe(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recipe, error)
}

// ProfileRepo defines the repository contract required by ProfileService.
type ProfileRepo interface {
	GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, db *gorm.DB, userID string, timezone *string, preferences string) (*domain.Profile, error)
}

// RecipeService creates and reads recipes.
type RecipeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the recipe repository used by this service.
	Repo RecipeRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewRecipeService constructs a RecipeService with default title handling.
func NewRecipeService(db *gorm.DB, r RecipeRepo) *RecipeService {
	return &RecipeService{DB: db, Repo: r, TitleMaxLen: 120}
}

// Create validates and stores a new recipe owned by userID.
func (s *RecipeService) Create(ctx context.Context, userID, title, text string, macros domain.Macros) (*domain.Recipe, error) {
	title = s.clip(normalizeTitle(title))
	text = strings.TrimSpace(text)
	if title == "" || text == "" {
		return nil, ErrInvalidRecipe
	}
	if err := macros.Validate(); err != nil {
		return nil, wrap(KindInvalidMacros, err)
	}
	return s.Repo.CreateRecipe(ctx, s.DB, userID, title, text, macros)
}

// Get returns the recipe if it exists and belongs to userID.
func (s *RecipeService) Get(ctx context.Context, userID, id string) (*domain.Recipe, error) {
	r, err := s.Repo.GetRecipe(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	return r, nil
}

// clip truncates a title to the configured maximum rune length.
func (s *RecipeService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ProfileService manages per-user preferences.
type ProfileService struct {
	DB   *gorm.DB
	Repo ProfileRepo
}

// Get returns the stored profile, or an empty UTC profile when none exists.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Profile{UserID: userID}, nil
	}
	return p, err
}

// Update validates the timezone against the tz database and stores the
// profile. An empty or nil timezone clears it.
func (s *ProfileService) Update(ctx context.Context, userID string, timezone *string, preferences string) (*domain.Profile, error) {
	if timezone != nil {
		tz := strings.TrimSpace(*timezone)
		if tz == "" {
			timezone = nil
		} else {
			if _, err := LoadTimezone(tz); err != nil {
				return nil, err
			}
			timezone = &tz
		}
	}
	return s.Repo.UpsertProfile(ctx, s.DB, userID, timezone, strings.TrimSpace(preferences))
}
