// Recipe and profile HTTP handlers.
//
// This file exposes REST endpoints for the resources adaptations act on:
//   - POST   /recipes        (create)
//   - GET    /recipes/{id}   (read, owner scoped)
//   - GET    /profile        (read timezone and preferences)
//   - PUT    /profile        (set timezone and preferences)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// RecipeService defines recipe lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type RecipeService interface {
	// Create stores a new recipe for userID.
	Create(ctx context.Context, userID, title, text string, macros domain.Macros) (*domain.Recipe, error)
	// Get returns a recipe owned by userID.
	Get(ctx context.Context, userID, id string) (*domain.Recipe, error)
}

// ProfileService reads and writes per-user settings.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, userID string, timezone *string, preferences string) (*domain.Profile, error)
}

// AdaptationService is the propose/review/accept workflow.
//
// Implementations must be safe for concurrent use; concurrent Propose calls
// for the same (user, recipe) are serialized by the service itself.
type AdaptationService interface {
	Propose(ctx context.Context, in services.ProposeInput) (*services.ProposeResult, error)
	Accept(ctx context.Context, in services.AcceptInput) (*domain.Recipe, error)
	Abandon(ctx context.Context, userID, recipeID, logID string) error
	QuotaStatus(ctx context.Context, userID string) (*domain.QuotaWindow, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for recipes, profiles, and adaptations.
type Handlers struct {
	recipeSvc  RecipeService
	profileSvc ProfileService
	adaptSvc   AdaptationService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(recipeSvc RecipeService, profileSvc ProfileService, adaptSvc AdaptationService) *Handlers {
	return &Handlers{recipeSvc: recipeSvc, profileSvc: profileSvc, adaptSvc: adaptSvc}
}

//
// DTOs
//

// CreateRecipeRequest is the JSON payload for creating a recipe.
type CreateRecipeRequest struct {
	Title  string        `json:"title" example:"Green curry"`
	Text   string        `json:"text" example:"Simmer coconut milk with curry paste..."`
	Macros domain.Macros `json:"macros"`
}

// UpdateProfileRequest is the JSON payload for PUT /profile. A null or empty
// timezone means UTC.
type UpdateProfileRequest struct {
	Timezone    *string `json:"timezone" example:"Europe/Athens"`
	Preferences string  `json:"preferences" example:"vegetarian, no peanuts"`
}

//
// Handlers
//

// CreateRecipe godoc
// @ID          createRecipe
// @Summary     Create a recipe
// @Description Stores a recipe with per-serving macros for the current user.
// @Tags        Recipes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateRecipeRequest  true  "Recipe payload"
//
// @Success     201  {object}  domain.Recipe
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /recipes [post]
func (h *Handlers) CreateRecipe(c *gin.Context) {
	var req CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.recipeSvc.Create(c.Request.Context(), middleware.UserID(c), req.Title, req.Text, req.Macros)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, rec)
	case errors.Is(err, services.ErrInvalidRecipe):
		fail(c, http.StatusBadRequest, ErrCodeInvalidRecipe, err.Error())
	case errors.Is(err, services.ErrInvalidMacros):
		failService(c, err)
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("create recipe")
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "could not create recipe")
	}
}

// GetRecipe godoc
// @ID          getRecipe
// @Summary     Get a recipe
// @Description Returns a recipe owned by the current user.
// @Tags        Recipes
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Recipe ID (UUID)"       format(uuid)
//
// @Success     200  {object} domain.Recipe
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/{id} [get]
func (h *Handlers) GetRecipe(c *gin.Context) {
	id, okID := pathUUID(c, "id", "recipe id")
	if !okID {
		return
	}
	rec, err := h.recipeSvc.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get the current profile
// @Description Returns the user's timezone and preferences. A user without a profile gets an empty (UTC) one.
// @Tags        Profile
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.Profile
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profileSvc.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the current profile
// @Description Sets the IANA timezone used for the daily adaptation quota, and free-text preferences.
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.UpdateProfileRequest  true  "Profile payload"
// @Success     200  {object} domain.Profile
// @Failure     400  {object} handlers.ErrorResponse "Unknown timezone"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	p, err := h.profileSvc.Update(c.Request.Context(), middleware.UserID(c), req.Timezone, req.Preferences)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTimezone) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidTimezone, err.Error())
			return
		}
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// pathUUID reads a UUID path parameter, failing the request with 400 when
// it is malformed.
func pathUUID(c *gin.Context, name, what string) (string, bool) {
	v := c.Param(name)
	if _, err := uuid.Parse(v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" must be a UUID")
		return "", false
	}
	return v, true
}
