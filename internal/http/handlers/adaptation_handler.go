// Adaptation HTTP handlers.
//
//   - POST   /recipes/{id}/adaptations                 (propose; Idempotency-Key aware)
//   - POST   /recipes/{id}/adaptations/{logId}/accept  (accept a reviewed proposal)
//   - DELETE /recipes/{id}/adaptations/{logId}         (abandon a proposal)
//   - GET    /adaptations/quota                        (daily quota status)
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// ProposeAdaptationRequest is the JSON payload for a propose call.
type ProposeAdaptationRequest struct {
	Goal  domain.Goal `json:"goal" example:"reduce_calories" enums:"reduce_calories,increase_protein,reduce_carbs,reduce_fat"`
	Notes string      `json:"notes" example:"keep it spicy"`
}

// AcceptAdaptationRequest carries what the user reviewed. Omitted fields fall
// back to the stored proposal.
type AcceptAdaptationRequest struct {
	RecipeText  string         `json:"recipe_text" example:"Simmer light coconut milk..."`
	Macros      *domain.Macros `json:"macros"`
	Explanation string         `json:"explanation" example:"Swapped full-fat coconut milk for light."`
}

// ProposeAdaptation godoc
// @ID          proposeAdaptation
// @Summary     Request an AI adaptation of a recipe
// @Description Checks the daily quota in the user's timezone, serializes concurrent
// @Description requests for the same recipe, and calls the generator once.
// @Description Retries with the same Idempotency-Key replay the first outcome.
// @Tags        Adaptations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"    example(user123)
// @Param       Idempotency-Key  header  string  false "Client retry key"         example(9b2f7f8e-0d3c-4d1b-9f55-2c0b3c1f4a10)
// @Param       id               path    string  true  "Recipe ID (UUID)"         format(uuid)
// @Param       body             body    handlers.ProposeAdaptationRequest  true  "Goal and notes"
//
// @Success     200  {object} domain.Outcome "Completed proposal"
// @Success     202  {object} domain.Outcome "Generator accepted the job; no proposal yet"
// @Header      200  {string} Idempotency-Replayed "true when served from the idempotency cache"
// @Failure     400  {object} handlers.ErrorResponse "Bad request, invalid key or goal"
// @Failure     404  {object} handlers.ErrorResponse "Recipe not found"
// @Failure     409  {object} handlers.ErrorResponse "Adaptation in progress"
// @Failure     429  {object} handlers.ErrorResponse "Quota exceeded"
// @Failure     502  {object} handlers.ErrorResponse "Generator failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recipes/{id}/adaptations [post]
func (h *Handlers) ProposeAdaptation(c *gin.Context) {
	recipeID, okID := pathUUID(c, "id", "recipe id")
	if !okID {
		return
	}
	var req ProposeAdaptationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, found := middleware.GetIdempotencyKey(c)
	if !found {
		key = c.GetHeader(middleware.HeaderIdempotencyKey)
	}
	res, err := h.adaptSvc.Propose(c.Request.Context(), services.ProposeInput{
		UserID:         middleware.UserID(c),
		RecipeID:       recipeID,
		Goal:           domain.Goal(strings.TrimSpace(string(req.Goal))),
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: key,
	})
	if err != nil {
		failService(c, err)
		return
	}

	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	status := http.StatusOK
	if res.Outcome.Status == domain.OutcomePending {
		status = http.StatusAccepted
	}
	ok(c, status, res.Outcome)
}

// AcceptAdaptation godoc
// @ID          acceptAdaptation
// @Summary     Accept a reviewed proposal
// @Description Applies the (possibly edited) proposal to the recipe exactly once and bumps its version.
// @Tags        Adaptations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Recipe ID (UUID)"       format(uuid)
// @Param       logId      path    string  true  "Attempt ID (UUID)"      format(uuid)
// @Param       body       body    handlers.AcceptAdaptationRequest  false  "Reviewed values"
//
// @Success     200  {object} domain.Recipe
// @Failure     400  {object} handlers.ErrorResponse "Invalid macros"
// @Failure     404  {object} handlers.ErrorResponse "Proposal or recipe not found"
// @Failure     500  {object} handlers.ErrorResponse "Commit failed"
// @Router      /recipes/{id}/adaptations/{logId}/accept [post]
func (h *Handlers) AcceptAdaptation(c *gin.Context) {
	recipeID, okID := pathUUID(c, "id", "recipe id")
	if !okID {
		return
	}
	logID, okLog := pathUUID(c, "logId", "log id")
	if !okLog {
		return
	}

	var req AcceptAdaptationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.adaptSvc.Accept(c.Request.Context(), services.AcceptInput{
		UserID:      middleware.UserID(c),
		RecipeID:    recipeID,
		LogID:       logID,
		RecipeText:  strings.TrimSpace(req.RecipeText),
		Macros:      req.Macros,
		Explanation: strings.TrimSpace(req.Explanation),
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// AbandonAdaptation godoc
// @ID          abandonAdaptation
// @Summary     Discard a proposal
// @Description Drops a pending proposal without touching the recipe. The attempt still counts toward the quota.
// @Tags        Adaptations
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Recipe ID (UUID)"       format(uuid)
// @Param       logId      path    string  true  "Attempt ID (UUID)"      format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Proposal not found"
// @Router      /recipes/{id}/adaptations/{logId} [delete]
func (h *Handlers) AbandonAdaptation(c *gin.Context) {
	recipeID, okID := pathUUID(c, "id", "recipe id")
	if !okID {
		return
	}
	logID, okLog := pathUUID(c, "logId", "log id")
	if !okLog {
		return
	}
	if err := h.adaptSvc.Abandon(c.Request.Context(), middleware.UserID(c), recipeID, logID); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// GetQuota godoc
// @ID          getQuota
// @Summary     Daily adaptation quota
// @Description Returns limit, used, remaining, and the window bounds in the user's timezone.
// @Tags        Adaptations
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object} domain.QuotaWindow
// @Failure     500  {object} handlers.ErrorResponse "Quota computation failed"
// @Router      /adaptations/quota [get]
func (h *Handlers) GetQuota(c *gin.Context) {
	w, err := h.adaptSvc.QuotaStatus(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, w)
}
