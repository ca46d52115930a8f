// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. The
// adaptation codes are the service error kinds verbatim, so the HTTP
// contract and the service taxonomy cannot drift apart.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "quota_exceeded",
//	  "message": "daily adaptation quota exhausted",
//	  "resets_at": "2025-03-11T04:00:00Z"
//	}
package handlers

import (
	"net/http"

	"github.com/tbourn/go-recipe-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Recipe/profile CRUD:
	ErrCodeInvalidRecipe   = "invalid_recipe"
	ErrCodeInvalidTimezone = "invalid_timezone"
	ErrCodeCreateFailed    = "create_failed"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(k services.Kind) int {
	switch k {
	case services.KindRecipeNotFound, services.KindProposalNotFound:
		return http.StatusNotFound
	case services.KindAdaptationInProgress:
		return http.StatusConflict
	case services.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case services.KindInvalidIdempotencyKey, services.KindInvalidGoal, services.KindInvalidMacros:
		return http.StatusBadRequest
	case services.KindGenerationFailed:
		return http.StatusBadGateway
	case services.KindQuotaComputationFailed, services.KindCommitFailed, services.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// messageFor is the client-safe message for a kind. Internal causes are
// never echoed.
func messageFor(k services.Kind) string {
	switch k {
	case services.KindRecipeNotFound:
		return "recipe not found"
	case services.KindProposalNotFound:
		return "proposal not found or already used"
	case services.KindAdaptationInProgress:
		return "an adaptation for this recipe is already running"
	case services.KindQuotaExceeded:
		return "daily adaptation quota exhausted"
	case services.KindInvalidIdempotencyKey:
		return "invalid Idempotency-Key"
	case services.KindInvalidGoal:
		return "unknown goal"
	case services.KindInvalidMacros:
		return "macros must be non-negative with at most two decimals"
	case services.KindGenerationFailed:
		return "the recipe generator failed"
	case services.KindQuotaComputationFailed:
		return "could not compute the adaptation quota"
	case services.KindCommitFailed:
		return "could not save the adaptation"
	}
	return "internal server error"
}
