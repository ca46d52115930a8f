// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by all endpoints: the error
// envelope, fail/Fail, the service error mapper, and the success writers.
//
// Example error response:
//
//	HTTP/1.1 502 Bad Gateway
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "generation_failed",
//	  "message": "the recipe generator failed",
//	  "retryable": true
//	}
package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/generator"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants and service kinds)
	Code string `json:"code" example:"recipe_not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"recipe not found"`
	// Retryable is set on generation_failed.
	Retryable *bool `json:"retryable,omitempty" example:"true"`
	// ResetsAt is the end of the quota window on quota_exceeded.
	ResetsAt *time.Time `json:"resets_at,omitempty" example:"2025-03-11T04:00:00Z"`
	// Quota is the exhausted window on quota_exceeded.
	Quota any `json:"quota,omitempty" swaggertype:"object"`
}

// fail aborts the request with a structured error. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	abort(c, status, ErrorResponse{Code: code, Message: msg})
}

func abort(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failService maps any error from the services package to the envelope.
// Untyped errors are logged with their cause and reported as internal_error.
func failService(c *gin.Context, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		middleware.LoggerFrom(c).Error().Err(err).Msg("unexpected service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, messageFor(services.KindInternal))
		return
	}

	status := statusFor(se.Kind)
	resp := ErrorResponse{Code: string(se.Kind), Message: messageFor(se.Kind)}

	switch se.Kind {
	case services.KindQuotaExceeded:
		if se.Window != nil {
			end := se.Window.WindowEnd
			resp.ResetsAt = &end
			resp.Quota = se.Window
			c.Header("Retry-After", strconv.Itoa(retryAfter(end, time.Now())))
		}
	case services.KindGenerationFailed:
		retry := false
		var ge *generator.Error
		if errors.As(err, &ge) {
			retry = ge.Retryable()
			resp.Message = resp.Message + " (" + string(ge.Kind) + ")"
		}
		resp.Retryable = &retry
	}

	if status >= http.StatusInternalServerError && se.Err != nil {
		middleware.LoggerFrom(c).Error().Err(se.Err).Str("kind", string(se.Kind)).Msg("adaptation failure")
	}
	abort(c, status, resp)
}

// retryAfter is the whole seconds from now until end, at least 1.
func retryAfter(end, now time.Time) int {
	secs := int(math.Ceil(end.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
