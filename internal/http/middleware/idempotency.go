// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on adaptation requests and
// annotates the request so handlers can read the key (GetIdempotencyKey) and
// so replays skip rate limiting (IsReplay). The cached outcome itself is
// served by the service layer; the middleware only peeks at whether one
// exists.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-recipe-backend/internal/keystore"
)

// HeaderIdempotencyKey is the request header carrying the client's key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on responses served from a
// recorded outcome.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: a recorded outcome exists
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. The second return value reports presence.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a recorded outcome exists for this request's
// (user, recipe, key).
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length; values <= 0 use keystore.DefaultMaxKeyLen.
	MaxLen int
	// Param names the route parameter holding the recipe id.
	Param string
}

// IdempotencyLookup reports whether an outcome is recorded for
// (userID, recipeID, key). Errors are treated as "not recorded".
type IdempotencyLookup func(ctx context.Context, userID, recipeID, key string) (bool, error)

// KeystoreLookup adapts a keystore.Store to IdempotencyLookup.
func KeystoreLookup(s keystore.Store) IdempotencyLookup {
	return func(ctx context.Context, userID, recipeID, key string) (bool, error) {
		o, err := s.Lookup(ctx, userID, recipeID, key)
		return o != nil, err
	}
}

// IdempotencyValidator validates the Idempotency-Key header when present
// using the same rule as the adaptation service, stashes it, and marks
// replays for rate-limit bypass. Invalid keys are rejected with 400
// invalid_idempotency_key before any handler runs. Requests without the
// header pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = keystore.DefaultMaxKeyLen
	}
	param := opts.Param
	if param == "" {
		param = "id"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if err := keystore.ValidateKey(key, maxLen); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "invalid_idempotency_key",
				"message":    err.Error(),
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		recipeID := c.Param(param)
		if lookup != nil && recipeID != "" {
			exists, err := lookup(c.Request.Context(), UserID(c), recipeID, key)
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
				idempotentReplays.WithLabelValues(routeLabel(c)).Inc()
			}
		}

		c.Next()
	}
}
