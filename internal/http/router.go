// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/config"
	"github.com/tbourn/go-recipe-backend/internal/domain"
	"github.com/tbourn/go-recipe-backend/internal/generator"
	"github.com/tbourn/go-recipe-backend/internal/http/handlers"
	"github.com/tbourn/go-recipe-backend/internal/http/middleware"
	"github.com/tbourn/go-recipe-backend/internal/keystore"
	"github.com/tbourn/go-recipe-backend/internal/proposals"
	"github.com/tbourn/go-recipe-backend/internal/repo"
	"github.com/tbourn/go-recipe-backend/internal/services"
)

// recipeRepoShim adapts the repository free functions to the
// services.RecipeRepo interface expected by the RecipeService.
type recipeRepoShim struct{}

// CreateRecipe proxies repo.CreateRecipe.
func (recipeRepoShim) CreateRecipe(ctx context.Context, db *gorm.DB, userID, title, text string, m domain.Macros) (*domain.Recipe, error) {
	return repo.CreateRecipe(ctx, db, userID, title, text, m)
}

// GetRecipe proxies repo.GetRecipe.
func (recipeRepoShim) GetRecipe(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Recipe, error) {
	return repo.GetRecipe(ctx, db, id, userID)
}

// profileRepoShim adapts the profile repository functions.
type profileRepoShim struct{}

func (profileRepoShim) GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, userID)
}

func (profileRepoShim) UpsertProfile(ctx context.Context, db *gorm.DB, userID string, tz *string, prefs string) (*domain.Profile, error) {
	return repo.UpsertProfile(ctx, db, userID, tz, prefs)
}

// Deps are the collaborators the router needs. Keys, Proposals, and
// Generator are chosen by cmd/server from configuration.
type Deps struct {
	DB        *gorm.DB
	Keys      keystore.Store
	Proposals proposals.Store
	Generator generator.Generator
	Config    config.Config
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + Identity: correlation id and caller
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs; resolve the caller once
	r.Use(middleware.RequestID(), middleware.Identity())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency-Key validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: cfg.Adaptation.KeyMaxLen},
		middleware.KeystoreLookup(d.Keys),
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)

	// Security headers; adaptation responses are per-user and never cached
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStorePaths: []string{"/adaptations", "/quota", "/profile"},
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", health(d.DB))

	// Dependency injection: services ← repo/db/keystore/proposals/generator
	recipeSvc := services.NewRecipeService(d.DB, recipeRepoShim{})
	profileSvc := &services.ProfileService{DB: d.DB, Repo: profileRepoShim{}}
	adaptSvc := services.NewAdaptationService(d.DB, d.Keys, d.Proposals, d.Generator, cfg.Adaptation.DailyLimit)
	if cfg.Adaptation.KeyMaxLen > 0 {
		adaptSvc.MaxKeyLen = cfg.Adaptation.KeyMaxLen
	}
	if s := strings.TrimSpace(cfg.Adaptation.SystemContext); s != "" {
		adaptSvc.SystemContext = s
	}
	h := handlers.New(recipeSvc, profileSvc, adaptSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Recipes
		api.POST("/recipes", h.CreateRecipe)
		api.GET("/recipes/:id", h.GetRecipe)

		// Profile
		api.GET("/profile", h.GetProfile)
		api.PUT("/profile", h.UpdateProfile)

		// Adaptations
		api.GET("/adaptations/quota", h.GetQuota)
		api.POST("/recipes/:id/adaptations", h.ProposeAdaptation)
		api.POST("/recipes/:id/adaptations/:logId/accept", h.AcceptAdaptation)
		api.DELETE("/recipes/:id/adaptations/:logId", h.AbandonAdaptation)
	}
}

// corsMiddleware builds the CORS chain. With no allowlist every origin is
// accepted without credentials; otherwise the request Origin is echoed when
// allowed.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "Content-Length", middleware.HeaderIdempotencyReplayed, "Retry-After"}

	if len(origins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     allowHeaders,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     methods,
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// health reports liveness plus the number of database-held adaptation
// guards. A database failure degrades the status but still answers 200 so
// the process is not restarted for a transient outage.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			n, err := repo.CountInFlight(ctx, db)
			if err != nil {
				middleware.LoggerFrom(c).Warn().Err(err).Msg("health: database check failed")
				body["status"] = "degraded"
			} else {
				body["inflight_guards"] = n
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
