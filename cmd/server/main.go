// Command server runs the recipe adaptation API.
//
// @title       Recipe Adaptation API
// @version     1.0
// @description Recipes with AI-assisted adaptations: daily quota per user timezone,
// @description idempotent retries via Idempotency-Key, and a propose, review, accept flow.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tbourn/go-recipe-backend/docs"
	"github.com/tbourn/go-recipe-backend/internal/config"
	httpapi "github.com/tbourn/go-recipe-backend/internal/http"
	"github.com/tbourn/go-recipe-backend/internal/observability"
	"github.com/tbourn/go-recipe-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogging(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver, observability.Deployment{
		Generator:       cfg.Generator.Kind,
		KeystoreBackend: cfg.Adaptation.KeystoreBackend,
		ProposalBackend: cfg.Adaptation.ProposalBackend,
		DBDriver:        cfg.DB.Driver,
		DailyLimit:      cfg.Adaptation.DailyLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := openDB(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}

	be, err := buildBackends(ctx, cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("storage backend setup failed")
	}
	gen := buildGenerator(cfg.Generator)

	if cfg.Adaptation.KeystoreBackend == config.BackendDB {
		go purgeIdempotency(ctx, db, time.Hour)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Keys:      be.keys,
		Proposals: be.proposals,
		Generator: gen,
		Config:    cfg,
	})

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		docs.SwaggerInfo.Version = ver
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("generator", cfg.Generator.Kind).
			Str("keystore", cfg.Adaptation.KeystoreBackend).
			Str("proposals", cfg.Adaptation.ProposalBackend).
			Int("daily_limit", cfg.Adaptation.DailyLimit).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// In-flight adaptations finish and release their guards before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := be.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("server stopped")
}
