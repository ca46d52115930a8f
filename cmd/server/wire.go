package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recipe-backend/internal/config"
	"github.com/tbourn/go-recipe-backend/internal/generator"
	"github.com/tbourn/go-recipe-backend/internal/keystore"
	"github.com/tbourn/go-recipe-backend/internal/proposals"
	"github.com/tbourn/go-recipe-backend/internal/repo"
)

// backends are the storage collaborators chosen from configuration.
type backends struct {
	keys      keystore.Store
	proposals proposals.Store
	redis     *redis.Client // nil unless a backend uses it
}

func (b *backends) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}

// openDB connects to the configured driver and migrates the schema.
func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := cfg.Path
	if cfg.Driver == config.DriverPostgres {
		dsn = cfg.URL
	}
	db, err := repo.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// buildBackends selects the request key store and proposal store. One redis
// client is shared when both live in redis.
func buildBackends(ctx context.Context, cfg config.Config, db *gorm.DB) (*backends, error) {
	a := cfg.Adaptation
	b := &backends{}

	if a.KeystoreBackend == config.BackendRedis || a.ProposalBackend == config.BackendRedis {
		client, err := keystore.NewRedisClient(ctx, a.RedisURL)
		if err != nil {
			return nil, err
		}
		b.redis = client
	}

	switch a.KeystoreBackend {
	case config.BackendMemory:
		log.Warn().Msg("KEYSTORE_BACKEND=memory: the in-flight guard only holds within this process")
		b.keys = keystore.NewMemoryStore()
	case config.BackendRedis:
		b.keys = keystore.NewRedisStore(b.redis, cfg.IdempotencyTTL, a.GuardSafetyExpiry)
	default:
		b.keys = keystore.NewGormStore(db, cfg.IdempotencyTTL, a.InFlightStale)
	}

	switch a.ProposalBackend {
	case config.BackendRedis:
		b.proposals = proposals.NewRedisStore(b.redis, a.ProposalTTL)
	default:
		b.proposals = proposals.NewMemoryStore(a.ProposalTTL)
	}
	return b, nil
}

// buildGenerator returns the configured adaptation generator.
func buildGenerator(cfg config.GeneratorConfig) generator.Generator {
	if cfg.Kind == config.GeneratorHTTP {
		return generator.NewHTTPGenerator(generator.HTTPConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RPS:        cfg.RPS,
			BaseDelay:  cfg.BaseDelay,
		})
	}
	return generator.NewRuleGenerator()
}

// purgeIdempotency deletes expired idempotency rows every interval until ctx
// is done. Only the db key store writes that table.
func purgeIdempotency(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now)
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged expired idempotency records")
			}
		}
	}
}
