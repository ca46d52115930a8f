// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage backends, adaptation quota, the generator client, rate
// limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by KEYSTORE_BACKEND and PROPOSAL_BACKEND.
const (
	BackendMemory = "memory"
	BackendDB     = "db"
	BackendRedis  = "redis"
)

// Driver names accepted by DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Generator names accepted by GENERATOR.
const (
	GeneratorRule = "rule"
	GeneratorHTTP = "http"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-recipe-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the SQL driver.
type DatabaseConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH, sqlite file
	URL    string // DATABASE_URL, postgres DSN
}

// AdaptationConfig holds the quota, idempotency, and proposal settings.
type AdaptationConfig struct {
	DailyLimit        int           // ADAPTATION_DAILY_LIMIT
	KeyMaxLen         int           // IDEMPOTENCY_KEY_MAX_LEN
	ProposalTTL       time.Duration // PROPOSAL_TTL
	InFlightStale     time.Duration // ADAPTATION_INFLIGHT_STALE, 0 disables takeover
	KeystoreBackend   string        // KEYSTORE_BACKEND: memory|db|redis
	ProposalBackend   string        // PROPOSAL_BACKEND: memory|redis
	RedisURL          string        // REDIS_URL
	SystemContext     string        // ADAPTATION_SYSTEM_CONTEXT, optional override
	GuardSafetyExpiry time.Duration // ADAPTATION_GUARD_TTL, redis only
}

// GeneratorConfig configures the adaptation generator.
type GeneratorConfig struct {
	Kind       string        // GENERATOR: rule|http
	URL        string        // GENERATOR_URL
	APIKey     string        // GENERATOR_API_KEY
	Model      string        // GENERATOR_MODEL
	Timeout    time.Duration // GENERATOR_TIMEOUT
	MaxRetries int           // GENERATOR_MAX_RETRIES
	RPS        float64       // GENERATOR_RPS
	BaseDelay  time.Duration // GENERATOR_BACKOFF_BASE, doubles per retry
}

// CallBudget is the longest one Generate call can take: every attempt hits
// Timeout and every retry waits its maximum backoff (base doubling, +50%
// jitter). The rule generator has no budget.
func (g GeneratorConfig) CallBudget() time.Duration {
	if g.Kind != GeneratorHTTP {
		return 0
	}
	budget := g.Timeout * time.Duration(g.MaxRetries+1)
	for i := 0; i < g.MaxRetries; i++ {
		d := g.BaseDelay << i
		budget += d + d/2
	}
	return budget
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB DatabaseConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a recorded outcome is replayed

	// Adaptation
	Adaptation AdaptationConfig
	Generator  GeneratorConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DatabaseConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", DriverSQLite)),
			Path:   getenv("DB_PATH", "app.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Adaptation
		Adaptation: AdaptationConfig{
			DailyLimit:        getint("ADAPTATION_DAILY_LIMIT", 3),
			KeyMaxLen:         getint("IDEMPOTENCY_KEY_MAX_LEN", 200),
			ProposalTTL:       getdur("PROPOSAL_TTL", 15*time.Minute),
			InFlightStale:     getdur("ADAPTATION_INFLIGHT_STALE", 5*time.Minute),
			KeystoreBackend:   strings.ToLower(getenv("KEYSTORE_BACKEND", BackendDB)),
			ProposalBackend:   strings.ToLower(getenv("PROPOSAL_BACKEND", BackendMemory)),
			RedisURL:          getenv("REDIS_URL", ""),
			SystemContext:     getenv("ADAPTATION_SYSTEM_CONTEXT", ""),
			GuardSafetyExpiry: getdur("ADAPTATION_GUARD_TTL", 5*time.Minute),
		},
		Generator: GeneratorConfig{
			Kind:       strings.ToLower(getenv("GENERATOR", GeneratorRule)),
			URL:        getenv("GENERATOR_URL", ""),
			APIKey:     getenv("GENERATOR_API_KEY", ""),
			Model:      getenv("GENERATOR_MODEL", "gpt-4o-mini"),
			Timeout:    getdur("GENERATOR_TIMEOUT", 30*time.Second),
			MaxRetries: getint("GENERATOR_MAX_RETRIES", 2),
			RPS:        getfloat("GENERATOR_RPS", 0),
			BaseDelay:  getdur("GENERATOR_BACKOFF_BASE", 500*time.Millisecond),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-recipe-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = DriverPostgres
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DB.Driver)
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if err := cfg.Adaptation.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Generator.validate(); err != nil {
		return cfg, err
	}
	if err := cfg.Adaptation.validateGuardLifetime(cfg.Generator.CallBudget()); err != nil {
		return cfg, err
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func (a AdaptationConfig) validate() error {
	if a.DailyLimit < 1 {
		return errors.New("ADAPTATION_DAILY_LIMIT must be >= 1")
	}
	if a.KeyMaxLen < 1 {
		return errors.New("IDEMPOTENCY_KEY_MAX_LEN must be >= 1")
	}
	if a.ProposalTTL <= 0 {
		return errors.New("PROPOSAL_TTL must be > 0")
	}
	if a.InFlightStale < 0 {
		return errors.New("ADAPTATION_INFLIGHT_STALE must be >= 0")
	}
	switch a.KeystoreBackend {
	case BackendMemory, BackendDB, BackendRedis:
	default:
		return fmt.Errorf("KEYSTORE_BACKEND must be memory, db, or redis, got %q", a.KeystoreBackend)
	}
	switch a.ProposalBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("PROPOSAL_BACKEND must be memory or redis, got %q", a.ProposalBackend)
	}
	if (a.KeystoreBackend == BackendRedis || a.ProposalBackend == BackendRedis) && strings.TrimSpace(a.RedisURL) == "" {
		return errors.New("REDIS_URL is required for the redis backend")
	}
	if a.KeystoreBackend == BackendRedis && a.GuardSafetyExpiry <= 0 {
		return errors.New("ADAPTATION_GUARD_TTL must be > 0 with KEYSTORE_BACKEND=redis")
	}
	return nil
}

// validateGuardLifetime rejects takeover thresholds that could expire while
// the holder is still inside a generator call.
func (a AdaptationConfig) validateGuardLifetime(budget time.Duration) error {
	if budget <= 0 {
		return nil
	}
	if a.KeystoreBackend == BackendDB && a.InFlightStale > 0 && a.InFlightStale < budget {
		return fmt.Errorf("ADAPTATION_INFLIGHT_STALE (%s) must cover the generator call budget (%s)", a.InFlightStale, budget)
	}
	if a.KeystoreBackend == BackendRedis && a.GuardSafetyExpiry < budget {
		return fmt.Errorf("ADAPTATION_GUARD_TTL (%s) must cover the generator call budget (%s)", a.GuardSafetyExpiry, budget)
	}
	return nil
}

func (g GeneratorConfig) validate() error {
	switch g.Kind {
	case GeneratorRule:
		return nil
	case GeneratorHTTP:
	default:
		return fmt.Errorf("GENERATOR must be rule or http, got %q", g.Kind)
	}
	// Missing credentials are reported by the generator per call as a
	// configuration error, so only shape is checked here.
	if g.Timeout <= 0 {
		return errors.New("GENERATOR_TIMEOUT must be > 0")
	}
	if g.MaxRetries < 0 {
		return errors.New("GENERATOR_MAX_RETRIES must be >= 0")
	}
	if g.RPS < 0 {
		return errors.New("GENERATOR_RPS must be >= 0")
	}
	if g.BaseDelay <= 0 {
		return errors.New("GENERATOR_BACKOFF_BASE must be > 0")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
