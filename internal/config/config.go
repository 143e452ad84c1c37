// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ShutdownTimeout     time.Duration
	MaxRequestBodyBytes int64

	// Store settings.
	Store         string // "sqlite" or "postgres"
	DatabaseURL   string
	SQLitePath    string
	SeedCustomers int // Customers generated when the store starts empty.

	// JWT settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// AdminAPIKeyHash is the argon2id hash guarding /admin. Empty disables /admin.
	AdminAPIKeyHash string

	// FAQ search settings.
	SearchBackend    string // "bleve", "qdrant" or "pgvector"
	FAQPath          string // Empty uses the built-in corpus.
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Embedding provider settings, used by the qdrant and pgvector backends.
	EmbeddingProvider   string // "hash", "openai" or "ollama"
	OpenAIAPIKey        string
	EmbeddingURL        string
	EmbeddingModel      string
	EmbeddingDimensions int

	// Conversation settings.
	SessionTTL    time.Duration
	MaxGraphSteps int

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	str := envStr
	num := func(key string, def int) int {
		v, err := envInt(key, def)
		errs = append(errs, err)
		return v
	}
	dur := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		errs = append(errs, err)
		return v
	}
	flag := func(key string, def bool) bool {
		v, err := envBool(key, def)
		errs = append(errs, err)
		return v
	}
	decimal := func(key string, def float64) float64 {
		v, err := envFloat(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Port:                num("INSUREAI_PORT", 8080),
		ReadTimeout:         dur("INSUREAI_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        dur("INSUREAI_WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:     dur("INSUREAI_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodyBytes: int64(num("INSUREAI_MAX_REQUEST_BODY_BYTES", 64*1024)),
		Store:               strings.ToLower(str("INSUREAI_STORE", StoreSQLite)),
		DatabaseURL:         str("DATABASE_URL", ""),
		SQLitePath:          str("INSUREAI_SQLITE_PATH", "insureai.db"),
		SeedCustomers:       num("INSUREAI_SEED_CUSTOMERS", 1000),
		JWTPrivateKeyPath:   str("INSUREAI_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    str("INSUREAI_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       dur("INSUREAI_JWT_EXPIRATION", 24*time.Hour),
		AdminAPIKeyHash:     str("INSUREAI_ADMIN_API_KEY_HASH", ""),
		SearchBackend:       strings.ToLower(str("INSUREAI_SEARCH_BACKEND", "bleve")),
		FAQPath:             str("INSUREAI_FAQ_PATH", ""),
		QdrantURL:           str("QDRANT_URL", ""),
		QdrantAPIKey:        str("QDRANT_API_KEY", ""),
		QdrantCollection:    str("QDRANT_COLLECTION", "insureai_faq"),
		EmbeddingProvider:   strings.ToLower(str("INSUREAI_EMBEDDING_PROVIDER", "hash")),
		OpenAIAPIKey:        str("OPENAI_API_KEY", ""),
		EmbeddingURL:        str("INSUREAI_EMBEDDING_URL", ""),
		EmbeddingModel:      str("INSUREAI_EMBEDDING_MODEL", ""),
		EmbeddingDimensions: num("INSUREAI_EMBEDDING_DIMENSIONS", 0),
		SessionTTL:          dur("INSUREAI_SESSION_TTL", 30*time.Minute),
		MaxGraphSteps:       num("INSUREAI_MAX_GRAPH_STEPS", 24),
		RateLimitEnabled:    flag("INSUREAI_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        decimal("INSUREAI_RATE_LIMIT_RPS", 2),
		RateLimitBurst:      num("INSUREAI_RATE_LIMIT_BURST", 10),
		OTELEndpoint:        str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        flag("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         str("OTEL_SERVICE_NAME", "insureai"),
		LogLevel:            str("INSUREAI_LOG_LEVEL", "info"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("INSUREAI_PORT must be between 1 and 65535"))
	}
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("INSUREAI_SQLITE_PATH is required for the sqlite store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("INSUREAI_STORE must be sqlite or postgres, got %q", c.Store))
	}
	switch c.SearchBackend {
	case "bleve":
	case "qdrant":
		if c.QdrantURL == "" {
			errs = append(errs, fmt.Errorf("QDRANT_URL is required for the qdrant search backend"))
		}
	case "pgvector":
		if c.Store != StorePostgres {
			errs = append(errs, fmt.Errorf("the pgvector search backend requires INSUREAI_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("INSUREAI_SEARCH_BACKEND must be bleve, qdrant or pgvector, got %q", c.SearchBackend))
	}
	if c.EmbeddingProvider == "openai" && c.OpenAIAPIKey == "" && c.SearchBackend != "bleve" {
		errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider"))
	}
	if c.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("INSUREAI_EMBEDDING_DIMENSIONS must not be negative"))
	}
	if c.SeedCustomers < 0 {
		errs = append(errs, fmt.Errorf("INSUREAI_SEED_CUSTOMERS must not be negative"))
	}
	if c.MaxGraphSteps <= 0 {
		errs = append(errs, fmt.Errorf("INSUREAI_MAX_GRAPH_STEPS must be positive"))
	}
	if c.MaxRequestBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("INSUREAI_MAX_REQUEST_BODY_BYTES must be positive"))
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, fmt.Errorf("INSUREAI_RATE_LIMIT_RPS and INSUREAI_RATE_LIMIT_BURST must be positive"))
	}
	if (c.JWTPrivateKeyPath == "") != (c.JWTPublicKeyPath == "") {
		errs = append(errs, fmt.Errorf("INSUREAI_JWT_PRIVATE_KEY and INSUREAI_JWT_PUBLIC_KEY must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
