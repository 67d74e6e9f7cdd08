package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aryan0dhankhar/admindash/internal/featureflags"
)

// Store backends
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Corrupt document policies
const (
	CorruptPolicyFail    = "fail"
	CorruptPolicyDegrade = "degrade"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	StoreBackend       string
	UsersFile          string
	StoreCorruptPolicy string
	RedisURL           string
	RedisKey           string
	Database           DatabaseConfig

	SeedOnEmpty          bool
	DefaultPassword      string
	AllowDefaultPassword bool
	BlockInactiveLogin   bool
	EnforceRoles         bool
	ExtraRoles           []string

	LoginRateLimit int
	APIRateLimit   int
	RateWindow     time.Duration

	StatsCacheTTL    time.Duration
	JanitorInterval  time.Duration
	CorruptRetention time.Duration
}

// DatabaseConfig is only read when StoreBackend is postgres
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "5000"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("invalid TOKEN_TTL: must be positive")
	}

	bcryptCost, err := strconv.Atoi(getEnv("BCRYPT_COST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	loginLimit, err := strconv.Atoi(getEnv("LOGIN_RATE_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_LIMIT: %w", err)
	}

	apiLimit, err := strconv.Atoi(getEnv("API_RATE_LIMIT", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT: %w", err)
	}

	rateWindow, err := time.ParseDuration(getEnv("RATE_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_WINDOW: %w", err)
	}

	statsTTL, err := time.ParseDuration(getEnv("STATS_CACHE_TTL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_CACHE_TTL: %w", err)
	}

	janitorInterval, err := time.ParseDuration(getEnv("JANITOR_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JANITOR_INTERVAL: %w", err)
	}

	corruptRetention, err := time.ParseDuration(getEnv("CORRUPT_RETENTION", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CORRUPT_RETENTION: %w", err)
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", BackendFile))
	switch backend {
	case BackendFile, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q", backend)
	}

	policy := strings.ToLower(getEnv("STORE_CORRUPT_POLICY", CorruptPolicyFail))
	if policy != CorruptPolicyFail && policy != CorruptPolicyDegrade {
		return nil, fmt.Errorf("invalid STORE_CORRUPT_POLICY: %q", policy)
	}

	env := getEnv("ENVIRONMENT", "development")
	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		if env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		secret = "your-secret-key"
	}

	return &Config{
		Environment:        env,
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		JWTSecret:  secret,
		TokenTTL:   tokenTTL,
		BcryptCost: bcryptCost,

		StoreBackend:       backend,
		UsersFile:          getEnv("USERS_FILE", "data/users.json"),
		StoreCorruptPolicy: policy,
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisKey:           getEnv("REDIS_KEY", "admindash:users"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "admindash"),
			Password: getEnv("DB_PASSWORD", "dev"),
			Name:     getEnv("DB_NAME", "admindash"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		SeedOnEmpty:          getBool("SEED_ON_EMPTY", "seed_on_empty", true),
		DefaultPassword:      getEnv("DEFAULT_PASSWORD", "defaultPassword123"),
		AllowDefaultPassword: getBool("ALLOW_DEFAULT_PASSWORD", "allow_default_password", true),
		BlockInactiveLogin:   getBool("BLOCK_INACTIVE_LOGIN", "block_inactive_login", false),
		EnforceRoles:         getBool("ENFORCE_ROLES", "enforce_roles", false),
		ExtraRoles:           parseCSVEnv("EXTRA_ROLES", nil),

		LoginRateLimit: loginLimit,
		APIRateLimit:   apiLimit,
		RateWindow:     rateWindow,

		StatsCacheTTL:    statsTTL,
		JanitorInterval:  janitorInterval,
		CorruptRetention: corruptRetention,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBool reads an explicit env var first and falls back to the FLAG_<NAME>
// feature flag, then to the default.
func getBool(key, flag string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	if featureflags.Set(flag) {
		return featureflags.Enabled(flag)
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
