package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Geo        GeoConfig
	Compliance ComplianceConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory ticket store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr             string
	Password         string
	DB               int
	Enabled          bool
	GapCacheTTLSecs  int
	GapCacheKeySpace string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token issuance parameters. The client secret hashes
// are bcrypt hashes; a blank hash disables that client.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	AgentClientID         string
	AgentSecretHash       string
	OperatorClientID      string
	OperatorSecretHash    string
}

// GeoConfig points at the geocoding/GIS lookup service. A blank base
// URL disables enrichment.
type GeoConfig struct {
	BaseURL          string
	APIKey           string
	TimeoutMillis    int
	MaxRetries       int
	EnrichTimeoutSec int
}

// ComplianceConfig selects the holiday calendar and how often expired
// response windows are swept. A non-positive sweep interval disables the
// sweeper; tickets still expire lazily when read.
type ComplianceConfig struct {
	HolidayFile     string
	TimeZone        string
	ExpirySweepSecs int
}

// Load reads configuration from environment variables, applying defaults where possible.
// envFiles are loaded first when present; a missing .env is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "dig-ticket-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:             getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:         os.Getenv("REDIS_PASSWORD"),
			DB:               redisDB,
			Enabled:          getEnvAsBool("REDIS_ENABLED", true),
			GapCacheTTLSecs:  getEnvAsInt("REDIS_GAP_CACHE_TTL_SECONDS", 600),
			GapCacheKeySpace: getEnv("REDIS_GAP_CACHE_PREFIX", "dig:gaps:"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			AgentClientID:         getEnv("AUTH_AGENT_CLIENT_ID", "intake-agent"),
			AgentSecretHash:       os.Getenv("AUTH_AGENT_SECRET_HASH"),
			OperatorClientID:      getEnv("AUTH_OPERATOR_CLIENT_ID", "dispatch-operator"),
			OperatorSecretHash:    os.Getenv("AUTH_OPERATOR_SECRET_HASH"),
		},
		Geo: GeoConfig{
			BaseURL:          os.Getenv("GEO_BASE_URL"),
			APIKey:           os.Getenv("GEO_API_KEY"),
			TimeoutMillis:    getEnvAsInt("GEO_TIMEOUT_MS", 2000),
			MaxRetries:       getEnvAsInt("GEO_MAX_RETRIES", 2),
			EnrichTimeoutSec: getEnvAsInt("GEO_ENRICH_TIMEOUT_SECONDS", 3),
		},
		Compliance: ComplianceConfig{
			HolidayFile:     os.Getenv("COMPLIANCE_HOLIDAY_FILE"),
			TimeZone:        getEnv("COMPLIANCE_TIME_ZONE", "America/Chicago"),
			ExpirySweepSecs: getEnvAsInt("COMPLIANCE_EXPIRY_SWEEP_SECONDS", 0),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// GapCacheTTL is how long a cached gap list stays valid.
func (r RedisConfig) GapCacheTTL() time.Duration {
	return time.Duration(r.GapCacheTTLSecs) * time.Second
}

// AccessTokenTTL is the lifetime of issued bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Timeout bounds a single geocoder HTTP attempt.
func (g GeoConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMillis) * time.Millisecond
}

// ExpirySweepInterval is the period of the background expiry sweep. Zero
// disables the sweep and leaves expiry to the next read.
func (c ComplianceConfig) ExpirySweepInterval() time.Duration {
	if c.ExpirySweepSecs <= 0 {
		return 0
	}
	return time.Duration(c.ExpirySweepSecs) * time.Second
}

// EnrichTimeout bounds the whole enrichment call made by the orchestrator.
func (g GeoConfig) EnrichTimeout() time.Duration {
	return time.Duration(g.EnrichTimeoutSec) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
