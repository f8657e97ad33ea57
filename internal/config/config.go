package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                        string
	ServiceName                   string
	ServiceVersion                string
	DBURL                         string
	DBDisablePreparedBinary       bool
	RedisAddr                     string
	RedisPassword                 string
	RedisDB                       int
	LockStartTTL                  time.Duration
	LockEndTTL                    time.Duration
	CacheEnabled                  bool
	CacheTTL                      time.Duration
	NotifierEnabled               bool
	NotifierBaseURL               string
	NotifierToken                 string
	NotifierTimeout               time.Duration
	NotifierWorkers               int
	NotifierCircuitEnabled        bool
	NotifierCircuitFailureCount   int
	NotifierCircuitOpenTimeout    time.Duration
	NotifierCircuitHalfOpenMaxReq int
	LogLevel                      logging.Level
	Engagement                    EngagementConfig
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY: %w", err)
	}

	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_DB: %w", err)
	}

	lockStartTTL, err := time.ParseDuration(getEnv("LOCK_START_TTL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LOCK_START_TTL: %w", err)
	}
	if lockStartTTL <= 0 {
		return Config{}, fmt.Errorf("LOCK_START_TTL must be > 0")
	}
	// Settlement batches writes for the whole field, so the end lock
	// outlives the start lock.
	lockEndTTL, err := time.ParseDuration(getEnv("LOCK_END_TTL", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LOCK_END_TTL: %w", err)
	}
	if lockEndTTL <= 0 {
		return Config{}, fmt.Errorf("LOCK_END_TTL must be > 0")
	}

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}

	notifierEnabled, err := strconv.ParseBool(getEnv("NOTIFIER_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_ENABLED: %w", err)
	}
	notifierBaseURL := strings.TrimSpace(getEnv("NOTIFIER_BASE_URL", ""))
	if notifierEnabled && notifierBaseURL == "" {
		return Config{}, fmt.Errorf("NOTIFIER_BASE_URL is required when NOTIFIER_ENABLED=true")
	}
	notifierTimeout, err := time.ParseDuration(getEnv("NOTIFIER_TIMEOUT", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_TIMEOUT: %w", err)
	}
	if notifierTimeout <= 0 {
		return Config{}, fmt.Errorf("NOTIFIER_TIMEOUT must be > 0")
	}
	notifierWorkers, err := getEnvAsInt("NOTIFIER_WORKERS", 8)
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_WORKERS: %w", err)
	}
	if notifierWorkers <= 0 {
		return Config{}, fmt.Errorf("NOTIFIER_WORKERS must be > 0")
	}
	notifierCircuitEnabled, err := strconv.ParseBool(getEnv("NOTIFIER_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_CIRCUIT_ENABLED: %w", err)
	}
	notifierCircuitFailureCount, err := getEnvAsInt("NOTIFIER_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	notifierCircuitOpenTimeout, err := time.ParseDuration(getEnv("NOTIFIER_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	notifierCircuitHalfOpenMaxReq, err := getEnvAsInt("NOTIFIER_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse NOTIFIER_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	engagementCfg, err := LoadEngagement()
	if err != nil {
		return Config{}, err
	}

	logLevel := parseLogLevel(getEnv("APP_LOG_LEVEL", "info"))

	return Config{
		AppEnv:                        appEnv,
		ServiceName:                   getEnv("SERVICE_NAME", "engagement-engine"),
		ServiceVersion:                getEnv("SERVICE_VERSION", "dev"),
		DBURL:                         strings.TrimSpace(getEnv("DB_URL", "")),
		DBDisablePreparedBinary:       dbDisablePreparedBinary,
		RedisAddr:                     strings.TrimSpace(getEnv("REDIS_ADDR", "")),
		RedisPassword:                 getEnv("REDIS_PASSWORD", ""),
		RedisDB:                       redisDB,
		LockStartTTL:                  lockStartTTL,
		LockEndTTL:                    lockEndTTL,
		CacheEnabled:                  cacheEnabled,
		CacheTTL:                      cacheTTL,
		NotifierEnabled:               notifierEnabled,
		NotifierBaseURL:               notifierBaseURL,
		NotifierToken:                 strings.TrimSpace(getEnv("NOTIFIER_TOKEN", "")),
		NotifierTimeout:               notifierTimeout,
		NotifierWorkers:               notifierWorkers,
		NotifierCircuitEnabled:        notifierCircuitEnabled,
		NotifierCircuitFailureCount:   notifierCircuitFailureCount,
		NotifierCircuitOpenTimeout:    notifierCircuitOpenTimeout,
		NotifierCircuitHalfOpenMaxReq: notifierCircuitHalfOpenMaxReq,
		LogLevel:                      logLevel,
		Engagement:                    engagementCfg,
	}, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
