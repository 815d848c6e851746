package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Upstream   UpstreamConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	Auth       AuthConfig
	Jobs       JobsConfig
}

// UpstreamConfig points the portal at the classroom REST API.
type UpstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	ReadRetries   int
	OAuthClientID string
	JWTSecret     string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig tunes the query cache staleness windows.
type CacheConfig struct {
	Enabled       bool
	SlotTTL       time.Duration
	SessionTTL    time.Duration
	EnrollmentTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig holds booking rules applied before calling the upstream.
type SchedulingConfig struct {
	Timezone           string
	SessionDuration    time.Duration
	StudentWindowStart int
	StudentWindowEnd   int
	SearchDebounce     time.Duration
	MonthInlineLimit   int
}

// AuthConfig governs the persisted application context.
type AuthConfig struct {
	StateSecret           string
	RevokedNoticeCooldown time.Duration
	PurgeInterval         time.Duration
}

// JobsConfig sizes the background maintenance queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// Location resolves the configured viewer time zone, falling back to UTC.
func (c SchedulingConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Upstream = UpstreamConfig{
		BaseURL:       strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		Timeout:       parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 15*time.Second),
		ReadRetries:   v.GetInt("UPSTREAM_READ_RETRIES"),
		OAuthClientID: v.GetString("OAUTH_CLIENT_ID"),
		JWTSecret:     v.GetString("UPSTREAM_JWT_SECRET"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("ENABLE_CACHE"),
		SlotTTL:       parseDuration(v.GetString("SLOT_CACHE_TTL"), 30*time.Second),
		SessionTTL:    parseDuration(v.GetString("SESSION_CACHE_TTL"), 30*time.Second),
		EnrollmentTTL: parseDuration(v.GetString("ENROLLMENT_CACHE_TTL"), time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		Timezone:           v.GetString("TIMEZONE"),
		SessionDuration:    parseDuration(v.GetString("SESSION_DURATION"), 75*time.Minute),
		StudentWindowStart: v.GetInt("STUDENT_WINDOW_START"),
		StudentWindowEnd:   v.GetInt("STUDENT_WINDOW_END"),
		SearchDebounce:     parseDuration(v.GetString("SEARCH_DEBOUNCE"), 500*time.Millisecond),
		MonthInlineLimit:   v.GetInt("MONTH_INLINE_LIMIT"),
	}

	cfg.Auth = AuthConfig{
		StateSecret:           v.GetString("AUTH_STATE_SECRET"),
		RevokedNoticeCooldown: parseDuration(v.GetString("REVOKED_NOTICE_COOLDOWN"), 10*time.Second),
		PurgeInterval:         parseDuration(v.GetString("AUTH_PURGE_INTERVAL"), 15*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOB_WORKERS"),
		MaxRetries: v.GetInt("JOB_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOB_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:5000/api")
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("UPSTREAM_READ_RETRIES", 1)
	v.SetDefault("OAUTH_CLIENT_ID", "")
	v.SetDefault("UPSTREAM_JWT_SECRET", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classroom_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("SLOT_CACHE_TTL", "30s")
	v.SetDefault("SESSION_CACHE_TTL", "30s")
	v.SetDefault("ENROLLMENT_CACHE_TTL", "1m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("SESSION_DURATION", "75m")
	v.SetDefault("STUDENT_WINDOW_START", 9)
	v.SetDefault("STUDENT_WINDOW_END", 21)
	v.SetDefault("SEARCH_DEBOUNCE", "500ms")
	v.SetDefault("MONTH_INLINE_LIMIT", 3)

	v.SetDefault("AUTH_STATE_SECRET", "dev_auth_state_secret")
	v.SetDefault("REVOKED_NOTICE_COOLDOWN", "10s")
	v.SetDefault("AUTH_PURGE_INTERVAL", "15m")

	v.SetDefault("JOB_WORKERS", 2)
	v.SetDefault("JOB_MAX_RETRIES", 3)
	v.SetDefault("JOB_RETRY_DELAY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
