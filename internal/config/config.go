package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Remote    RemoteConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
}

type RemoteConfig struct {
	ChatAPI string
	CrudAPI string
	Timeout time.Duration
}

type CacheConfig struct {
	Backend  string // "file" | "redis" | "memory"
	Dir      string
	TTL      time.Duration
	RedisURL string
}

type AuthConfig struct {
	JwtSecret string // required by the HTTP service
	IdToken   string // terminal client credential
}

type SessionConfig struct {
	MaxQueryLength int
	IdleTimeout    time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OtlpEndpoint string
}

const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/advising-chat.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
		},
		Remote: RemoteConfig{
			ChatAPI: getEnv("CHAT_API", ""),
			CrudAPI: getEnv("CRUD_API", ""),
			Timeout: getEnvAsDuration("REMOTE_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendFile)),
			Dir:      expandHome(getEnv("CACHE_DIR", "~/.advising-chat/cache")),
			TTL:      getEnvAsDuration("CACHE_TTL", time.Hour),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
			IdToken:   getEnv("ADVISOR_ID_TOKEN", ""),
		},
		Session: SessionConfig{
			MaxQueryLength: getEnvAsInt("MAX_QUERY_LENGTH", 500),
			IdleTimeout:    getEnvAsDuration("SESSION_IDLE_TIMEOUT", time.Hour),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnv("OTEL_ENABLED", "false") == "true",
			OtlpEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// Validate checks the settings every entry point depends on.
// Missing remote endpoints are not an error here: calls fail individually with a remote-unavailable error.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheBackendFile && c.Cache.Dir == "" {
		return fmt.Errorf("cache directory cannot be empty")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	if c.Session.MaxQueryLength < 1 {
		return fmt.Errorf("max query length must be at least 1")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}
	return nil
}

// ValidateServer adds the checks only the HTTP service needs. Tokens are always verified,
// so the service refuses to start without a signing secret.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JwtSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
