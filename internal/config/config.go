package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config aggregates runtime configuration for the client and the stand-in server.
type Config struct {
	App       AppConfig
	API       APIConfig
	Store     StoreConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
	Export    ExportConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig points the client at the remote service.
type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// StoreConfig selects where the shared credential store lives.
type StoreConfig struct {
	Backend string
	Path    string
	// Namespace scopes the store the way an origin scopes browser storage.
	Namespace string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token parameters of the stand-in server.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// ServerConfig controls the stand-in server listener.
type ServerConfig struct {
	Host                  string
	Port                  string
	RequestTimeoutSeconds int
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
}

// ExportConfig controls where exported files are written.
type ExportConfig struct {
	Dir string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "telepredict"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:               strings.TrimRight(getEnv("TELEPREDICT_API_URL", "http://127.0.0.1:8000"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("TELEPREDICT_API_TIMEOUT_SECONDS", 60),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("TELEPREDICT_STORE", StoreFile)),
			Path:      getEnv("TELEPREDICT_STORE_PATH", defaultStorePath()),
			Namespace: getEnv("TELEPREDICT_STORE_NAMESPACE", "telepredict"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "warn"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Server: ServerConfig{
			Host:                  getEnv("SERVER_HOST", "127.0.0.1"),
			Port:                  getEnv("SERVER_PORT", "8000"),
			RequestTimeoutSeconds: getEnvAsInt("SERVER_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		Export: ExportConfig{
			Dir: getEnv("TELEPREDICT_EXPORT_DIR", "."),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown TELEPREDICT_STORE %q", c.Store.Backend)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("TELEPREDICT_API_URL must not be empty")
	}
	if c.Store.Backend == StoreFile && c.Store.Path == "" {
		return fmt.Errorf("TELEPREDICT_STORE_PATH must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the client request timeout.
func (a APIConfig) Timeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return dir + string(os.PathSeparator) + "telepredict" + string(os.PathSeparator) + "session.json"
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
