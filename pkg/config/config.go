package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Vision        VisionConfig
	Import        ImportConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set, as hosted
	// Postgres providers hand out a single connection string.
	URL           string
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	MaxConns      int
	RunMigrations bool
}

// VisionConfig points at an OpenAI-compatible chat completions API.
type VisionConfig struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

type ImportConfig struct {
	MaxUploadBytes int64
	MaxPDFPages    int
	SessionTTL     time.Duration
	SweepSchedule  string
}

type StorageConfig struct {
	LocalPath string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
	ServiceName    string
}

var visionBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	provider := strings.ToLower(getEnv("VISION_PROVIDER", "openai"))

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 40),
			AllowedOrigins:     getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			Host:          getEnv("POSTGRES_HOST", "localhost"),
			Port:          getEnvAsInt("POSTGRES_PORT", 5432),
			User:          getEnv("POSTGRES_USER", "postgres"),
			Password:      getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:      getEnv("POSTGRES_DB", "smart-import-dev"),
			SSLMode:       getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:      getEnvAsInt("POSTGRES_MAX_CONNS", 10),
			RunMigrations: getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		Vision: VisionConfig{
			Provider:          provider,
			APIKey:            getEnv("VISION_API_KEY", ""),
			BaseURL:           getEnv("VISION_BASE_URL", visionBaseURLs[provider]),
			Model:             getEnv("VISION_MODEL", "gpt-4o-mini"),
			Timeout:           getEnvAsDuration("VISION_TIMEOUT", 60*time.Second),
			RequestsPerMinute: getEnvAsInt("VISION_REQUESTS_PER_MINUTE", 20),
		},
		Import: ImportConfig{
			MaxUploadBytes: int64(getEnvAsInt("IMPORT_MAX_UPLOAD_MB", 10)) << 20,
			MaxPDFPages:    getEnvAsInt("IMPORT_MAX_PDF_PAGES", 10),
			SessionTTL:     getEnvAsDuration("IMPORT_SESSION_TTL", 30*time.Minute),
			SweepSchedule:  getEnv("IMPORT_SWEEP_SCHEDULE", "*/5 * * * *"),
		},
		Storage: StorageConfig{
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./uploads"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "smart-import"),
		},
	}

	if cfg.Vision.BaseURL == "" {
		return nil, fmt.Errorf("VISION_BASE_URL is required for provider %q", provider)
	}
	if cfg.Import.SessionTTL <= 0 {
		return nil, errors.New("IMPORT_SESSION_TTL must be positive")
	}

	return cfg, nil
}

// VisionEnabled reports whether image imports can be served.
func (c *Config) VisionEnabled() bool {
	return c.Vision.APIKey != ""
}

// Addr is the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
