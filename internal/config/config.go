package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Database configuration
	DatabaseURL string        `json:"database_url"`
	DBTimeout   time.Duration `json:"db_timeout"`

	// Redis configuration
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	StatusTTL   time.Duration `json:"status_ttl"`

	// CloudFlare R2 Configuration (optional; archives outgoing datasets)
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`

	// AI Configuration
	AIApiKey        string        `json:"ai_api_key"`
	AIModel         string        `json:"ai_model"`
	AITimeout       time.Duration `json:"ai_timeout"`
	AITokensPerItem int           `json:"ai_tokens_per_item"`

	// Refresh pipeline
	RefreshSecret     string        `json:"refresh_secret"`
	TargetCount       int           `json:"target_count"`
	BatchSize         int           `json:"batch_size"`
	MaxRetries        int           `json:"max_retries"`
	InitialRetryDelay time.Duration `json:"initial_retry_delay"`
	BatchPause        time.Duration `json:"batch_pause"`

	// Logging
	LogLevel string `json:"log_level"`
}

// MissingConfigError reports every required configuration key that is
// absent. It never contains configuration values.
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// Load loads configuration from environment variables
func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	return &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 5*time.Minute),

		// Database configuration
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBTimeout:   getEnvAsDuration("DB_TIMEOUT", 15*time.Second),

		// Redis configuration
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix: getEnv("REDIS_PREFIX", "progresspath:"),
		StatusTTL:   getEnvAsDuration("STATUS_TTL", 48*time.Hour),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", "progresspath-archive"),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),

		// AI Configuration
		AIApiKey:        getEnv("AI_API_KEY", ""),
		AIModel:         getEnv("AI_MODEL", "gemini-2.0-flash"),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", 60*time.Second),
		AITokensPerItem: getEnvAsInt("AI_TOKENS_PER_ITEM", 120),

		// Refresh pipeline
		RefreshSecret:     getEnv("REFRESH_SECRET", ""),
		TargetCount:       getEnvAsInt("REFRESH_TARGET_COUNT", 30),
		BatchSize:         getEnvAsInt("REFRESH_BATCH_SIZE", 5),
		MaxRetries:        getEnvAsInt("REFRESH_MAX_RETRIES", 3),
		InitialRetryDelay: getEnvAsDuration("REFRESH_INITIAL_RETRY_DELAY", 2*time.Second),
		BatchPause:        getEnvAsDuration("REFRESH_BATCH_PAUSE", 3*time.Second),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// RequireRefreshKeys verifies every configuration value the refresh
// pipeline depends on. All missing keys are reported at once so a broken
// deployment is fixed in one pass. No network or storage side effects.
func (c *Config) RequireRefreshKeys() error {
	required := []struct {
		key   string
		value string
	}{
		{"AI_API_KEY", c.AIApiKey},
		{"DATABASE_URL", c.DatabaseURL},
		{"REFRESH_SECRET", c.RefreshSecret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}

	if len(missing) > 0 {
		return &MissingConfigError{Keys: missing}
	}
	return nil
}

// ArchiveEnabled reports whether the R2 archive client can be constructed.
func (c *Config) ArchiveEnabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKey != "" && c.R2SecretKey != ""
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}
