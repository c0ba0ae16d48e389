// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	AppName string

	StatusStoreURL string
	StatusTTL      time.Duration
	JobLockTTL     time.Duration

	S3         S3Config
	Translator TranslatorConfig
	WebApp     WebAppConfig

	Workers   int
	QueueSize int

	WorkDir                string
	WorkspaceMaxAge        time.Duration
	WorkspaceSweepSchedule string

	LogLevel string
	LogDir   string
}

type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	Bucket          string
	Prefix          string
	RetryAttempts   int
}

type TranslatorConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
	Concurrency       int
}

type WebAppConfig struct {
	Username   string
	Password   string
	RememberMe bool
	AuthURL    string
	WebhookURL string
}

// Load reads the environment after merging the nearest .env file found in the
// working directory or one of its parents.
func Load() Config {
	LoadDotEnv()

	return Config{
		Port:    getEnv("PORT", "8000"),
		AppName: getEnv("APP_NAME", "hana-migration"),

		StatusStoreURL: getEnv("STATUS_STORE_URL", "redis://localhost:6379/0"),
		StatusTTL:      parseDurationEnv("STATUS_TTL", 0),
		JobLockTTL:     parseDurationEnv("JOB_LOCK_TTL", 2*time.Hour),

		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Bucket:          os.Getenv("S3_BUCKET_NAME"),
			Prefix:          os.Getenv("S3_BUCKET_PATH"),
			RetryAttempts:   parseIntEnv("OBJECT_STORE_RETRY_ATTEMPTS", 3),
		},
		Translator: TranslatorConfig{
			APIKey:            os.Getenv("API_KEY"),
			BaseURL:           getEnv("TRANSLATOR_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("TRANSLATOR_MODEL", "gpt-4o-mini"),
			RequestsPerSecond: parseFloatEnv("TRANSLATOR_RPS", 2),
			Concurrency:       parseIntEnv("TRANSLATE_CONCURRENCY", 1),
		},
		WebApp: WebAppConfig{
			Username:   os.Getenv("WEBAPP_USERNAME"),
			Password:   os.Getenv("WEBAPP_PASSWORD"),
			RememberMe: parseBoolEnv("WEBAPP_REMEMBER", true),
			AuthURL:    os.Getenv("WEBAPP_AUTH_URL"),
			WebhookURL: os.Getenv("WEBAPP_URL"),
		},

		Workers:   parseIntEnv("MIGRATION_WORKERS", 4),
		QueueSize: parseIntEnv("MIGRATION_QUEUE_SIZE", 100),

		WorkDir:                getEnv("WORK_DIR", filepath.Join(os.TempDir(), "hana-migration")),
		WorkspaceMaxAge:        parseDurationEnv("WORKSPACE_MAX_AGE", 6*time.Hour),
		WorkspaceSweepSchedule: getEnv("WORKSPACE_SWEEP_SCHEDULE", "@every 1h"),

		LogLevel: getEnv("LOG_LEVEL", "<root>=INFO"),
		LogDir:   os.Getenv("LOG_DIR"),
	}
}

// Validate reports every missing required setting at once.
func (c Config) Validate() error {
	var errs []error
	required := map[string]string{
		"S3_BUCKET_NAME":  c.S3.Bucket,
		"API_KEY":         c.Translator.APIKey,
		"WEBAPP_AUTH_URL": c.WebApp.AuthURL,
		"WEBAPP_URL":      c.WebApp.WebhookURL,
		"WEBAPP_USERNAME": c.WebApp.Username,
		"WEBAPP_PASSWORD": c.WebApp.Password,
	}
	for _, key := range []string{"S3_BUCKET_NAME", "API_KEY", "WEBAPP_AUTH_URL", "WEBAPP_URL", "WEBAPP_USERNAME", "WEBAPP_PASSWORD"} {
		if strings.TrimSpace(required[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("MIGRATION_WORKERS must be positive"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("MIGRATION_QUEUE_SIZE must be positive"))
	}
	if c.Translator.Concurrency <= 0 {
		errs = append(errs, errors.New("TRANSLATE_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

func LoadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseFloatEnv(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func parseBoolEnv(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
