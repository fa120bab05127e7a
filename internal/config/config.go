package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Logging
	LogDevelopment bool
	LogLevel       string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string
	MetricsEnabled bool

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	EmailMode       string // smtp, log, redis or file
	EmailFilePath   string

	// Push
	FirebaseCredentialsFile string

	// Alerts
	AlertDigestConcurrency int
	AlertDedupTTL          time.Duration
	AlertDailyCron         string
	AlertWeeklyCron        string
	AlertDigestMaxListings int
	PublicListingURL       string

	// Worker
	WorkerConcurrency int

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	getBool := func(key, defaultValue string) (bool, error) {
		v, err := strconv.ParseBool(getEnv(key, defaultValue))
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "thikana")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "alerts@thikana.example.com")
	cfg.EmailMode = strings.ToLower(getEnv("EMAIL_MODE", "log"))
	cfg.EmailFilePath = getEnv("EMAIL_FILE_PATH", "./mail/outbox.log")
	cfg.FirebaseCredentialsFile = getEnv("FIREBASE_CREDENTIALS_FILE", "")
	cfg.AlertDailyCron = getEnv("ALERT_DAILY_CRON", "0 7 * * *")
	cfg.AlertWeeklyCron = getEnv("ALERT_WEEKLY_CRON", "0 7 * * 1")
	cfg.PublicListingURL = getEnv("PUBLIC_LISTING_URL", "https://thikana.example.com/listing/")
	cfg.AppName = getEnv("APP_NAME", "Thikana")
	cfg.LogLevel = getEnv("LOG_LEVEL", "")

	if cfg.LogDevelopment, err = getBool("LOG_DEVELOPMENT", "false"); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getBool("METRICS_ENABLED", "true"); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}

	jwtTTLSeconds, err := getInt("JWT_TTL_SECONDS", "3600")
	if err != nil {
		return nil, err
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.AlertDigestConcurrency, err = getInt("ALERT_DIGEST_CONCURRENCY", "4"); err != nil {
		return nil, err
	}
	dedupHours, err := getInt("ALERT_DEDUP_TTL_HOURS", "72")
	if err != nil {
		return nil, err
	}
	cfg.AlertDedupTTL = time.Duration(dedupHours) * time.Hour
	if cfg.AlertDigestMaxListings, err = getInt("ALERT_DIGEST_MAX_LISTINGS", "20"); err != nil {
		return nil, err
	}
	if cfg.WorkerConcurrency, err = getInt("WORKER_CONCURRENCY", "10"); err != nil {
		return nil, err
	}

	// Rate Limiting
	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE", "2"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE", "1"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE", "8"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE", "4"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cron expressions.
func (c *Config) Validate() error {
	var errs []error
	if c.AlertDigestConcurrency < 1 {
		errs = append(errs, fmt.Errorf("ALERT_DIGEST_CONCURRENCY must be at least 1, got %d", c.AlertDigestConcurrency))
	}
	if c.AlertDedupTTL <= 0 {
		errs = append(errs, errors.New("ALERT_DEDUP_TTL_HOURS must be positive"))
	}
	if c.AlertDigestMaxListings < 1 {
		errs = append(errs, fmt.Errorf("ALERT_DIGEST_MAX_LISTINGS must be at least 1, got %d", c.AlertDigestMaxListings))
	}
	if c.WorkerConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency))
	}
	if c.JwtTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL_SECONDS must be positive"))
	}
	for key, spec := range map[string]string{"ALERT_DAILY_CRON": c.AlertDailyCron, "ALERT_WEEKLY_CRON": c.AlertWeeklyCron} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, spec, err))
		}
	}
	switch c.EmailMode {
	case "smtp", "log", "redis", "file":
	default:
		errs = append(errs, fmt.Errorf("invalid EMAIL_MODE %q", c.EmailMode))
	}
	if c.EmailMode == "smtp" && c.SmtpHost == "" {
		errs = append(errs, errors.New("SMTP_HOST is required when EMAIL_MODE is smtp"))
	}
	return errors.Join(errs...)
}
