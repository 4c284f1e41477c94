// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// WebhookPath is the route Upstream delivers events to
const WebhookPath = "/up_webhook"

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the stores (defaults to "./data", always absolute)
	Port        int
	LogLevel    string
	LogPretty   bool
	AmountScale int64

	UpAPIToken    string
	UpBaseURL     string
	YNABAPIToken  string
	YNABBaseURL   string
	YNABBudgetID  string
	PublicBaseURL string

	RefreshSchedule     string
	BackupSchedule      string
	CheckSchedule       string
	BackupRetentionDays int
	Backup              *BackupConfig
}

// BackupConfig holds the S3-compatible bucket store snapshots are uploaded to
type BackupConfig struct {
	Bucket          string
	Endpoint        string // empty for AWS S3
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether backups are configured
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LEDGERBRIDGE_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("PORT", 8080),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("LOG_PRETTY", false),
		AmountScale:         int64(getEnvAsInt("AMOUNT_SCALE", 10)),
		UpAPIToken:          getEnv("UP_API_TOKEN", ""),
		UpBaseURL:           getEnv("UP_BASE_URL", ""),
		YNABAPIToken:        getEnv("YNAB_API_TOKEN", ""),
		YNABBaseURL:         getEnv("YNAB_BASE_URL", ""),
		YNABBudgetID:        getEnv("YNAB_BUDGET_ID", ""),
		PublicBaseURL:       strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
		RefreshSchedule:     getEnv("REFRESH_SCHEDULE", "@every 6h"),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "@daily"),
		CheckSchedule:       getEnv("CHECK_SCHEDULE", "@every 24h"),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		Backup: &BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"UP_API_TOKEN", c.UpAPIToken},
		{"YNAB_API_TOKEN", c.YNABAPIToken},
		{"YNAB_BUDGET_ID", c.YNABBudgetID},
		{"PUBLIC_BASE_URL", c.PublicBaseURL},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.AmountScale <= 0 {
		return fmt.Errorf("AMOUNT_SCALE must be positive, got %d", c.AmountScale)
	}

	return nil
}

// CallbackURL is the public URL Upstream posts webhook events to
func (c *Config) CallbackURL() string {
	return c.PublicBaseURL + WebhookPath
}

// StoreDir is where the keyed stores live
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "stores")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
