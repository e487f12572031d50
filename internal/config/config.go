// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and the user state document (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Market data feed
	FeedBaseURL        string // Exchange site root, also used for the cookie priming request
	FeedTimeoutSecs    int    // Per-request timeout for the feed client
	FeedSeries         string // Instrument type query (e.g. "gsec")
	QuoteRefreshSecs   int    // Live quote cache window / refresh cadence
	ReferenceSyncHours int    // Reference data reload cadence

	// Reference data source
	ReferenceCSVPath string

	// Scanner defaults (overridable per request)
	ScanYieldThreshold   float64
	ScanVolumeMultiplier float64
	ScanMinVolume        float64
	ScanTopN             int

	// Optional S3-compatible backup target (Cloudflare R2 / AWS S3)
	Backup *BackupConfig
}

// BackupConfig holds the nightly data-dir backup settings. Backup is
// disabled unless all connection fields are present.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	RetainCount     int // how many archives to keep remotely
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("BOND_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8001),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		FeedBaseURL:        getEnv("FEED_BASE_URL", "https://www.nseindia.com"),
		FeedTimeoutSecs:    getEnvAsInt("FEED_TIMEOUT_SECS", 10),
		FeedSeries:         getEnv("FEED_SERIES", "gsec"),
		QuoteRefreshSecs:   getEnvAsInt("QUOTE_REFRESH_SECS", 10),
		ReferenceSyncHours: getEnvAsInt("REFERENCE_SYNC_HOURS", 6),

		ReferenceCSVPath: getEnv("REFERENCE_CSV_PATH", filepath.Join(absDataDir, "bond_reference.csv")),

		ScanYieldThreshold:   getEnvAsFloat("SCAN_YIELD_THRESHOLD", 0.25),
		ScanVolumeMultiplier: getEnvAsFloat("SCAN_VOLUME_MULTIPLIER", 2.0),
		ScanMinVolume:        getEnvAsFloat("SCAN_MIN_VOLUME", 100),
		ScanTopN:             getEnvAsInt("SCAN_TOP_N", 20),

		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UserStatePath is the watchlist/alerts document shared with cmd/notifier.
func (c *Config) UserStatePath() string {
	return filepath.Join(c.DataDir, "user_state.json")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.QuoteRefreshSecs < 1 {
		return fmt.Errorf("QUOTE_REFRESH_SECS must be at least 1, got %d", c.QuoteRefreshSecs)
	}
	if c.ReferenceSyncHours < 1 {
		return fmt.Errorf("REFERENCE_SYNC_HOURS must be at least 1, got %d", c.ReferenceSyncHours)
	}
	if c.ScanTopN < 1 {
		return fmt.Errorf("SCAN_TOP_N must be at least 1, got %d", c.ScanTopN)
	}
	return nil
}

func loadBackupConfig() *BackupConfig {
	cfg := &BackupConfig{
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		RetainCount:     getEnvAsInt("BACKUP_RETAIN_COUNT", 7),
	}
	cfg.Enabled = cfg.Endpoint != "" && cfg.AccessKeyID != "" &&
		cfg.SecretAccessKey != "" && cfg.Bucket != ""
	return cfg
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
