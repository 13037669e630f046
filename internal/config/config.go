package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"finanse/internal/core"
	"finanse/internal/currency"
	"finanse/internal/retirement"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID       string
	GoogleAssetsSheet         string
	GoogleHistorySheet        string
	GoogleMilestonesSheet     string
	GoogleContributionsSheet  string
	GoogleCategoriesSheet     string
	GoogleServiceAccountFile  string
	GoogleServiceAccountJSON  string
	GoogleApplicationCredFile string
	GoogleOAuthClientJSON     string
	GoogleOAuthClientFile     string
	GoogleOAuthTokenFile      string

	// Money
	BaseCurrency     string
	ExchangeRates    string // "USD=3.95,EUR=4.31"
	RetirementLimits string // "2026:IKE=28260,2026:IKZE=11304"

	// Reports
	EmergencyFundMonths int
	AnomalyThreshold    float64
	ReportCacheTTL      time.Duration

	// Workers
	SnapshotEvery    string
	SnapshotDay      int
	SnapshotInterval time.Duration
	MergeMaxAttempts int
}

var validSchedules = []string{"daily", "weekly", "monthly", "quarterly"}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/finanse.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanse"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "asset_merges"),

		GoogleSpreadsheetID:       getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleAssetsSheet:         getEnv("GOOGLE_ASSETS_SHEET_NAME", ""),
		GoogleHistorySheet:        getEnv("GOOGLE_HISTORY_SHEET_NAME", ""),
		GoogleMilestonesSheet:     getEnv("GOOGLE_MILESTONES_SHEET_NAME", ""),
		GoogleContributionsSheet:  getEnv("GOOGLE_CONTRIBUTIONS_SHEET_NAME", ""),
		GoogleCategoriesSheet:     getEnv("GOOGLE_CATEGORIES_SHEET_NAME", ""),
		GoogleServiceAccountFile:  getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON:  getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleApplicationCredFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleOAuthClientJSON:     getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:     getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:      getEnv("GOOGLE_OAUTH_TOKEN_FILE", "token.json"),

		BaseCurrency:     getEnv("BASE_CURRENCY", "PLN"),
		ExchangeRates:    getEnv("EXCHANGE_RATES", ""),
		RetirementLimits: getEnv("RETIREMENT_LIMITS", ""),

		EmergencyFundMonths: getEnvInt("EMERGENCY_FUND_MONTHS", 6),
		AnomalyThreshold:    getEnvFloat("ANOMALY_THRESHOLD", 0.15),
		ReportCacheTTL:      getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),

		SnapshotEvery:    getEnv("SNAPSHOT_EVERY", "monthly"),
		SnapshotDay:      getEnvInt("SNAPSHOT_DAY", 1),
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", time.Hour),
		MergeMaxAttempts: getEnvInt("MERGE_MAX_ATTEMPTS", 5),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sheets", "sqlite"}
	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// AMQP is optional; without it merges are applied synchronously
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		credFile := c.GoogleServiceAccountFile
		if credFile == "" {
			credFile = c.GoogleApplicationCredFile
		}
		oauth := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
		switch {
		case oauth:
			if _, err := os.Stat(c.GoogleOAuthTokenFile); err != nil {
				errors = append(errors, fmt.Sprintf("Google OAuth token file '%s' is not readable, run oauth-init: %v", c.GoogleOAuthTokenFile, err))
			}
		case c.GoogleServiceAccountJSON == "" && credFile == "":
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or an OAuth client must be provided for sheets backend")
		}
		if !oauth && c.GoogleServiceAccountJSON == "" && credFile != "" {
			if _, err := os.Stat(credFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", credFile))
			}
		}
	}

	if !core.ValidCurrency(core.NormalizeCurrency(c.BaseCurrency)) {
		errors = append(errors, fmt.Sprintf("invalid base currency '%s'", c.BaseCurrency))
	} else if _, err := c.Rates(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid exchange rates: %v", err))
	}
	if _, err := c.Limits(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid retirement limits: %v", err))
	}

	if c.EmergencyFundMonths < 1 || c.EmergencyFundMonths > 36 {
		errors = append(errors, fmt.Sprintf("invalid emergency fund months %d: must be between 1 and 36", c.EmergencyFundMonths))
	}
	if c.AnomalyThreshold <= 0 || c.AnomalyThreshold > 10 {
		errors = append(errors, fmt.Sprintf("invalid anomaly threshold %v: must be above 0 and at most 10", c.AnomalyThreshold))
	}
	if c.ReportCacheTTL < 0 || c.ReportCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be between 0 and 24 hours", c.ReportCacheTTL))
	}

	if !contains(validSchedules, strings.ToLower(c.SnapshotEvery)) {
		errors = append(errors, fmt.Sprintf("invalid snapshot schedule '%s': must be one of %v", c.SnapshotEvery, validSchedules))
	}
	if c.SnapshotDay < 1 || c.SnapshotDay > 31 {
		errors = append(errors, fmt.Sprintf("invalid snapshot day %d: must be between 1 and 31", c.SnapshotDay))
	}
	if c.SnapshotInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 1 minute", c.SnapshotInterval))
	} else if c.SnapshotInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at most 24 hours", c.SnapshotInterval))
	}
	if c.MergeMaxAttempts < 1 || c.MergeMaxAttempts > 20 {
		errors = append(errors, fmt.Sprintf("invalid merge max attempts %d: must be between 1 and 20", c.MergeMaxAttempts))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Rates builds the exchange rate table for the base currency.
func (c *Config) Rates() (*currency.StaticRates, error) {
	return currency.ParseRates(c.BaseCurrency, c.ExchangeRates)
}

// Limits returns the statutory retirement caps with RETIREMENT_LIMITS
// applied on top.
func (c *Config) Limits() (retirement.LimitContext, error) {
	return retirement.DefaultLimits().WithOverrides(c.RetirementLimits)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
