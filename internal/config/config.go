package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Sheet    SheetConfig
	Scraper  ScraperConfig
	Auth     AuthConfig
	Progress ProgressConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// SheetConfig locates the ASIN list and the result column inside the
// spreadsheet. Columns are letters as shown in the sheet UI.
type SheetConfig struct {
	SpreadsheetID string
	Worksheet     string
	ASINColumn    string
	ResultColumn  string
	StartRow      int
}

type ScraperConfig struct {
	ChunkSize    int
	PageDelayMin time.Duration
	PageDelayMax time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	UserAgents   []string
}

type AuthConfig struct {
	CredentialsFile string
	TokenFile       string
}

type ProgressConfig struct {
	File string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Sheet: SheetConfig{
			SpreadsheetID: getEnvOrDefault("SHEET_ID", ""),
			Worksheet:     getEnvOrDefault("SHEET_WORKSHEET", "Sheet1"),
			ASINColumn:    getEnvOrDefault("SHEET_ASIN_COLUMN", "C"),
			ResultColumn:  getEnvOrDefault("SHEET_RESULT_COLUMN", "I"),
			StartRow:      getIntOrDefault("SHEET_START_ROW", 3),
		},
		Scraper: ScraperConfig{
			ChunkSize:    getIntOrDefault("SCRAPER_CHUNK_SIZE", 130),
			PageDelayMin: getDurationOrDefault("SCRAPER_PAGE_DELAY", 2*time.Second),
			PageDelayMax: getDurationOrDefault("SCRAPER_PAGE_DELAY_MAX", 4*time.Second),
			MaxRetries:   getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:   getDurationOrDefault("SCRAPER_RETRY_DELAY", 5*time.Second),
			Timeout:      getDurationOrDefault("SCRAPER_TIMEOUT", 30*time.Second),
			UserAgents:   getStringSliceOrDefault("SCRAPER_USER_AGENTS", defaultUserAgents()),
		},
		Auth: AuthConfig{
			CredentialsFile: getEnvOrDefault("AUTH_CREDENTIALS_FILE", "client_secrets.json"),
			TokenFile:       getEnvOrDefault("AUTH_TOKEN_FILE", "token.json"),
		},
		Progress: ProgressConfig{
			File: getEnvOrDefault("PROGRESS_FILE", "scraper_progress.json"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Sheet.SpreadsheetID == "" {
		return fmt.Errorf("SHEET_ID is required")
	}

	if !isColumnLetter(c.Sheet.ASINColumn) {
		return fmt.Errorf("SHEET_ASIN_COLUMN must be a column letter, got %q", c.Sheet.ASINColumn)
	}

	if !isColumnLetter(c.Sheet.ResultColumn) {
		return fmt.Errorf("SHEET_RESULT_COLUMN must be a column letter, got %q", c.Sheet.ResultColumn)
	}

	if c.Sheet.StartRow < 1 {
		return fmt.Errorf("SHEET_START_ROW must be at least 1")
	}

	if c.Scraper.ChunkSize < 1 {
		return fmt.Errorf("SCRAPER_CHUNK_SIZE must be at least 1")
	}

	if c.Scraper.PageDelayMin > c.Scraper.PageDelayMax {
		return fmt.Errorf("SCRAPER_PAGE_DELAY cannot be greater than SCRAPER_PAGE_DELAY_MAX")
	}

	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES cannot be negative")
	}

	return nil
}

func isColumnLetter(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
