package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Storage       StorageConfig
	Extraction    ExtractionConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	MaxUploadBytes     int64
	LogLevel           string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
	ServiceName    string
}

// StorageConfig configures where uploads live and how long they are kept.
type StorageConfig struct {
	LocalPath     string
	RetentionDays int
	RetentionCron string
}

// ExtractionConfig tunes the text extraction engine and its collaborators.
// Zero amount bounds keep the engine defaults.
type ExtractionConfig struct {
	DefaultCurrency  string
	DefaultType      string // "income" or "expense" when no keyword matches
	MaxReceiptAmount float64
	MaxTableAmount   float64
	MaxManualAmount  float64
	MaxGenericAmount float64
	MaxReceiptItems  int
	InlineThreshold  int
	OCRCommand       string
	OCRLanguage      string
	OCRPageModes     []int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
			MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,
			LogLevel:           getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "receipt-ledger"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "receipt-ledger"),
		},
		Storage: StorageConfig{
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			RetentionDays: getEnvAsInt("STORAGE_RETENTION_DAYS", 90),
			RetentionCron: getEnv("STORAGE_RETENTION_CRON", "0 3 * * *"),
		},
		Extraction: ExtractionConfig{
			DefaultCurrency:  getEnv("EXTRACTION_DEFAULT_CURRENCY", "INR"),
			DefaultType:      strings.ToLower(getEnv("EXTRACTION_DEFAULT_TYPE", "expense")),
			MaxReceiptAmount: getEnvAsFloat("EXTRACTION_MAX_RECEIPT_AMOUNT", 0),
			MaxTableAmount:   getEnvAsFloat("EXTRACTION_MAX_TABLE_AMOUNT", 0),
			MaxManualAmount:  getEnvAsFloat("EXTRACTION_MAX_MANUAL_AMOUNT", 0),
			MaxGenericAmount: getEnvAsFloat("EXTRACTION_MAX_GENERIC_AMOUNT", 0),
			MaxReceiptItems:  getEnvAsInt("EXTRACTION_MAX_RECEIPT_ITEMS", 20),
			InlineThreshold:  getEnvAsInt("EXTRACTION_INLINE_THRESHOLD", 50),
			OCRCommand:       getEnv("OCR_COMMAND", "tesseract"),
			OCRLanguage:      getEnv("OCR_LANGUAGE", "eng"),
			OCRPageModes:     getEnvAsIntList("OCR_PAGE_MODES", []int{6, 3, 4}),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	if t := cfg.Extraction.DefaultType; t != "income" && t != "expense" {
		return nil, fmt.Errorf("EXTRACTION_DEFAULT_TYPE must be income or expense, got %q", t)
	}

	if cfg.Storage.RetentionDays < 0 {
		return nil, fmt.Errorf("STORAGE_RETENTION_DAYS must not be negative, got %d", cfg.Storage.RetentionDays)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated value, dropping empty items.
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsIntList(key string, defaultValue []int) []int {
	items := getEnvAsList(key, nil)
	if items == nil {
		return defaultValue
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		out = append(out, v)
	}
	return out
}
