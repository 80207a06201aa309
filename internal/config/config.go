package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// Record store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Record store selection and database configuration
	Store    StoreConfig
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig

	// Logging configuration
	Logging LoggingConfig

	// Metrics endpoint configuration
	Metrics MetricsConfig

	// Working calendar used for SLA arithmetic
	Calendar CalendarConfig

	// Report assembly and export tuning
	Reports ReportsConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string // postgres, memory
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
	MigrationsPath  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	ExportRPS         float64 // Per-user limit for document exports
	ExportBurst       int
}

// CORSConfig holds cross-origin configuration
type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// CalendarConfig holds the raw working calendar settings
type CalendarConfig struct {
	StartHour   int
	EndHour     int
	EndMinute   int
	WorkingDays []string
	Timezone    string
}

// ReportsConfig holds report assembly settings
type ReportsConfig struct {
	BatchSize         int
	BatchRetries      int
	DefaultWindowDays int
	TrendMaxDays      int
	DefaultLimit      int
	MaxLimit          int
	Timeout           time.Duration
	ExportPageSize    int
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnvOrDefault("RECORD_STORE", StorePostgres)),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolOrDefault("DB_AUTO_MIGRATE", false),
			MigrationsPath:  getEnvOrDefault("DB_MIGRATIONS_PATH", "migrations"),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: getDurationOrDefault("JWT_ACCESS_TOKEN_TTL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
			ExportRPS:         getFloatOrDefault("RATE_LIMIT_EXPORT_RPS", 0.2),
			ExportBurst:       getIntOrDefault("RATE_LIMIT_EXPORT_BURST", 3),
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
			MaxAge:         getIntOrDefault("CORS_MAX_AGE", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolOrDefault("METRICS_ENABLED", true),
			Path:    getEnvOrDefault("METRICS_PATH", "/metrics"),
		},
		Calendar: CalendarConfig{
			StartHour:   getIntOrDefault("WORK_START_HOUR", 9),
			EndHour:     getIntOrDefault("WORK_END_HOUR", 17),
			EndMinute:   getIntOrDefault("WORK_END_MINUTE", 30),
			WorkingDays: getStringSliceOrDefault("WORK_DAYS", []string{"mon", "tue", "wed", "thu", "fri", "sat"}),
			Timezone:    getEnvOrDefault("WORK_TIMEZONE", "UTC"),
		},
		Reports: ReportsConfig{
			BatchSize:         getIntOrDefault("REPORT_BATCH_SIZE", 5),
			BatchRetries:      getIntOrDefault("REPORT_BATCH_RETRIES", 1),
			DefaultWindowDays: getIntOrDefault("REPORT_DEFAULT_WINDOW_DAYS", 30),
			TrendMaxDays:      getIntOrDefault("REPORT_TREND_MAX_DAYS", 90),
			DefaultLimit:      getIntOrDefault("REPORT_DEFAULT_LIMIT", 500),
			MaxLimit:          getIntOrDefault("REPORT_MAX_LIMIT", 1000),
			Timeout:           getDurationOrDefault("REPORT_TIMEOUT", 60*time.Second),
			ExportPageSize:    getIntOrDefault("EXPORT_PAGE_SIZE", 40),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "field-metrics"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	switch c.Store.Backend {
	case StorePostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("RECORD_STORE must be %q or %q", StorePostgres, StoreMemory))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	// Security validations
	if c.App.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}

		if len(c.CORS.AllowedOrigins) == 0 {
			errs = append(errs, "CORS_ALLOWED_ORIGINS must be set in production")
		}

		if c.Store.Backend == StoreMemory {
			errs = append(errs, "RECORD_STORE=memory is not allowed in production")
		}
	}

	// Logical validations
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	if c.Reports.BatchSize < 1 {
		errs = append(errs, "REPORT_BATCH_SIZE must be at least 1")
	}
	if c.Reports.BatchRetries < 0 {
		errs = append(errs, "REPORT_BATCH_RETRIES cannot be negative")
	}
	if c.Reports.DefaultWindowDays < 1 {
		errs = append(errs, "REPORT_DEFAULT_WINDOW_DAYS must be at least 1")
	}
	if c.Reports.TrendMaxDays < 1 {
		errs = append(errs, "REPORT_TREND_MAX_DAYS must be at least 1")
	}
	if c.Reports.MaxLimit < 1 {
		errs = append(errs, "REPORT_MAX_LIMIT must be at least 1")
	}
	if c.Reports.DefaultLimit < 1 || c.Reports.DefaultLimit > c.Reports.MaxLimit {
		errs = append(errs, "REPORT_DEFAULT_LIMIT must be between 1 and REPORT_MAX_LIMIT")
	}
	if c.Reports.ExportPageSize < 1 {
		errs = append(errs, "EXPORT_PAGE_SIZE must be at least 1")
	}

	if _, err := c.WorkCalendar(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "METRICS_PATH must start with /")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}

	return nil
}

// WorkCalendar resolves the calendar settings into the domain configuration.
func (c *Config) WorkCalendar() (domain.WorkCalendarConfig, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return domain.WorkCalendarConfig{}, fmt.Errorf("WORK_TIMEZONE: %w", err)
	}

	days := make([]time.Weekday, 0, len(c.Calendar.WorkingDays))
	for _, name := range c.Calendar.WorkingDays {
		d, ok := weekdays[strings.ToLower(name)]
		if !ok {
			return domain.WorkCalendarConfig{}, fmt.Errorf("WORK_DAYS: unknown weekday %q", name)
		}
		days = append(days, d)
	}

	wc := domain.WorkCalendarConfig{
		StartHour:       c.Calendar.StartHour,
		EndHour:         c.Calendar.EndHour,
		EndMinute:       c.Calendar.EndMinute,
		WorkingWeekdays: days,
		Location:        loc,
	}
	if err := wc.Validate(); err != nil {
		return domain.WorkCalendarConfig{}, fmt.Errorf("working calendar: %w", err)
	}
	return wc, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Store: %s, DB: %s, JWT: [REDACTED], RateLimit: %v, Calendar: %s, Environment: %s}",
		c.Server.Port,
		c.Store.Backend,
		redactURL(c.Database.URL),
		c.RateLimit.Enabled,
		c.Calendar.Timezone,
		c.App.Environment,
	)
}

// redactURL hides credentials in a database URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}
