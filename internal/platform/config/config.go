package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/ulule/limiter/v3"
)

const defaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      string // ulule/limiter format, e.g. "200-M"
	MigrationsPath string

	// Currency conversion
	FallbackBaseCurrency  string
	FallbackQuoteCurrency string
	FallbackRate          decimal.Decimal
	RateFetchTimeout      time.Duration
	MaxOpenViews          int
	MaxViewsPerUser       int
	ViewIdleTimeout       time.Duration
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("FALLBACK_BASE_CURRENCY", "USD")
	v.SetDefault("FALLBACK_QUOTE_CURRENCY", "VND")
	v.SetDefault("FALLBACK_RATE", "24000")
	v.SetDefault("RATE_FETCH_TIMEOUT", "10s")
	v.SetDefault("MAX_OPEN_VIEWS", 1000)
	v.SetDefault("MAX_VIEWS_PER_USER", 20)
	v.SetDefault("VIEW_IDLE_TIMEOUT", "30m")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:           v.GetString("PGSQL_URL"),
		Port:                  v.GetString("PORT"),
		IsProduction:          v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:         v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		AllowedOrigins:        splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimit:             v.GetString("RATE_LIMIT"),
		MigrationsPath:        v.GetString("MIGRATIONS_PATH"),
		FallbackBaseCurrency:  strings.ToUpper(strings.TrimSpace(v.GetString("FALLBACK_BASE_CURRENCY"))),
		FallbackQuoteCurrency: strings.ToUpper(strings.TrimSpace(v.GetString("FALLBACK_QUOTE_CURRENCY"))),
		MaxOpenViews:          v.GetInt("MAX_OPEN_VIEWS"),
		MaxViewsPerUser:       v.GetInt("MAX_VIEWS_PER_USER"),
	}

	var errs []error

	rate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("FALLBACK_RATE")))
	if err != nil {
		errs = append(errs, fmt.Errorf("FALLBACK_RATE: %w", err))
	}
	cfg.FallbackRate = rate

	timeout, err := time.ParseDuration(v.GetString("RATE_FETCH_TIMEOUT"))
	if err != nil {
		errs = append(errs, fmt.Errorf("RATE_FETCH_TIMEOUT: %w", err))
	}
	cfg.RateFetchTimeout = timeout

	idle, err := time.ParseDuration(v.GetString("VIEW_IDLE_TIMEOUT"))
	if err != nil {
		errs = append(errs, fmt.Errorf("VIEW_IDLE_TIMEOUT: %w", err))
	}
	cfg.ViewIdleTimeout = idle

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		slog.Warn("PGSQL_URL environment variable not set.")
	}
	if cfg.JWTSecret == defaultJWTSecret {
		slog.Warn("JWT_SECRET environment variable not set. Using default insecure key.")
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.IsProduction && c.DatabaseURL == "" {
		errs = append(errs, errors.New("PGSQL_URL is required in production"))
	}
	if c.IsProduction && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT %q: %w", c.RateLimit, err))
	}
	if len(c.FallbackBaseCurrency) != 3 || len(c.FallbackQuoteCurrency) != 3 {
		errs = append(errs, errors.New("FALLBACK_BASE_CURRENCY and FALLBACK_QUOTE_CURRENCY must be 3-letter codes"))
	} else if c.FallbackBaseCurrency == c.FallbackQuoteCurrency {
		errs = append(errs, errors.New("FALLBACK_BASE_CURRENCY and FALLBACK_QUOTE_CURRENCY must differ"))
	}
	if !c.FallbackRate.IsPositive() {
		errs = append(errs, errors.New("FALLBACK_RATE must be positive"))
	}
	if c.RateFetchTimeout <= 0 {
		errs = append(errs, errors.New("RATE_FETCH_TIMEOUT must be positive"))
	}
	if c.MaxOpenViews <= 0 {
		errs = append(errs, errors.New("MAX_OPEN_VIEWS must be positive"))
	}
	if c.MaxViewsPerUser <= 0 || c.MaxViewsPerUser > c.MaxOpenViews {
		errs = append(errs, errors.New("MAX_VIEWS_PER_USER must be positive and not above MAX_OPEN_VIEWS"))
	}
	if c.ViewIdleTimeout <= 0 {
		errs = append(errs, errors.New("VIEW_IDLE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
