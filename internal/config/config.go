package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// devSigningKey is only ever used when ENV=development and no key is set.
const devSigningKey = "kalinga-development-signing-key"

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StoreBackend       string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthTokenTTL       time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	UploadMaxBytes     int64         `mapstructure:"UPLOAD_MAX_BYTES"`
	CourseCatalogPath  string        `mapstructure:"COURSE_CATALOG_PATH"`
	TriageSeed         int64         `mapstructure:"TRIAGE_SEED"`
	TriageRefresh      string        `mapstructure:"TRIAGE_REFRESH"`
	NotifyMode         string        `mapstructure:"NOTIFY_MODE"`
	NotifyBaseURL      string        `mapstructure:"NOTIFY_BASE_URL"`
	NotifyLatencyScale float64       `mapstructure:"NOTIFY_LATENCY_SCALE"`
	NotifySimMin       time.Duration `mapstructure:"NOTIFY_SIM_MIN"`
	NotifySimMax       time.Duration `mapstructure:"NOTIFY_SIM_MAX"`
	WeatherAPIKey      string        `mapstructure:"WEATHER_API_KEY"`
	WeatherBaseURL     string        `mapstructure:"WEATHER_BASE_URL"`
	WeatherRefresh     string        `mapstructure:"WEATHER_REFRESH"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "AUTH_SIGNING_KEY", "AUTH_TOKEN_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "UPLOAD_MAX_BYTES", "COURSE_CATALOG_PATH",
	"TRIAGE_SEED", "TRIAGE_REFRESH", "NOTIFY_MODE", "NOTIFY_BASE_URL",
	"NOTIFY_LATENCY_SCALE", "NOTIFY_SIM_MIN", "NOTIFY_SIM_MAX",
	"WEATHER_API_KEY", "WEATHER_BASE_URL", "WEATHER_REFRESH",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("UPLOAD_MAX_BYTES", 10*1024*1024)
	v.SetDefault("TRIAGE_SEED", 0)
	v.SetDefault("TRIAGE_REFRESH", "@every 60s")
	v.SetDefault("NOTIFY_MODE", "mock")
	v.SetDefault("NOTIFY_LATENCY_SCALE", 1.0)
	v.SetDefault("NOTIFY_SIM_MIN", "25s")
	v.SetDefault("NOTIFY_SIM_MAX", "40s")
	v.SetDefault("WEATHER_BASE_URL", "https://api.openweathermap.org")
	v.SetDefault("WEATHER_REFRESH", "@every 60s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.AuthSigningKey == "" && cfg.IsDev() {
		cfg.AuthSigningKey = devSigningKey
		log.Println("WARNING: AUTH_SIGNING_KEY not set, using the development signing key.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run: the chosen store
// backend has its connection string, production has a real signing key, and
// the simulator interval range is not inverted.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is \"redis\"")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is \"postgres\"")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be \"memory\", \"redis\", or \"postgres\", got %q", c.StoreBackend)
	}

	if c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required (current ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey == devSigningKey {
		return fmt.Errorf("AUTH_SIGNING_KEY must not be the development key in production")
	}

	switch c.NotifyMode {
	case "mock":
	case "remote":
		if c.NotifyBaseURL == "" {
			return fmt.Errorf("NOTIFY_BASE_URL is required when NOTIFY_MODE is \"remote\"")
		}
	default:
		return fmt.Errorf("NOTIFY_MODE must be \"mock\" or \"remote\", got %q", c.NotifyMode)
	}

	if c.NotifySimMin <= 0 || c.NotifySimMax <= c.NotifySimMin {
		return fmt.Errorf("NOTIFY_SIM_MIN must be positive and below NOTIFY_SIM_MAX (got %s, %s)", c.NotifySimMin, c.NotifySimMax)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}

	return nil
}
