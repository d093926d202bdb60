// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port            string `mapstructure:"PORT"`
	Env             string `mapstructure:"APP_ENV"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`
	JWTIssuer       string `mapstructure:"JWT_ISSUER"`
	JWTAudience     string `mapstructure:"JWT_AUDIENCE"`
	DBDriver        string `mapstructure:"DB_DRIVER"`
	DBHost          string `mapstructure:"DB_HOST"`
	DBPort          string `mapstructure:"DB_PORT"`
	DBUser          string `mapstructure:"DB_USER"`
	DBPassword      string `mapstructure:"DB_PASSWORD"`
	DBName          string `mapstructure:"DB_NAME"`
	DBSSLMode       string `mapstructure:"DB_SSLMODE"`
	SQLitePath      string `mapstructure:"SQLITE_PATH"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	AllowedOrigins  string `mapstructure:"ALLOWED_ORIGINS"`
	PublicBaseURL   string `mapstructure:"PUBLIC_BASE_URL"`
	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	MaxUploadMB     int    `mapstructure:"MAX_UPLOAD_MB"`
	CacheTTLSeconds int    `mapstructure:"CACHE_TTL_SECONDS"`

	TracingEnabled  bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TraceSampleRate float64 `mapstructure:"TRACE_SAMPLE_RATE"`
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadConfig loads .env files, config.yml (plus the profile overlay) and the
// environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	loadDotEnv()

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	viper.SetDefault("PORT", "5000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "inkwell-api")
	viper.SetDefault("JWT_AUDIENCE", "inkwell-app")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "inkwell")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "inkwell.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:5000")
	viper.SetDefault("UPLOAD_DIR", "uploads")
	viper.SetDefault("MAX_UPLOAD_MB", 10)
	viper.SetDefault("CACHE_TTL_SECONDS", 30)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACE_SAMPLE_RATE", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadDotEnv loads .env.<APP_ENV> then .env. godotenv never overrides
// variables that are already set, so the profile file wins over the base one.
func loadDotEnv() {
	env := strings.TrimSpace(strings.ToLower(os.Getenv("APP_ENV")))
	if env == "" {
		env = "development"
	}
	for _, name := range []string{".env." + env, ".env"} {
		if err := godotenv.Load(name); err == nil {
			log.Printf("Loaded environment file: %s", name)
		}
	}
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return errors.New("TRACE_SAMPLE_RATE must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.AllowedOrigins == "*" || c.AllowedOrigins == "" {
			return errors.New("ALLOWED_ORIGINS must list explicit origins in production")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
