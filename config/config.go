package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	AppURL   string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/nexentia?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token signing and credential hashing settings.
// Access and refresh tokens use independent secrets and TTLs so a leaked
// access token stays short-lived and either secret can be rotated alone.
type AuthConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AccessTTLSeconds  int
	RefreshTTLSeconds int
	PasswordCost      int // bcrypt cost for passwords
	TokenCost         int // bcrypt cost for refresh-token hashes
	AllowPublicSignup bool
}

// StripeConfig holds Stripe API credentials and the price -> plan mapping.
type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	PriceClassic    string
	PricePro        string
	PriceEnterprise string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/nexentia?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "nexentia"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			AccessSecret:      getEnv("JWT_ACCESS_SECRET", "change-me-access"),
			RefreshSecret:     getEnv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessTTLSeconds:  getEnvInt("ACCESS_TTL_SECONDS", 900),
			RefreshTTLSeconds: getEnvInt("REFRESH_TTL_SECONDS", 2592000),
			PasswordCost:      getEnvInt("BCRYPT_PASSWORD_COST", 12),
			TokenCost:         getEnvInt("BCRYPT_TOKEN_COST", 10),
			AllowPublicSignup: getEnv("ALLOW_PUBLIC_SIGNUP", "false") == "true",
		},
		Stripe: StripeConfig{
			SecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceClassic:    getEnv("STRIPE_PRICE_CLASSIC", ""),
			PricePro:        getEnv("STRIPE_PRICE_PRO", ""),
			PriceEnterprise: getEnv("STRIPE_PRICE_ENTERPRISE", ""),
		},
		AppURL: getEnv("APP_URL", "http://localhost:3000"),
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
