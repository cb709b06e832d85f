package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Classifier ClassifierConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns int
	MinConns int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the optional department-resolver cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// ClassifierConfig holds settings for the external prioritization service.
type ClassifierConfig struct {
	URL     string
	Enabled bool
	// Timeout bounds the classify call; past it the report is created
	// with default priority and no department.
	Timeout time.Duration
	// Scale is the score scale the service returns: "unit" (0-1) or "ten" (0-10).
	Scale string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Optional .env for local development; real environments set vars directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "civicgrid"),
			Password: getEnv("DB_PASSWORD", "civicgrid"),
			Database: getEnv("DB_NAME", "civicgrid"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			TTL:      getEnvDuration("REDIS_TTL", 10*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTL:  getEnvDuration("JWT_TTL", time.Hour),
		},
		Classifier: ClassifierConfig{
			URL:     getEnv("CLASSIFIER_URL", "http://localhost:5002"),
			Enabled: getEnvBool("CLASSIFIER_ENABLED", true),
			Timeout: getEnvDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
			Scale:   getEnv("CLASSIFIER_SCALE", "ten"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
