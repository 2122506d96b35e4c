package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB_USERNAME string
	DB_PASSWORD string
	DB_HOST     string
	DB_PORT     string
	DB_NAME     string
	DISABLE_TLS string

	SERVER_ADDR  string
	CORS_ORIGINS []string

	// Access tokens
	JWT_SECRET       string
	JWT_ISSUER       string
	ACCESS_TOKEN_TTL time.Duration

	// Redis backs the login rate limiter when REDIS_HOST is set
	REDIS_HOST     string
	REDIS_PORT     string
	REDIS_USERNAME string
	REDIS_PASSWORD string
	REDIS_DB       int

	AUTH_RATE_LIMIT      int
	AUTH_RATE_LIMIT_UNIT string

	// Otel
	OTEL_EXPORTER_OTLP_ENDPOINT string
}

func ReadConfig() *Config {
	return &Config{
		DB_USERNAME: os.Getenv("DB_USERNAME"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     GetEnvOrDefault("DB_HOST", "localhost"),
		DB_PORT:     GetEnvOrDefault("DB_PORT", "5432"),
		DB_NAME:     GetEnvOrDefault("DB_NAME", "synergy"),
		DISABLE_TLS: os.Getenv("DISABLE_TLS"),

		SERVER_ADDR:  GetEnvOrDefault("SERVER_ADDR", "0.0.0.0:6060"),
		CORS_ORIGINS: splitList(GetEnvOrDefault("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),

		JWT_SECRET:       GetEnvOrDefault("JWT_SECRET", "your-secret-key-change-in-production-12345"),
		JWT_ISSUER:       GetEnvOrDefault("JWT_ISSUER", "synergy"),
		ACCESS_TOKEN_TTL: time.Duration(getIntOrDefault("ACCESS_TOKEN_TTL_MINUTES", 30)) * time.Minute,

		REDIS_HOST:     os.Getenv("REDIS_HOST"),
		REDIS_PORT:     GetEnvOrDefault("REDIS_PORT", "6379"),
		REDIS_USERNAME: os.Getenv("REDIS_USERNAME"),
		REDIS_PASSWORD: os.Getenv("REDIS_PASSWORD"),
		REDIS_DB:       getIntOrDefault("REDIS_DB", 0),

		AUTH_RATE_LIMIT:      getIntOrDefault("AUTH_RATE_LIMIT", 10),
		AUTH_RATE_LIMIT_UNIT: GetEnvOrDefault("AUTH_RATE_LIMIT_UNIT", "1min"),

		OTEL_EXPORTER_OTLP_ENDPOINT: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
}

// DatabaseURL builds the postgres connection string shared by the pool and the
// LISTEN connection.
func (c *Config) DatabaseURL() string {
	str := "postgresql://" + c.DB_USERNAME + ":" + c.DB_PASSWORD + "@" + c.DB_HOST + ":" + c.DB_PORT + "/" + c.DB_NAME
	if c.DISABLE_TLS == "true" {
		str = str + "?sslmode=disable"
	}
	return str
}

func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
