// Package config loads process configuration from environment variables,
// with sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full process configuration.
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	RedisConfig    RedisConfig    `json:"redis"`
	PostgresConfig PostgresConfig `json:"postgres"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	StrategyConfig StrategyConfig `json:"strategy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// RedisConfig holds the position snapshot store configuration. Disabled
// means memory-only snapshots.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// PostgresConfig holds the history database configuration. Disabled means
// no history persistence.
type PostgresConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // console writer when false
}

// StrategyConfig points at the strategy document directory.
type StrategyConfig struct {
	Dir string `json:"dir"`
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		ServerConfig: ServerConfig{
			Host:           getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvIntOrDefault("SERVER_PORT", 8090),
			ProductionMode: getEnvBoolOrDefault("PRODUCTION_MODE", false),
			AllowedOrigins: getEnvListOrDefault("ALLOWED_ORIGINS", nil),
		},
		RedisConfig: RedisConfig{
			Enabled:  getEnvBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getEnvIntOrDefault("REDIS_DB", 0),
		},
		PostgresConfig: PostgresConfig{
			Enabled:  getEnvBoolOrDefault("POSTGRES_ENABLED", false),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvIntOrDefault("POSTGRES_PORT", 5432),
			User:     getEnvOrDefault("POSTGRES_USER", "signal"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
			Database: getEnvOrDefault("POSTGRES_DB", "signal_engine"),
			SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		},
		LoggingConfig: LoggingConfig{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			JSONFormat: getEnvBoolOrDefault("LOG_JSON", false),
		},
		StrategyConfig: StrategyConfig{
			Dir: getEnvOrDefault("STRATEGY_DIR", "strategies"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
