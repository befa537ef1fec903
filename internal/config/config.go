// Package config provides configuration management for the round engine.
package config

import (
	"os"
	"time"
)

// Config holds all service-level configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Wallet   WalletConfig
	Game     GameConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// AuthConfig holds token validation configuration for the API layer.
type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// WalletConfig holds remote wallet API configuration. An empty
// BaseURL selects the engine's own Postgres ledger instead.
type WalletConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	SiteCode  string
}

// GameConfig holds engine-level configuration.
type GameConfig struct {
	DefaultCurrency string
	TablesPath      string // optional YAML game-table override
	MinWager        int64
	MaxWager        int64
}

// Load loads configuration from environment with defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("ENGINE_PORT", "8080"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: getEnv("ENGINE_DB_DRIVER", "postgres"),
			DSN:    getEnv("ENGINE_DB_DSN", "host=localhost dbname=roundengine sslmode=disable"),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("ENGINE_JWT_SECRET", "engine-dev-secret-change-in-production"),
			TokenExpiry: 24 * time.Hour,
		},
		Wallet: WalletConfig{
			BaseURL:   getEnv("ENGINE_WALLET_URL", ""),
			APIKey:    getEnv("ENGINE_WALLET_API_KEY", ""),
			APISecret: getEnv("ENGINE_WALLET_API_SECRET", ""),
			SiteCode:  getEnv("ENGINE_WALLET_SITE_CODE", ""),
		},
		Game: GameConfig{
			DefaultCurrency: getEnv("ENGINE_CURRENCY", "USD"),
			TablesPath:      getEnv("ENGINE_TABLES_PATH", ""),
			MinWager:        10,      // $0.10
			MaxWager:        1000000, // $10,000.00
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
