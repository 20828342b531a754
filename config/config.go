// Package config loads agent configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	// Config holds all agent configuration.
	Config struct {
		HTTP    HTTP
		Log     Log
		Storage Storage
		Remote  Remote
		Monitor Monitor
	}

	// HTTP is the localhost surface the UI talks to.
	HTTP struct {
		Port string `env:"HTTP_PORT" envDefault:"8090"`
	}

	// Log configures structured logging.
	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"INFO"`
	}

	// Storage locates the local SQLite database.
	Storage struct {
		DataDir string `env:"DATA_DIR" envDefault:"./data"`
	}

	// Remote configures the parking backend connection.
	Remote struct {
		BaseURL string        `env:"REMOTE_BASE_URL,required"`
		APIKey  string        `env:"REMOTE_API_KEY"`
		Timeout time.Duration `env:"REMOTE_TIMEOUT" envDefault:"30s"`
	}

	// Monitor configures connectivity probing.
	Monitor struct {
		ProbeInterval time.Duration `env:"PROBE_INTERVAL" envDefault:"10s"`
		ProbeTimeout  time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s"`
		Debounce      time.Duration `env:"PROBE_DEBOUNCE" envDefault:"3s"`
	}
)

// New loads configuration from a .env file (when present) and the
// environment.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
