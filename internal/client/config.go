package client

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the client's environment configuration
type Config struct {
	// BackendURL is the broker service origin
	BackendURL string `env:"HANG_BACKEND_URL" envDefault:"http://localhost:8080"`

	// PollInterval and PollAttempts bound how long EnsureSession waits
	// for the user to finish authenticating in the browser. Defaults
	// give a two minute window.
	PollInterval time.Duration `env:"HANG_POLL_INTERVAL" envDefault:"5s"`
	PollAttempts int           `env:"HANG_POLL_ATTEMPTS" envDefault:"24"`

	RequestTimeout time.Duration `env:"HANG_REQUEST_TIMEOUT" envDefault:"30s"`
}

// LoadConfig reads client configuration from the environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
