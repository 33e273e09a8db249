package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// Load reads, parses, and validates a config file. Env var references
// are resolved during unmarshaling, so a missing variable fails here
// rather than at first use.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the resolved configuration. Google credentials are
// required at boot; Zoom credentials are optional and checked per
// request so a Google-only deployment still works.
func Validate(config *Config) error {
	srv := &config.Server

	if srv.BaseURL == "" {
		return fmt.Errorf("server.baseURL is required")
	}
	if u, err := url.Parse(srv.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.baseURL must be an absolute URL, got %q", srv.BaseURL)
	}
	if srv.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if len(srv.SigningSecret) < 32 {
		return fmt.Errorf("server.signingSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(srv.SigningSecret))
	}
	if !srv.Google.Configured() {
		return fmt.Errorf("server.google clientId and clientSecret are required")
	}

	switch srv.Storage {
	case StorageMemory:
	case StorageFirestore:
		if srv.GCPProject == "" {
			return fmt.Errorf("server.gcpProject is required when using firestore storage")
		}
	default:
		return fmt.Errorf("unknown storage kind: %s", srv.Storage)
	}

	return nil
}
