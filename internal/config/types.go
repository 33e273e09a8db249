package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the backing key-value store
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageFirestore StorageKind = "firestore"
)

// Config is the top-level hangd configuration
type Config struct {
	Server ServerConfig `json:"server"`
}

// ProviderCredentials holds one OAuth provider's confidential client
type ProviderCredentials struct {
	ClientID     string `json:"-"`
	ClientSecret Secret `json:"-"`

	ClientIDRaw     json.RawMessage `json:"clientId,omitempty"`
	ClientSecretRaw json.RawMessage `json:"clientSecret,omitempty"`
}

// Configured reports whether both halves of the credential are present
func (p ProviderCredentials) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// UnmarshalJSON resolves $env references in the credential fields
func (p *ProviderCredentials) UnmarshalJSON(data []byte) error {
	type rawCreds ProviderCredentials
	var raw rawCreds
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = ProviderCredentials(raw)

	if p.ClientIDRaw != nil {
		value, err := ParseConfigValue(p.ClientIDRaw)
		if err != nil {
			return fmt.Errorf("parsing clientId: %w", err)
		}
		p.ClientID = value
	}
	if p.ClientSecretRaw != nil {
		value, err := ParseConfigValue(p.ClientSecretRaw)
		if err != nil {
			return fmt.Errorf("parsing clientSecret: %w", err)
		}
		p.ClientSecret = Secret(value)
	}
	return nil
}

// ServerConfig configures the broker HTTP service
type ServerConfig struct {
	BaseURL string `json:"-"`
	Addr    string `json:"-"`

	// SigningSecret keys the session token HMAC
	SigningSecret Secret `json:"-"`

	Storage             StorageKind `json:"storage,omitempty"`
	GCPProject          string      `json:"-"`
	FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string      `json:"firestoreCollection,omitempty"`

	// HTTPClientTimeout bounds outbound token-exchange and meeting
	// calls. Defaults to 10s. No retries are configured anywhere:
	// authorization codes are single-use and meeting creation is not
	// idempotent.
	HTTPClientTimeout time.Duration `json:"-"`

	Google ProviderCredentials `json:"google"`
	Zoom   ProviderCredentials `json:"zoom"`

	BaseURLRaw       json.RawMessage `json:"baseURL"`
	AddrRaw          json.RawMessage `json:"addr"`
	SigningSecretRaw json.RawMessage `json:"signingSecret"`
	GCPProjectRaw    json.RawMessage `json:"gcpProject,omitempty"`
	TimeoutRaw       string          `json:"httpClientTimeout,omitempty"`
}

// UnmarshalJSON resolves $env references and duration strings
func (c *ServerConfig) UnmarshalJSON(data []byte) error {
	type rawServer ServerConfig
	var raw rawServer
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ServerConfig(raw)

	if c.BaseURLRaw != nil {
		value, err := ParseConfigValue(c.BaseURLRaw)
		if err != nil {
			return fmt.Errorf("parsing baseURL: %w", err)
		}
		c.BaseURL = value
	}
	if c.AddrRaw != nil {
		value, err := ParseConfigValue(c.AddrRaw)
		if err != nil {
			return fmt.Errorf("parsing addr: %w", err)
		}
		c.Addr = value
	}
	if c.SigningSecretRaw != nil {
		value, err := ParseConfigValue(c.SigningSecretRaw)
		if err != nil {
			return fmt.Errorf("parsing signingSecret: %w", err)
		}
		c.SigningSecret = Secret(value)
	}
	if c.GCPProjectRaw != nil {
		value, err := ParseConfigValue(c.GCPProjectRaw)
		if err != nil {
			return fmt.Errorf("parsing gcpProject: %w", err)
		}
		c.GCPProject = value
	}
	if c.TimeoutRaw != "" {
		timeout, err := time.ParseDuration(c.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing httpClientTimeout: %w", err)
		}
		c.HTTPClientTimeout = timeout
	}

	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	if c.Storage == StorageFirestore {
		if c.FirestoreDatabase == "" {
			c.FirestoreDatabase = "(default)"
		}
		if c.FirestoreCollection == "" {
			c.FirestoreCollection = "hang_broker_state"
		}
	}
	if c.HTTPClientTimeout == 0 {
		c.HTTPClientTimeout = 10 * time.Second
	}

	return nil
}

// ParseConfigValue resolves a config value that is either a plain JSON
// string or an {"$env": "VAR_NAME"} reference
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}
