package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validConfig = `{
  "server": {
    "baseURL": "https://hang.example.com",
    "addr": ":8080",
    "signingSecret": "0123456789abcdef0123456789abcdef",
    "google": {
      "clientId": "google-client",
      "clientSecret": "google-secret"
    }
  }
}`

func TestLoad(t *testing.T) {
	t.Run("valid config with defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)

		srv := cfg.Server
		assert.Equal(t, "https://hang.example.com", srv.BaseURL)
		assert.Equal(t, ":8080", srv.Addr)
		assert.Equal(t, StorageMemory, srv.Storage)
		assert.Equal(t, 10*time.Second, srv.HTTPClientTimeout)
		assert.True(t, srv.Google.Configured())
		assert.False(t, srv.Zoom.Configured())
	})

	t.Run("env references are resolved", func(t *testing.T) {
		t.Setenv("TEST_GOOGLE_SECRET", "from-env")

		cfg, err := Load(writeConfig(t, `{
		  "server": {
		    "baseURL": "https://hang.example.com",
		    "addr": ":8080",
		    "signingSecret": "0123456789abcdef0123456789abcdef",
		    "google": {
		      "clientId": "google-client",
		      "clientSecret": {"$env": "TEST_GOOGLE_SECRET"}
		    }
		  }
		}`))
		require.NoError(t, err)
		assert.Equal(t, Secret("from-env"), cfg.Server.Google.ClientSecret)
	})

	t.Run("missing env reference fails", func(t *testing.T) {
		_, err := Load(writeConfig(t, `{
		  "server": {
		    "baseURL": "https://hang.example.com",
		    "addr": ":8080",
		    "signingSecret": {"$env": "DEFINITELY_NOT_SET_ANYWHERE"},
		    "google": {"clientId": "a", "clientSecret": "b"}
		  }
		}`))
		assert.ErrorContains(t, err, "DEFINITELY_NOT_SET_ANYWHERE")
	})

	t.Run("quoted env values are unwrapped", func(t *testing.T) {
		t.Setenv("TEST_QUOTED", `"quoted-value"`)

		value, err := ParseConfigValue(json.RawMessage(`{"$env": "TEST_QUOTED"}`))
		require.NoError(t, err)
		assert.Equal(t, "quoted-value", value)
	})

	t.Run("firestore defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `{
		  "server": {
		    "baseURL": "https://hang.example.com",
		    "addr": ":8080",
		    "signingSecret": "0123456789abcdef0123456789abcdef",
		    "storage": "firestore",
		    "gcpProject": "my-project",
		    "google": {"clientId": "a", "clientSecret": "b"}
		  }
		}`))
		require.NoError(t, err)
		assert.Equal(t, "(default)", cfg.Server.FirestoreDatabase)
		assert.Equal(t, "hang_broker_state", cfg.Server.FirestoreCollection)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := Load(writeConfig(t, "{not json"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load(writeConfig(t, validConfig))
		require.NoError(t, err)
		return cfg
	}

	t.Run("short signing secret", func(t *testing.T) {
		cfg := base()
		cfg.Server.SigningSecret = "short"
		assert.ErrorContains(t, Validate(&cfg), "signingSecret")
	})

	t.Run("relative base URL", func(t *testing.T) {
		cfg := base()
		cfg.Server.BaseURL = "/not-absolute"
		assert.ErrorContains(t, Validate(&cfg), "baseURL")
	})

	t.Run("google credentials required", func(t *testing.T) {
		cfg := base()
		cfg.Server.Google = ProviderCredentials{}
		assert.ErrorContains(t, Validate(&cfg), "google")
	})

	t.Run("zoom credentials optional", func(t *testing.T) {
		cfg := base()
		cfg.Server.Zoom = ProviderCredentials{}
		assert.NoError(t, Validate(&cfg))
	})

	t.Run("firestore requires project", func(t *testing.T) {
		cfg := base()
		cfg.Server.Storage = StorageFirestore
		assert.ErrorContains(t, Validate(&cfg), "gcpProject")
	})

	t.Run("unknown storage kind", func(t *testing.T) {
		cfg := base()
		cfg.Server.Storage = "redis"
		assert.ErrorContains(t, Validate(&cfg), "storage")
	})
}

func TestSecretRedaction(t *testing.T) {
	secret := Secret("super-secret")
	assert.Equal(t, "***", secret.String())

	data, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.Equal(t, `"***"`, string(data))

	empty := Secret("")
	assert.Equal(t, "", empty.String())
}
