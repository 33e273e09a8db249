package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenStore caches the broker session token between invocations
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

var _ TokenStore = (*FileTokenCache)(nil)

// FileTokenCache stores the session token in the user's config
// directory. The token grants meeting creation on the linked account,
// so the file is kept user-readable only.
type FileTokenCache struct {
	path string
}

// NewFileTokenCache creates a cache under os.UserConfigDir
func NewFileTokenCache() (*FileTokenCache, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	return &FileTokenCache{path: filepath.Join(dir, "hang", "token")}, nil
}

// NewFileTokenCacheAt creates a cache at an explicit path
func NewFileTokenCacheAt(path string) *FileTokenCache {
	return &FileTokenCache{path: path}
}

// Get returns the cached token, or empty if none is cached
func (c *FileTokenCache) Get() (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading token cache: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Set writes the token to the cache
func (c *FileTokenCache) Set(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// Clear removes the cached token. A missing cache is a no-op.
func (c *FileTokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing token cache: %w", err)
	}
	return nil
}
