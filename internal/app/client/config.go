/*
Package client implements the terminal chat client.

This file defines the saved connection record and the file it lives in. The
record remembers the server address and, after a successful login, the
credentials used for automatic login on the next start.
*/
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// DefaultHost is offered when the user enters no host.
	DefaultHost = "localhost"

	// DefaultPort is offered when the user enters no valid port.
	DefaultPort = 11000
)

// ServerConfig is the saved connection record. The keys match the
// serverconfig.json files written by earlier clients.
type ServerConfig struct {
	Host     string `json:"IP"`
	Port     int    `json:"Port"`
	Username string `json:"Username,omitempty"`
	Password string `json:"Password,omitempty"`
}

// Addr returns the host:port to dial.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HasCredentials reports whether an automatic login can be attempted.
func (c ServerConfig) HasCredentials() bool {
	return c.Username != ""
}

// ConfigStore reads and writes the record as a JSON file.
type ConfigStore struct {
	// Path is the location of the JSON file.
	Path string
}

// NewConfigStore returns a store for the file at path.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{Path: path}
}

// Load returns the saved record, or nil if none exists yet.
// A file that does not hold exactly one well-formed record is an error.
func (s *ConfigStore) Load() (*ServerConfig, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var cfg ServerConfig
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode client config %s: %w", s.Path, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("decode client config %s: unexpected data after the record", s.Path)
	}
	if cfg.Host == "" || cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("client config %s: host and a port between 1 and 65535 are required", s.Path)
	}

	return &cfg, nil
}

// Save writes cfg, creating the parent directory if needed.
func (s *ConfigStore) Save(cfg ServerConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create client config directory: %w", err)
	}
	if err := os.WriteFile(s.Path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write client config: %w", err)
	}
	return nil
}
