package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the full service configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Lock     LockConfig     `toml:"lock"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig configures storage.
type DatabaseConfig struct {
	Type string `toml:"type"` // sqlite
	DSN  string `toml:"dsn"`  // data source name
}

// AuthConfig configures how the verified user identity is consumed. The
// identity provider itself sits in front of the service (OAuth proxy); the
// service only reads the header it injects and restricts email domains.
type AuthConfig struct {
	EmailHeader    string   `toml:"email_header"`
	AllowedDomains []string `toml:"allowed_domains"`
}

// LockConfig configures the run lock lease.
type LockConfig struct {
	TTLSeconds int `toml:"ttl_seconds"`
}

// TTL returns the lock lease duration.
func (c *LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LoadConfig loads a TOML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.DSN == "" {
		config.Database.DSN = "./data/testframe.db"
	}
	if config.Auth.EmailHeader == "" {
		config.Auth.EmailHeader = "X-Auth-Email"
	}
	if config.Lock.TTLSeconds == 0 {
		config.Lock.TTLSeconds = 120
	}

	return &config, nil
}

// GetAddr returns the server listen address.
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
