// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-webcrypto.
//
// go-webcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.


// Package config loads the YAML configuration shared by the webcrypto
// command and the custodian server.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-webcrypto/pkg/crypto/rand"
	"github.com/jeremyhahn/go-webcrypto/pkg/logging"
)

const (
	StorageMemory = "memory"
	StorageFile   = "file"

	DefaultListen            = "127.0.0.1:8443"
	DefaultRequestsPerMinute = 600
	DefaultRemoteTimeout     = 30 * time.Second
	DefaultMetricsPath       = "/metrics"
)

// Config is the root configuration document.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Keystore  KeystoreConfig  `yaml:"keystore"`
	Random    RandomConfig    `yaml:"random"`
	Custodian CustodianConfig `yaml:"custodian"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects where the key store keeps its PKCS#8 blobs and
// certificates.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// KeystoreConfig configures the software key store.
type KeystoreConfig struct {
	// Password encrypts private keys at rest. Empty stores them
	// unencrypted.
	Password   string `yaml:"password"`
	Persistent bool   `yaml:"persistent"`
}

// RandomConfig configures the random fill.
type RandomConfig struct {
	BlockSize int `yaml:"block_size"`
}

// CustodianConfig covers both sides of the remote custodian: the server
// that exposes a wallet and the client that reaches one.
type CustodianConfig struct {
	Listen    string          `yaml:"listen"`
	TLS       TLSConfig       `yaml:"tls"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Remote    RemoteConfig    `yaml:"remote"`
}

// TLSConfig contains TLS settings for the custodian server
type TLSConfig struct {
	Enabled    bool     `yaml:"enabled"`
	CertFile   string   `yaml:"cert_file"`
	KeyFile    string   `yaml:"key_file"`
	CAFile     string   `yaml:"ca_file"`
	ClientAuth string   `yaml:"client_auth"`
	ClientCAs  []string `yaml:"client_cas"`
	MinVersion string   `yaml:"min_version"`
	MaxVersion string   `yaml:"max_version"`

	CipherSuites []string `yaml:"cipher_suites"`
}

// AuthConfig configures bearer token authentication. Tokens are JWTs
// signed by the key in PublicKeyFile.
type AuthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	PublicKeyFile string `yaml:"public_key_file"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// RateLimitConfig contains per-client rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_min"`
	Burst             int  `yaml:"burst"`
}

// RemoteConfig points the client at a custodian server. An empty URL
// selects the local key store.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns an in-memory configuration that needs no file.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Backend: StorageMemory},
		Random:  RandomConfig{BlockSize: rand.DefaultBlockSize},
		Custodian: CustodianConfig{
			Listen:    DefaultListen,
			RateLimit: RateLimitConfig{RequestsPerMinute: DefaultRequestsPerMinute},
			Remote:    RemoteConfig{Timeout: DefaultRemoteTimeout},
		},
		Metrics: MetricsConfig{Path: DefaultMetricsPath},
	}
}

// Load reads configuration from a YAML file on top of Default and applies
// environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default with environment overrides
// when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies WEBCRYPTO_* environment variables
func applyEnvOverrides(cfg *Config) {
	if level := os.Getenv("WEBCRYPTO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("WEBCRYPTO_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if backend := os.Getenv("WEBCRYPTO_STORAGE"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dataDir := os.Getenv("WEBCRYPTO_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
		if cfg.Storage.Backend == StorageMemory {
			cfg.Storage.Backend = StorageFile
		}
	}
	if password := os.Getenv("WEBCRYPTO_KEYSTORE_PASSWORD"); password != "" {
		cfg.Keystore.Password = password
	}

	if blockSize := os.Getenv("WEBCRYPTO_RANDOM_BLOCK_SIZE"); blockSize != "" {
		size, err := strconv.Atoi(blockSize)
		if err != nil || size < 1 {
			log.Printf("Warning: invalid WEBCRYPTO_RANDOM_BLOCK_SIZE value %q, using %d",
				blockSize, cfg.Random.BlockSize)
		} else {
			cfg.Random.BlockSize = size
		}
	}

	if listen := os.Getenv("WEBCRYPTO_LISTEN"); listen != "" {
		cfg.Custodian.Listen = listen
	}
	if url := os.Getenv("WEBCRYPTO_CUSTODIAN_URL"); url != "" {
		cfg.Custodian.Remote.URL = url
	}
	if token := os.Getenv("WEBCRYPTO_CUSTODIAN_TOKEN"); token != "" {
		cfg.Custodian.Remote.Token = token
	}
	if rpm := os.Getenv("WEBCRYPTO_RATELIMIT_RPM"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil || n < 1 {
			log.Printf("Warning: invalid WEBCRYPTO_RATELIMIT_RPM value %q, using %d",
				rpm, cfg.Custodian.RateLimit.RequestsPerMinute)
		} else {
			cfg.Custodian.RateLimit.Enabled = true
			cfg.Custodian.RateLimit.RequestsPerMinute = n
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path must be specified for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (must be memory or file)", c.Storage.Backend)
	}

	if c.Random.BlockSize < 1 {
		return fmt.Errorf("invalid random block_size: %d", c.Random.BlockSize)
	}

	if c.Custodian.TLS.Enabled {
		if c.Custodian.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.Custodian.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}
	if c.Custodian.Auth.Enabled && c.Custodian.Auth.PublicKeyFile == "" {
		return fmt.Errorf("auth public_key_file is required when auth is enabled")
	}
	if c.Custodian.RateLimit.Enabled && c.Custodian.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("invalid ratelimit requests_per_min: %d", c.Custodian.RateLimit.RequestsPerMinute)
	}
	if c.Custodian.Remote.Timeout < 0 {
		return fmt.Errorf("invalid remote timeout: %s", c.Custodian.Remote.Timeout)
	}
	return nil
}

// Logger builds the logger described by the logging section.
func (c *Config) Logger() *logging.Logger {
	return logging.NewLoggerWithOptions(logging.Options{
		Debug:  strings.EqualFold(c.Logging.Level, "debug"),
		Format: c.Logging.Format,
	})
}
