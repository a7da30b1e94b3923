// Package config loads server configuration from an optional YAML file
// and the environment. Environment variables override file values, and
// command-line flags override both.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ArchiveBackend selects where crate archives are stored.
type ArchiveBackend string

const (
	// ArchiveLocal keeps archives on the local filesystem under the
	// data directory.
	ArchiveLocal ArchiveBackend = "local"
	// ArchiveS3 keeps archives in an S3 bucket.
	ArchiveS3 ArchiveBackend = "s3"
)

// Config is the full server configuration.
type Config struct {
	// DomainName is the public domain served in /config.json.
	DomainName string `yaml:"domain_name"`
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DataDir holds the document store file and, for the local archive
	// backend, the archive tree.
	DataDir string `yaml:"data_dir"`
	// ArchiveBackend is "local" or "s3".
	ArchiveBackend ArchiveBackend `yaml:"archive_backend"`
	// CratesBucketName is the S3 bucket for the s3 archive backend.
	CratesBucketName string `yaml:"crates_bucket_name"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// LogJSON selects JSON log output instead of the console writer.
	LogJSON bool `yaml:"log_json"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		DomainName:     "localhost:3025",
		ListenAddr:     ":3025",
		DataDir:        "/var/lib/raktar",
		ArchiveBackend: ArchiveLocal,
		LogLevel:       "info",
		LogJSON:        true,
	}
}

// Load reads the optional config file at path (skipped when empty or
// missing), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOMAIN_NAME"); v != "" {
		c.DomainName = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ARCHIVE_BACKEND"); v != "" {
		c.ArchiveBackend = ArchiveBackend(v)
	}
	if v := os.Getenv("CRATES_BUCKET_NAME"); v != "" {
		c.CratesBucketName = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_JSON"); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.ArchiveBackend {
	case ArchiveLocal:
	case ArchiveS3:
		if c.CratesBucketName == "" {
			return fmt.Errorf("CRATES_BUCKET_NAME is required for the s3 archive backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.ArchiveBackend)
	}
	return nil
}
