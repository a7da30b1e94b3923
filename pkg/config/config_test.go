package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault tests the out-of-the-box configuration
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3025", cfg.ListenAddr)
	assert.Equal(t, ArchiveLocal, cfg.ArchiveBackend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	require.NoError(t, cfg.Validate())
}

// TestLoadFile tests YAML file loading
func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
domain_name: crates.example.com
listen_addr: ":8080"
data_dir: /tmp/raktar-test
log_level: debug
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "crates.example.com", cfg.DomainName)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "/tmp/raktar-test", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset fields keep their defaults.
	assert.Equal(t, ArchiveLocal, cfg.ArchiveBackend)
}

// TestLoadMissingFile tests that a missing config file is not an error
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

// TestEnvOverrides tests that environment variables win over the file
func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domain_name: from-file.example.com\n"), 0600))

	t.Setenv("DOMAIN_NAME", "from-env.example.com")
	t.Setenv("ARCHIVE_BACKEND", "s3")
	t.Setenv("CRATES_BUCKET_NAME", "my-crates")
	t.Setenv("LOG_JSON", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.example.com", cfg.DomainName)
	assert.Equal(t, ArchiveS3, cfg.ArchiveBackend)
	assert.Equal(t, "my-crates", cfg.CratesBucketName)
	assert.False(t, cfg.LogJSON)
}

// TestValidate tests cross-field constraints
func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ArchiveBackend = ArchiveS3
	assert.Error(t, cfg.Validate(), "s3 backend requires a bucket name")

	cfg.CratesBucketName = "my-crates"
	assert.NoError(t, cfg.Validate())

	cfg.ArchiveBackend = "floppy"
	assert.Error(t, cfg.Validate())
}
