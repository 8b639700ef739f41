package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pbjson "github.com/meftunca/postbench/pkg/json"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "postbench_test_config_*.yaml")
	require.NoError(t, err)
	_, err = tmpfile.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "http://127.0.0.1:8088/collections", cfg.Target.URL)
	assert.Equal(t, 5000, cfg.Batch.Size)
	assert.Equal(t, ModeSequential, cfg.Dispatch.Mode)
	assert.Equal(t, CompressionNone, cfg.Compression.Type)
	assert.Equal(t, pbjson.JSONLibraryStandard, cfg.JSON.Library)
	assert.False(t, cfg.IsCompressionEnabled())
	assert.Equal(t, "127.0.0.1:8088", cfg.ServerAddr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
target:
  url: "http://localhost:9000/collections"
batch:
  size: 3
dispatch:
  mode: "concurrent"
  concurrency: 8
http:
  timeout: "250ms"
  keep_alive: false
json:
  library: "sonic"
compression:
  type: "zstd"
  level: 3
logging:
  level: "debug"
server:
  storage: "redis"
  redis:
    addresses: ["redis-a:6379", "redis-b:6379"]
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/collections", cfg.Target.URL)
	assert.Equal(t, 3, cfg.Batch.Size)
	assert.Equal(t, ModeConcurrent, cfg.Dispatch.Mode)
	assert.Equal(t, 8, cfg.Dispatch.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.Timeout)
	assert.False(t, cfg.HTTP.KeepAlive)
	assert.Equal(t, pbjson.JSONLibrarySonic, cfg.JSON.Library)
	assert.Equal(t, CompressionZstd, cfg.Compression.Type)
	assert.True(t, cfg.IsCompressionEnabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Server.Redis.Addresses)

	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.HTTP.MaxIdleConns)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	t.Setenv("POSTBENCH_BATCH_SIZE", "42")
	t.Setenv("POSTBENCH_TARGET_URL", "http://env-host:8088/collections")
	t.Setenv("POSTBENCH_COMPRESSION_TYPE", "gzip")

	path := writeConfig(t, `
batch:
  size: 7
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Batch.Size, "environment overrides file")
	assert.Equal(t, "http://env-host:8088/collections", cfg.Target.URL, "environment applies without file key")
	assert.Equal(t, CompressionGzip, cfg.Compression.Type)
}

func TestLoadConfigWithFlags(t *testing.T) {
	t.Setenv("POSTBENCH_BATCH_SIZE", "42")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch-size", 0, "")
	flags.String("mode", "", "")
	flags.String("url", "", "")
	require.NoError(t, flags.Parse([]string{"--batch-size=3", "--mode=concurrent"}))

	cfg, err := LoadConfig(writeConfig(t, "logging:\n  level: warn\n"), flags)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Batch.Size, "flags override environment")
	assert.Equal(t, ModeConcurrent, cfg.Dispatch.Mode)
	assert.Equal(t, "http://127.0.0.1:8088/collections", cfg.Target.URL, "unset flag keeps default")
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/postbench.yaml", nil)
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  mode: "parallel"
`)
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dispatch mode")
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyURL", func(c *Config) { c.Target.URL = "" }},
		{"NonHTTPURL", func(c *Config) { c.Target.URL = "ftp://host/collections" }},
		{"NegativeBatchSize", func(c *Config) { c.Batch.Size = -1 }},
		{"InvalidMode", func(c *Config) { c.Dispatch.Mode = "parallel" }},
		{"ZeroConcurrency", func(c *Config) {
			c.Dispatch.Mode = ModeConcurrent
			c.Dispatch.Concurrency = 0
		}},
		{"NegativeTimeout", func(c *Config) { c.HTTP.Timeout = -time.Second }},
		{"InvalidJSONLibrary", func(c *Config) { c.JSON.Library = "ujson" }},
		{"InvalidCompression", func(c *Config) { c.Compression.Type = "lzo" }},
		{"InvalidFormat", func(c *Config) { c.Serialization.Format = "protobuf" }},
		{"AuthWithoutExpiration", func(c *Config) {
			c.Auth.JWTSecret = "s3cret"
			c.Auth.JWTExpiration = 0
		}},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "trace" }},
		{"InvalidPort", func(c *Config) { c.Server.Port = 70000 }},
		{"InvalidStorage", func(c *Config) { c.Server.Storage = "sled" }},
		{"RedisWithoutAddresses", func(c *Config) {
			c.Server.Storage = "redis"
			c.Server.Redis.Addresses = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("ZeroBatchSizeIsValid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Batch.Size = 0
		assert.NoError(t, cfg.Validate())
	})

	t.Run("LogLevelsAcceptedByLogger", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "warning", "error", "WARNING"} {
			cfg := DefaultConfig()
			cfg.Logging.Level = level
			assert.NoError(t, cfg.Validate(), level)
		}
	})
}

func TestLoadConfigAuthAndFormat(t *testing.T) {
	t.Setenv("POSTBENCH_AUTH_JWT_SECRET", "from-env")

	path := writeConfig(t, `
serialization:
  format: cbor
compression:
  type: lz4
auth:
  jwt_expiration: 90s
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, SerializationCBOR, cfg.Serialization.Format)
	assert.Equal(t, CompressionLZ4, cfg.Compression.Type)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Second, cfg.Auth.JWTExpiration)
	assert.Equal(t, "postbench", cfg.Auth.Issuer)
}
