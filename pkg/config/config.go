package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pbjson "github.com/meftunca/postbench/pkg/json"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig
const EnvPrefix = "POSTBENCH"

// DispatchMode defines how requests within a batch are issued
type DispatchMode string

const (
	// ModeSequential awaits every request before issuing the next. The
	// measured duration is the sum of all round trips.
	ModeSequential DispatchMode = "sequential"
	// ModeConcurrent issues requests through a bounded worker pool. The
	// measured duration is the wall clock time of the overlapped work.
	ModeConcurrent DispatchMode = "concurrent"
)

// CompressionType defines the Content-Encoding applied to request bodies
type CompressionType string

const (
	CompressionNone   CompressionType = "none"
	CompressionGzip   CompressionType = "gzip"
	CompressionZstd   CompressionType = "zstd"
	CompressionBrotli CompressionType = "br"
	CompressionLZ4    CompressionType = "lz4"
)

// SerializationType defines the wire format of request bodies
type SerializationType string

const (
	SerializationJSON    SerializationType = "json"
	SerializationMsgPack SerializationType = "msgpack"
	SerializationCBOR    SerializationType = "cbor"
)

// TargetConfig holds the endpoint under test
type TargetConfig struct {
	URL string `mapstructure:"url" yaml:"url" json:"url"`
}

// BatchConfig holds batch generation settings
type BatchConfig struct {
	Size int `mapstructure:"size" yaml:"size" json:"size"`
}

// DispatchConfig holds the scheduling model of a run
type DispatchConfig struct {
	Mode        DispatchMode `mapstructure:"mode" yaml:"mode" json:"mode"`
	Concurrency int          `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
}

// HTTPConfig holds settings of the shared HTTP client
type HTTPConfig struct {
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	KeepAlive           bool          `mapstructure:"keep_alive" yaml:"keep_alive" json:"keep_alive"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
}

// CompressionConfig holds request body compression settings
type CompressionConfig struct {
	Type  CompressionType `mapstructure:"type" yaml:"type" json:"type"`
	Level int             `mapstructure:"level" yaml:"level" json:"level"` // 0 selects the codec default
}

// SerializationConfig selects the body format. JSON bodies are produced by
// the encoder configured under json.
type SerializationConfig struct {
	Format SerializationType `mapstructure:"format" yaml:"format" json:"format"`
}

// AuthConfig holds bearer token settings shared by client and server. An
// empty secret disables authentication.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" yaml:"jwt_secret" json:"-"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration" yaml:"jwt_expiration" json:"jwt_expiration"`
	Issuer        string        `mapstructure:"issuer" yaml:"issuer" json:"issuer"`
}

// Enabled reports whether requests carry and require a bearer token
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// MetricsConfig holds the admin listener settings
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

// RedisConfig holds Redis-specific settings
type RedisConfig struct {
	Addresses []string `mapstructure:"addresses" yaml:"addresses" json:"addresses"`
	Password  string   `mapstructure:"password" yaml:"password" json:"password"`
	DB        int      `mapstructure:"db" yaml:"db" json:"db"`
	KeyPrefix string   `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// ServerConfig holds settings of the collections target server
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host" json:"host"`
	Port         int           `mapstructure:"port" yaml:"port" json:"port"`
	Storage      string        `mapstructure:"storage" yaml:"storage" json:"storage"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis" json:"redis"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	EnableLogger bool          `mapstructure:"enable_logger" yaml:"enable_logger" json:"enable_logger"`
}

// Config represents the main configuration structure
type Config struct {
	Target        TargetConfig        `mapstructure:"target" yaml:"target" json:"target"`
	Batch         BatchConfig         `mapstructure:"batch" yaml:"batch" json:"batch"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch" yaml:"dispatch" json:"dispatch"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http" json:"http"`
	JSON          pbjson.Config       `mapstructure:"json" yaml:"json" json:"json"`
	Serialization SerializationConfig `mapstructure:"serialization" yaml:"serialization" json:"serialization"`
	Compression   CompressionConfig   `mapstructure:"compression" yaml:"compression" json:"compression"`
	Auth          AuthConfig          `mapstructure:"auth" yaml:"auth" json:"auth"`
	Metrics       MetricsConfig       `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging" json:"logging"`
	Server        ServerConfig        `mapstructure:"server" yaml:"server" json:"server"`
}

// DefaultConfig returns the configuration of the reference run: 5000
// payloads posted one at a time to a local collections endpoint.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			URL: "http://127.0.0.1:8088/collections",
		},
		Batch: BatchConfig{
			Size: 5000,
		},
		Dispatch: DispatchConfig{
			Mode:        ModeSequential,
			Concurrency: 16,
		},
		HTTP: HTTPConfig{
			Timeout:             5 * time.Second,
			KeepAlive:           true,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		JSON: pbjson.DefaultConfig(),
		Serialization: SerializationConfig{
			Format: SerializationJSON,
		},
		Compression: CompressionConfig{
			Type:  CompressionNone,
			Level: 0,
		},
		Auth: AuthConfig{
			JWTExpiration: time.Hour,
			Issuer:        "postbench",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":2112",
			Namespace: "postbench",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    8088,
			Storage: "memory",
			Redis: RedisConfig{
				Addresses: []string{"localhost:6379"},
				DB:        0,
				KeyPrefix: "postbench:",
			},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableLogger: false,
		},
	}
}

// setDefaults registers every key so that environment variables are honored
// even when no config file mentions them.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("target.url", c.Target.URL)
	v.SetDefault("batch.size", c.Batch.Size)
	v.SetDefault("dispatch.mode", string(c.Dispatch.Mode))
	v.SetDefault("dispatch.concurrency", c.Dispatch.Concurrency)
	v.SetDefault("http.timeout", c.HTTP.Timeout)
	v.SetDefault("http.keep_alive", c.HTTP.KeepAlive)
	v.SetDefault("http.max_idle_conns", c.HTTP.MaxIdleConns)
	v.SetDefault("http.max_idle_conns_per_host", c.HTTP.MaxIdleConnsPerHost)
	v.SetDefault("json.library", string(c.JSON.Library))
	v.SetDefault("json.escape_html", c.JSON.EscapeHTML)
	v.SetDefault("serialization.format", string(c.Serialization.Format))
	v.SetDefault("compression.type", string(c.Compression.Type))
	v.SetDefault("compression.level", c.Compression.Level)
	v.SetDefault("auth.jwt_secret", c.Auth.JWTSecret)
	v.SetDefault("auth.jwt_expiration", c.Auth.JWTExpiration)
	v.SetDefault("auth.issuer", c.Auth.Issuer)
	v.SetDefault("metrics.enabled", c.Metrics.Enabled)
	v.SetDefault("metrics.addr", c.Metrics.Addr)
	v.SetDefault("metrics.namespace", c.Metrics.Namespace)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.storage", c.Server.Storage)
	v.SetDefault("server.redis.addresses", c.Server.Redis.Addresses)
	v.SetDefault("server.redis.password", c.Server.Redis.Password)
	v.SetDefault("server.redis.db", c.Server.Redis.DB)
	v.SetDefault("server.redis.key_prefix", c.Server.Redis.KeyPrefix)
	v.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.enable_logger", c.Server.EnableLogger)
}

// FlagBindings maps command line flag names to configuration keys
var FlagBindings = map[string]string{
	"url":         "target.url",
	"batch-size":  "batch.size",
	"mode":        "dispatch.mode",
	"concurrency": "dispatch.concurrency",
	"compression": "compression.type",
	"format":      "serialization.format",
	"log-level":   "logging.level",
	"metrics":     "metrics.enabled",
	"host":        "server.host",
	"port":        "server.port",
	"storage":     "server.storage",
}

// LoadConfig loads configuration from file, environment and flags, in
// increasing order of precedence. flags may be nil; only flags named in
// FlagBindings and present in the set are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	config := DefaultConfig()
	setDefaults(v, config)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("postbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/postbench")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Target.URL)
	if err != nil {
		return fmt.Errorf("invalid target url %q: %w", c.Target.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid target url %q: expected http(s)://host[:port]/path", c.Target.URL)
	}

	if c.Batch.Size < 0 {
		return fmt.Errorf("batch size must not be negative: %d", c.Batch.Size)
	}

	switch c.Dispatch.Mode {
	case ModeSequential:
	case ModeConcurrent:
		if c.Dispatch.Concurrency <= 0 {
			return fmt.Errorf("concurrency must be greater than 0 in concurrent mode")
		}
	default:
		return fmt.Errorf("invalid dispatch mode: %s", c.Dispatch.Mode)
	}

	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http timeout must not be negative: %s", c.HTTP.Timeout)
	}

	switch c.JSON.Library {
	case pbjson.JSONLibraryStandard, pbjson.JSONLibrarySonic:
	default:
		return fmt.Errorf("invalid json library: %s", c.JSON.Library)
	}

	switch c.Compression.Type {
	case CompressionNone, CompressionGzip, CompressionZstd, CompressionBrotli, CompressionLZ4:
	default:
		return fmt.Errorf("invalid compression type: %s", c.Compression.Type)
	}

	switch c.Serialization.Format {
	case SerializationJSON, SerializationMsgPack, SerializationCBOR:
	default:
		return fmt.Errorf("invalid serialization format: %s", c.Serialization.Format)
	}

	if c.Auth.Enabled() && c.Auth.JWTExpiration <= 0 {
		return fmt.Errorf("jwt expiration must be positive when auth is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Server.Storage {
	case "memory":
	case "redis":
		if len(c.Server.Redis.Addresses) == 0 {
			return fmt.Errorf("redis storage requires at least one address")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", c.Server.Storage)
	}

	return nil
}

// IsCompressionEnabled returns true if request bodies should be compressed
func (c *Config) IsCompressionEnabled() bool {
	return c.Compression.Type != "" && c.Compression.Type != CompressionNone
}

// ServerAddr returns the listen address of the collections server
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
