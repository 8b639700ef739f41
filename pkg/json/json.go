// Package json is the serializer used for request bodies and for the target
// server's JSON codec. The back end is selected from configuration.
package json

import (
	"fmt"
)

// JSONLibrary defines which JSON library to use
type JSONLibrary string

const (
	JSONLibraryStandard JSONLibrary = "standard" // encoding/json
	JSONLibrarySonic    JSONLibrary = "sonic"    // bytedance/sonic
)

// Encoder converts values to and from their JSON wire form
type Encoder interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
	Library() JSONLibrary
}

// Config holds JSON configuration
type Config struct {
	Library    JSONLibrary `mapstructure:"library" yaml:"library" json:"library"`
	EscapeHTML bool        `mapstructure:"escape_html" yaml:"escape_html" json:"escape_html"`
}

// DefaultConfig returns default JSON configuration
func DefaultConfig() Config {
	return Config{
		Library:    JSONLibraryStandard,
		EscapeHTML: false,
	}
}

var globalEncoder Encoder

func setEncoder(encoder Encoder) {
	globalEncoder = encoder
}

// GetEncoder returns the current JSON encoder
func GetEncoder() Encoder {
	if globalEncoder == nil {
		globalEncoder = NewStandardEncoder(DefaultConfig())
	}
	return globalEncoder
}

// Marshal encodes v as JSON using the global encoder
func Marshal(v interface{}) ([]byte, error) {
	return GetEncoder().Marshal(v)
}

// New builds the encoder named by config.Library. An empty library selects
// the standard encoder.
func New(config Config) (Encoder, error) {
	switch config.Library {
	case JSONLibrarySonic:
		return NewSonicEncoder(config), nil
	case JSONLibraryStandard, "":
		return NewStandardEncoder(config), nil
	default:
		return nil, fmt.Errorf("unknown json library: %q", config.Library)
	}
}

// InitializeFromConfig installs the configured encoder as the global one
func InitializeFromConfig(config Config) error {
	encoder, err := New(config)
	if err != nil {
		return err
	}
	setEncoder(encoder)
	return nil
}
