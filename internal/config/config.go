// Package config provides configuration loading and management functionality.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CryptoModeName names one of the three negotiated XSalsa20-Poly1305 nonce
// layouts. It is declared here (rather than in internal/driver) so that it
// round-trips through YAML without an import cycle.
type CryptoModeName string

const (
	CryptoModeNormal CryptoModeName = "normal"
	CryptoModeSuffix CryptoModeName = "suffix"
	CryptoModeLite   CryptoModeName = "lite"
)

// DriverConfig mirrors the configuration surface enumerated for the mixer
// core: preload depth, crypto mode, decode buffering, and the silence-tail
// and softclip toggles.
type DriverConfig struct {
	PreloadCount          int            `yaml:"preload_count"`
	CryptoMode            CryptoModeName `yaml:"crypto_mode"`
	DecodeChannelCapacity int            `yaml:"decode_channel_capacity"`
	// MixAndStopSilentPackets and UseSoftclip default to true, so they are
	// pointers: a YAML document that omits them must still get the default
	// rather than Go's bool zero value.
	MixAndStopSilentPackets *bool `yaml:"mix_and_stop_silent_packets"`
	UseSoftclip             *bool `yaml:"use_softclip"`
	BitrateBps              int   `yaml:"bitrate_bps"`
	PassthroughCacheSize    int   `yaml:"passthrough_cache_size"`
}

// Config is the root configuration document for the voice driver.
type Config struct {
	Driver   DriverConfig `yaml:"driver"`
	LogLevel string       `yaml:"log_level"`
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by the
// defaults enumerated for the driver's configuration surface.
func (c DriverConfig) WithDefaults() DriverConfig {
	out := c
	if out.PreloadCount <= 0 {
		out.PreloadCount = 1
	}
	if out.CryptoMode == "" {
		out.CryptoMode = CryptoModeNormal
	}
	if out.DecodeChannelCapacity <= 0 {
		out.DecodeChannelCapacity = 4
	}
	if out.BitrateBps <= 0 {
		out.BitrateBps = 64000
	}
	if out.PassthroughCacheSize <= 0 {
		out.PassthroughCacheSize = 32
	}
	if out.MixAndStopSilentPackets == nil {
		t := true
		out.MixAndStopSilentPackets = &t
	}
	if out.UseSoftclip == nil {
		t := true
		out.UseSoftclip = &t
	}

	return out
}

// LoadConfig reads and parses a YAML configuration document from filePath.
func LoadConfig(filePath string) (*Config, error) {
	// #nosec G304 - filePath is provided by application during startup, not user input
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}
