// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package config loads and validates the luxcast YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

// Config represents the application configuration
type Config struct {
	Receive ReceiveConfig `yaml:"receive"`
	Feed    FeedConfig    `yaml:"feed"`
	Send    SendConfig    `yaml:"send"`
	Store   StoreConfig   `yaml:"store"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ReceiveConfig contains receiver session settings
type ReceiveConfig struct {
	Mode          string `yaml:"mode"`            // "packet" or "legacy" (default: packet)
	Threshold     int    `yaml:"threshold"`       // Brightness decision boundary 1-255 (default: 128)
	AutoCalibrate bool   `yaml:"auto_calibrate"`  // Run a calibration phase before receiving
	MaxBufferBits int    `yaml:"max_buffer_bits"` // Bit buffer cap before truncation (default: 65536)
	GroupTTLSec   int    `yaml:"group_ttl_sec"`   // Chunk group expiry in seconds (default: 600)
	BitPeriodMs   int    `yaml:"bit_period_ms"`   // Sampling period per bit in milliseconds (default: 100)
}

// FeedConfig contains sample source settings. Exactly one source should be
// configured; serial takes precedence over websocket over file.
type FeedConfig struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	File      FileConfig      `yaml:"file"`
}

// SerialConfig contains serial sampler settings
type SerialConfig struct {
	Port string `yaml:"port"` // Serial port device (e.g. /dev/ttyACM0)
	Baud int    `yaml:"baud"` // Baud rate (default: 115200)
}

// WebSocketConfig contains the sampler websocket settings. Listen serves an
// endpoint for browser samplers to push into; URL dials out to a remote
// sampler source instead. The password for a dialed source comes from the
// LUXCAST_PASSWORD environment variable or an interactive prompt, never from
// this file.
type WebSocketConfig struct {
	Listen      string `yaml:"listen"`        // Listen address for the sampler endpoint (e.g. ":8089")
	Path        string `yaml:"path"`          // HTTP path for the sampler websocket (default: /samples)
	URL         string `yaml:"url"`           // Remote sampler source to dial (ws:// or wss://)
	Username    string `yaml:"username"`      // HTTP Basic auth user for the dialed source
	NoSSLVerify bool   `yaml:"no_ssl_verify"` // Skip TLS certificate verification (wss:// only)
}

// FileConfig contains sample replay settings
type FileConfig struct {
	Path string `yaml:"path"` // Recorded sample file, one brightness value per line
}

// SendConfig contains encoder defaults for the send command
type SendConfig struct {
	ChunkSize int  `yaml:"chunk_size"` // Bytes of application data per chunk (default: 256)
	FEC       bool `yaml:"fec"`        // Apply forward error correction
	Compress  bool `yaml:"compress"`   // Deflate payloads before framing
}

// StoreConfig contains message persistence settings
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite database path (default: luxcast.db)
}

// MQTTConfig contains MQTT sink settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // Default: luxcast
	QoS         byte   `yaml:"qos"`          // 0, 1, or 2
	Retain      bool   `yaml:"retain"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // Metrics listen address (default: :9090)
}

// Default returns a configuration with all defaults applied and no sources
// configured.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig reads and parses a YAML configuration file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills in zero values that have defined defaults
func (c *Config) applyDefaults() {
	if c.Receive.Mode == "" {
		c.Receive.Mode = "packet"
	}
	if c.Receive.Threshold == 0 {
		c.Receive.Threshold = luxwire.DefaultThreshold
	}
	if c.Receive.MaxBufferBits == 0 {
		c.Receive.MaxBufferBits = luxwire.DefaultMaxBuffer
	}
	if c.Receive.GroupTTLSec == 0 {
		c.Receive.GroupTTLSec = int(luxwire.DefaultGroupTTL / time.Second)
	}
	if c.Receive.BitPeriodMs == 0 {
		c.Receive.BitPeriodMs = int(luxwire.BitPeriod / time.Millisecond)
	}
	if c.Feed.Serial.Baud == 0 {
		c.Feed.Serial.Baud = 115200
	}
	if c.Feed.WebSocket.Path == "" {
		c.Feed.WebSocket.Path = "/samples"
	}
	if c.Send.ChunkSize == 0 {
		c.Send.ChunkSize = luxwire.DefaultChunkSize
	}
	if c.Store.Path == "" {
		c.Store.Path = "luxcast.db"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "luxcast"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	switch c.Receive.Mode {
	case "packet", "legacy":
	default:
		return fmt.Errorf("receive.mode must be \"packet\" or \"legacy\", got %q", c.Receive.Mode)
	}
	if c.Receive.Threshold < 1 || c.Receive.Threshold > 255 {
		return fmt.Errorf("receive.threshold must be between 1 and 255")
	}
	if c.Receive.MaxBufferBits < luxwire.MinPacketBits {
		return fmt.Errorf("receive.max_buffer_bits must be at least %d", luxwire.MinPacketBits)
	}
	if c.Receive.GroupTTLSec < 0 {
		return fmt.Errorf("receive.group_ttl_sec must not be negative")
	}
	if c.Receive.BitPeriodMs < 1 {
		return fmt.Errorf("receive.bit_period_ms must be at least 1")
	}
	if c.Feed.Serial.Port != "" && c.Feed.Serial.Baud < 1 {
		return fmt.Errorf("feed.serial.baud must be positive")
	}
	if c.Send.ChunkSize < 1 || c.Send.ChunkSize > luxwire.MaxPayloadSize {
		return fmt.Errorf("send.chunk_size must be between 1 and %d", luxwire.MaxPayloadSize)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1, or 2")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when store is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics is enabled")
	}
	return nil
}

// ReceiverOptions converts the receive section into luxwire options.
func (c *Config) ReceiverOptions() []luxwire.ReceiverOption {
	opts := []luxwire.ReceiverOption{
		luxwire.WithThreshold(uint8(c.Receive.Threshold)),
		luxwire.WithMaxBuffer(c.Receive.MaxBufferBits),
		luxwire.WithGroupTTL(time.Duration(c.Receive.GroupTTLSec) * time.Second),
	}
	if c.Receive.Mode == "legacy" {
		opts = append(opts, luxwire.WithMode(luxwire.ModeLegacy))
	}
	return opts
}

// BitPeriod returns the configured sampling period.
func (c *Config) BitPeriod() time.Duration {
	return time.Duration(c.Receive.BitPeriodMs) * time.Millisecond
}
