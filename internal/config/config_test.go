// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfig_FullFile(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
receive:
  mode: legacy
  threshold: 140
  auto_calibrate: true
  bit_period_ms: 50
feed:
  serial:
    port: /dev/ttyACM0
    baud: 9600
  websocket:
    url: wss://sampler.example.org/samples
    username: lab
    no_ssl_verify: true
send:
  chunk_size: 128
  fec: true
store:
  enabled: true
  path: /tmp/messages.db
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  topic_prefix: lab
  qos: 1
metrics:
  enabled: true
  listen: ":9191"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "legacy", cfg.Receive.Mode)
	assert.Equal(t, 140, cfg.Receive.Threshold)
	assert.True(t, cfg.Receive.AutoCalibrate)
	assert.Equal(t, 50, cfg.Receive.BitPeriodMs)
	assert.Equal(t, "/dev/ttyACM0", cfg.Feed.Serial.Port)
	assert.Equal(t, 9600, cfg.Feed.Serial.Baud)
	assert.Equal(t, "wss://sampler.example.org/samples", cfg.Feed.WebSocket.URL)
	assert.Equal(t, "lab", cfg.Feed.WebSocket.Username)
	assert.True(t, cfg.Feed.WebSocket.NoSSLVerify)
	assert.Equal(t, 128, cfg.Send.ChunkSize)
	assert.True(t, cfg.Send.FEC)
	assert.Equal(t, "/tmp/messages.db", cfg.Store.Path)
	assert.Equal(t, "lab", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, ":9191", cfg.Metrics.Listen)
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfigFile(t, "feed:\n  serial:\n    port: /dev/ttyUSB0\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "packet", cfg.Receive.Mode)
	assert.Equal(t, luxwire.DefaultThreshold, cfg.Receive.Threshold)
	assert.Equal(t, luxwire.DefaultMaxBuffer, cfg.Receive.MaxBufferBits)
	assert.Equal(t, 600, cfg.Receive.GroupTTLSec)
	assert.Equal(t, 100, cfg.Receive.BitPeriodMs)
	assert.Equal(t, 115200, cfg.Feed.Serial.Baud)
	assert.Equal(t, "/samples", cfg.Feed.WebSocket.Path)
	assert.Equal(t, luxwire.DefaultChunkSize, cfg.Send.ChunkSize)
	assert.Equal(t, "luxcast.db", cfg.Store.Path)
	assert.Equal(t, "luxcast", cfg.MQTT.TopicPrefix)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfigFile(t, "receive: [not, a, mapping\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Receive.Mode = "morse" }},
		{"threshold too low", func(c *Config) { c.Receive.Threshold = 0 }},
		{"threshold too high", func(c *Config) { c.Receive.Threshold = 300 }},
		{"buffer below frame minimum", func(c *Config) { c.Receive.MaxBufferBits = 10 }},
		{"negative group ttl", func(c *Config) { c.Receive.GroupTTLSec = -1 }},
		{"negative bit period", func(c *Config) { c.Receive.BitPeriodMs = -5 }},
		{"negative chunk size", func(c *Config) { c.Send.ChunkSize = -1 }},
		{"chunk size over payload cap", func(c *Config) { c.Send.ChunkSize = luxwire.MaxPayloadSize + 1 }},
		{"mqtt enabled without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"mqtt qos out of range", func(c *Config) { c.MQTT.QoS = 3 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, Default().Validate())
	})
}

func TestConfig_ReceiverOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Receive.Mode = "legacy"
	cfg.Receive.Threshold = 99

	r := luxwire.NewReceiver(cfg.ReceiverOptions()...)
	assert.Equal(t, uint8(99), r.Threshold())
}

func TestConfig_BitPeriod(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Receive.BitPeriodMs = 40
	assert.Equal(t, 40*time.Millisecond, cfg.BitPeriod())
}
