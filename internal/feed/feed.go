// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package feed provides brightness sample sources for the receiver: serial
// samplers, a websocket server for browser camera samplers, recorded sample
// files, and synthetic modulated streams.
package feed

import (
	"fmt"

	"github.com/luxcast/luxcast/internal/config"
)

// Feed provides a common interface for reading brightness samples. Each byte
// read is one sample for one bit period. Write sends data back to the
// sampler where the transport supports it.
type Feed interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// ErrFeedClosed is returned when reading from a closed feed
var ErrFeedClosed = fmt.Errorf("sample feed closed")

// Open opens the configured sample source. Serial takes precedence over a
// dialed websocket source over a local websocket listener over file replay.
// wsPassword is the HTTP Basic auth password for a dialed source; callers
// resolve it from the environment or a prompt. Returns the feed and a
// human-readable description of it.
func Open(cfg config.FeedConfig, wsPassword string) (Feed, string, error) {
	if cfg.Serial.Port != "" {
		f, err := OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return f, fmt.Sprintf("serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud), nil
	}

	if cfg.WebSocket.URL != "" {
		f, err := DialWebSocket(cfg.WebSocket.URL, cfg.WebSocket.Username, wsPassword, cfg.WebSocket.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return f, fmt.Sprintf("websocket: %s", cfg.WebSocket.URL), nil
	}

	if cfg.WebSocket.Listen != "" {
		f, err := ListenWebSocket(cfg.WebSocket.Listen, cfg.WebSocket.Path)
		if err != nil {
			return nil, "", err
		}
		return f, fmt.Sprintf("websocket: listening on %s%s", cfg.WebSocket.Listen, cfg.WebSocket.Path), nil
	}

	if cfg.File.Path != "" {
		f, err := OpenFile(cfg.File.Path)
		if err != nil {
			return nil, "", err
		}
		return f, fmt.Sprintf("file: %s (%d samples)", cfg.File.Path, f.Len()), nil
	}

	return nil, "", fmt.Errorf("no sample feed configured: set feed.serial.port, feed.websocket.url, feed.websocket.listen, or feed.file.path")
}
