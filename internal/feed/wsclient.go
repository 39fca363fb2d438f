// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package feed

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketClientFeed reads sample batches from a remote sampler source,
// such as another luxcast instance or a camera daemon exposing a websocket.
// Binary messages carry raw sample bytes; text messages carry JSON batches.
type WebSocketClientFeed struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool // Track if connection has failed/closed
}

// DialWebSocket connects to a remote sampler source with optional HTTP
// Basic auth.
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketClientFeed, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %v", err)
	}

	return &WebSocketClientFeed{conn: conn}, nil
}

func (f *WebSocketClientFeed) Read(p []byte) (int, error) {
	// Return immediately if connection is known to be closed
	if f.closed {
		return 0, ErrFeedClosed
	}

	// If we have buffered data, return it first
	if f.bufOffset < len(f.buf) {
		n := copy(p, f.buf[f.bufOffset:])
		f.bufOffset += n
		return n, nil
	}

	// Read the next sample batch (non-recursive loop to avoid stack overflow)
	for {
		messageType, data, err := f.conn.ReadMessage()
		if err != nil {
			// Mark connection as closed to prevent further read attempts
			f.closed = true
			return 0, err
		}

		var batch []byte
		switch messageType {
		case websocket.BinaryMessage:
			batch = data
		case websocket.TextMessage:
			batch, err = parseSampleBatch(data)
			if err != nil {
				log.Printf("feed: dropping malformed sample batch: %v", err)
				continue
			}
		default:
			continue
		}

		if len(batch) == 0 {
			continue
		}

		// Buffer the batch and return what fits
		f.buf = batch
		f.bufOffset = 0
		n := copy(p, f.buf)
		f.bufOffset = n
		return n, nil
	}
}

func (f *WebSocketClientFeed) Write(p []byte) (int, error) {
	if err := f.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *WebSocketClientFeed) Close() error {
	return f.conn.Close()
}
