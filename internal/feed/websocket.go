// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketFeed runs a websocket server that browser camera samplers push
// brightness samples to. Binary messages carry raw sample bytes; text
// messages carry JSON arrays of sample values. One sampler is served at a
// time; a new connection replaces the previous one.
type WebSocketFeed struct {
	srv      *http.Server
	addr     string
	upgrader websocket.Upgrader
	samples  chan []byte
	closed   chan struct{}

	buf       []byte
	bufOffset int

	mu   sync.Mutex
	conn *websocket.Conn
}

// ListenWebSocket starts the sampler server on the given address and path
func ListenWebSocket(listen, path string) (*WebSocketFeed, error) {
	f := &WebSocketFeed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Samplers run on page origins we don't control
			},
		},
		samples: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, f.handleSampler)
	f.srv = &http.Server{Addr: listen, Handler: mux}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %v", listen, err)
	}
	f.addr = ln.Addr().String()

	go func() {
		if err := f.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("feed: websocket server error: %v", err)
		}
	}()

	return f, nil
}

// Addr returns the bound listen address
func (f *WebSocketFeed) Addr() string {
	return f.addr
}

func (f *WebSocketFeed) handleSampler(w http.ResponseWriter, r *http.Request) {
	c, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: websocket upgrade failed: %v", err)
		return
	}

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.conn = c
	f.mu.Unlock()

	log.Printf("feed: sampler connected from %s", r.RemoteAddr)

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			f.mu.Lock()
			if f.conn == c {
				f.conn = nil
			}
			f.mu.Unlock()
			log.Printf("feed: sampler disconnected: %v", err)
			return
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

		select {
		case f.samples <- batch:
		case <-f.closed:
			return
		}
	}
}

// parseSampleBatch decodes a JSON array of brightness values into raw
// sample bytes
func parseSampleBatch(data []byte) ([]byte, error) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("invalid sample JSON: %v", err)
	}
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("sample %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func (f *WebSocketFeed) Read(p []byte) (int, error) {
	// If we have buffered samples, return them first
	if f.bufOffset < len(f.buf) {
		n := copy(p, f.buf[f.bufOffset:])
		f.bufOffset += n
		return n, nil
	}

	select {
	case batch := <-f.samples:
		f.buf = batch
		f.bufOffset = 0
		n := copy(p, f.buf)
		f.bufOffset = n
		return n, nil
	case <-f.closed:
		return 0, ErrFeedClosed
	}
}

// Write sends data to the connected sampler as a binary message
func (f *WebSocketFeed) Write(p []byte) (int, error) {
	f.mu.Lock()
	c := f.conn
	f.mu.Unlock()

	if c == nil {
		return 0, fmt.Errorf("no sampler connected")
	}
	if err := c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *WebSocketFeed) Close() error {
	close(f.closed)

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()

	return f.srv.Close()
}
