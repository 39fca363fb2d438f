// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package store persists decoded messages to SQLite.
package store

import (
	"database/sql"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at DATETIME NOT NULL,
	type TEXT NOT NULL,
	size INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	transmission_id TEXT NOT NULL DEFAULT '',
	data BLOB
);
CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type);
CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at);
`

// writeQueueSize bounds how many decoded messages can be waiting on the
// writer goroutine before Save starts dropping.
const writeQueueSize = 256

// Store persists decoded messages. Inserts run on a dedicated writer
// goroutine so the sampling loop never blocks on disk.
type Store struct {
	*sql.DB
	writes  chan *luxwire.Message
	done    chan struct{}
	dropped atomic.Uint64
}

// Record is one persisted message row.
type Record struct {
	ID           int64
	ReceivedAt   time.Time
	Type         string
	Size         int
	Duration     time.Duration
	Transmission string
	Data         []byte
}

// NewStore opens (creating if needed) the message database at path and
// starts the writer goroutine.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		DB:     db,
		writes: make(chan *luxwire.Message, writeQueueSize),
		done:   make(chan struct{}),
	}
	go s.writerLoop()

	return s, nil
}

func (s *Store) writerLoop() {
	defer close(s.done)
	for m := range s.writes {
		if err := s.insertMessage(m); err != nil {
			log.Printf("store: insert failed: %v", err)
		}
	}
}

// Save queues a message for persistence. It never blocks; when the write
// queue is full the message is dropped and counted. Save must not be called
// after Close.
func (s *Store) Save(m *luxwire.Message) {
	select {
	case s.writes <- m:
	default:
		s.dropped.Add(1)
		log.Printf("store: write queue full, dropping %s message", m.Type)
	}
}

// Dropped returns how many messages were discarded because the write queue
// was full.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Store) insertMessage(m *luxwire.Message) error {
	tx := ""
	if m.Transmission != uuid.Nil {
		tx = m.Transmission.String()
	}
	_, err := s.Exec(
		`INSERT INTO messages (received_at, type, size, duration_ms, transmission_id, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.Timestamp.UTC(), m.Type, m.Size, m.Duration.Milliseconds(), tx, m.Data,
	)
	return err
}

// RecentMessages returns up to limit messages, newest first.
func (s *Store) RecentMessages(limit int) ([]Record, error) {
	rows, err := s.Query(
		`SELECT id, received_at, type, size, duration_ms, transmission_id, data
		 FROM messages ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.ReceivedAt, &r.Type, &r.Size, &durationMs, &r.Transmission, &r.Data); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByType returns the number of persisted messages per type tag name.
func (s *Store) CountByType() (map[string]int64, error) {
	rows, err := s.Query(`SELECT type, COUNT(*) FROM messages GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// TotalMessages returns the number of persisted messages.
func (s *Store) TotalMessages() (int64, error) {
	var n int64
	err := s.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Close drains the write queue, stops the writer, and closes the database.
func (s *Store) Close() error {
	close(s.writes)
	<-s.done
	return s.DB.Close()
}
