// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package sink

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxcast/luxcast/internal/store"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

// recordingSink captures delivered messages for assertions.
type recordingSink struct {
	name string
	err  error

	mu  sync.Mutex
	got []*luxwire.Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(msg *luxwire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, msg)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

// blockingSink parks the dispatcher goroutine inside Deliver until released.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(msg *luxwire.Message) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func textMessage(body string) *luxwire.Message {
	return &luxwire.Message{
		Type:      "TEXT",
		Tag:       luxwire.TagText,
		Data:      []byte(body),
		Timestamp: time.Now(),
		Duration:  2 * time.Second,
		Size:      len(body),
	}
}

func TestBackendMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		mode    string
		ok      bool
	}{
		{"auth envelope", `{"mode":"auth","token":"abc123"}`, "auth", true},
		{"config envelope", `{"mode":"config","wifi":{"ssid":"lab"}}`, "config", true},
		{"command envelope", `{"mode":"command","action":"reboot"}`, "command", true},
		{"unknown mode", `{"mode":"telemetry"}`, "", false},
		{"missing mode", `{"temperature":21.5}`, "", false},
		{"array payload", `[1,2,3]`, "", false},
		{"plain text", `hello world`, "", false},
		{"empty payload", ``, "", false},
		{"truncated json", `{"mode":`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, ok := BackendMode([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.mode, mode)
		})
	}
}

func TestRenderMessage_MessageTopic(t *testing.T) {
	t.Parallel()

	msg := textMessage("hello")
	topic, data, err := renderMessage("luxcast", msg)
	require.NoError(t, err)

	assert.Equal(t, "luxcast/messages/text", topic)

	var record mqttRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "TEXT", record.Type)
	assert.Equal(t, 5, record.Size)
	assert.Equal(t, int64(2000), record.DurationMs)
	assert.Equal(t, []byte("hello"), record.Data)
	assert.Empty(t, record.Transmission)
}

func TestRenderMessage_BackendTopic(t *testing.T) {
	t.Parallel()

	envelope := `{"mode":"auth","token":"abc123"}`
	msg := &luxwire.Message{Type: "JSON", Tag: luxwire.TagJSON, Data: []byte(envelope)}

	topic, data, err := renderMessage("luxcast", msg)
	require.NoError(t, err)

	assert.Equal(t, "luxcast/backend/auth", topic)
	assert.Equal(t, envelope, string(data), "backend envelopes pass through verbatim")
}

func TestRenderMessage_ChunkedTransmission(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	msg := textMessage("chunked")
	msg.Transmission = id

	_, data, err := renderMessage("luxcast", msg)
	require.NoError(t, err)

	var record mqttRecord
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, id.String(), record.Transmission)
}

func TestDispatcher_FanOut(t *testing.T) {
	t.Parallel()

	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	d := NewDispatcher(a, b)

	for i := 0; i < 3; i++ {
		d.Dispatch(textMessage(fmt.Sprintf("msg %d", i)))
	}
	d.Close()

	require.Equal(t, 3, a.count())
	require.Equal(t, 3, b.count())
	assert.Equal(t, []byte("msg 0"), a.got[0].Data)
	assert.Equal(t, []byte("msg 2"), b.got[2].Data)
	assert.Zero(t, d.Dropped())
}

func TestDispatcher_SinkErrorContinues(t *testing.T) {
	t.Parallel()

	failing := &recordingSink{name: "failing", err: fmt.Errorf("broker down")}
	healthy := &recordingSink{name: "healthy"}
	d := NewDispatcher(failing, healthy)

	d.Dispatch(textMessage("still delivered"))
	d.Close()

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, healthy.count())
}

func TestDispatcher_OverflowDrops(t *testing.T) {
	t.Parallel()

	bs := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(bs)

	// Park the delivery goroutine, then fill the queue exactly.
	d.Dispatch(textMessage("first"))
	<-bs.entered
	for i := 0; i < queueSize; i++ {
		d.Dispatch(textMessage("queued"))
	}

	d.Dispatch(textMessage("dropped"))
	d.Dispatch(textMessage("dropped"))
	assert.Equal(t, uint64(2), d.Dropped())

	close(bs.release)
	d.Close()
}

func TestStoreSink_Deliver(t *testing.T) {
	t.Parallel()

	db, err := store.NewStore(filepath.Join(t.TempDir(), "sink.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewStoreSink(db)
	assert.Equal(t, "store", s.Name())
	require.NoError(t, s.Deliver(textMessage("persisted")))

	require.Eventually(t, func() bool {
		n, err := db.TotalMessages()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}
