// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "messages.db"))
	require.NoError(t, err)
	return s
}

func testMessage(typ string, tag uint8, data []byte) *luxwire.Message {
	return &luxwire.Message{
		Type:      typ,
		Tag:       tag,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Duration:  2500 * time.Millisecond,
		Size:      len(data),
	}
}

func TestStore_SaveAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	defer s.Close()

	msg := testMessage("TEXT", luxwire.TagText, []byte("hello luxcast"))
	msg.Transmission = uuid.New()
	s.Save(msg)

	require.Eventually(t, func() bool {
		n, err := s.TotalMessages()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	records, err := s.RecentMessages(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "TEXT", r.Type)
	assert.Equal(t, 13, r.Size)
	assert.Equal(t, 2500*time.Millisecond, r.Duration)
	assert.Equal(t, msg.Transmission.String(), r.Transmission)
	assert.Equal(t, []byte("hello luxcast"), r.Data)
	assert.WithinDuration(t, msg.Timestamp, r.ReceivedAt, time.Second)
}

func TestStore_UnchunkedTransmissionStoredEmpty(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	defer s.Close()

	require.NoError(t, s.insertMessage(testMessage("TEXT", luxwire.TagText, []byte("hi"))))

	records, err := s.RecentMessages(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Transmission)
}

func TestStore_RecentMessagesNewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	defer s.Close()

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, s.insertMessage(testMessage("TEXT", luxwire.TagText, []byte(text))))
	}

	records, err := s.RecentMessages(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("third"), records[0].Data)
	assert.Equal(t, []byte("second"), records[1].Data)
}

func TestStore_CountByType(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	defer s.Close()

	require.NoError(t, s.insertMessage(testMessage("TEXT", luxwire.TagText, []byte("a"))))
	require.NoError(t, s.insertMessage(testMessage("TEXT", luxwire.TagText, []byte("b"))))
	require.NoError(t, s.insertMessage(testMessage("JSON", luxwire.TagJSON, []byte(`{}`))))

	counts, err := s.CountByType()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"TEXT": 2, "JSON": 1}, counts)
}

func TestStore_CloseFlushesQueue(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "messages.db")

	s, err := NewStore(path)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		s.Save(testMessage("SENSOR_DATA", luxwire.TagSensorData, []byte{byte(i)}))
	}
	require.NoError(t, s.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.TotalMessages()
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
}
