// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Chunk is one sequenced slice of an oversized payload. All chunks of a
// logical message share one Transmission ID, assigned at split time and
// carried in every chunk's envelope.
type Chunk struct {
	Transmission uuid.UUID
	Sequence     uint16
	Total        uint16
	Data         []byte
}

// SplitChunks splits payload into ceil(len/chunkSize) contiguous chunks in
// original order and assigns them a fresh shared Transmission ID.
func SplitChunks(payload []byte, chunkSize int) ([]Chunk, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}
	total := (len(payload) + chunkSize - 1) / chunkSize
	if total > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes need %d chunks", ErrPayloadTooLarge, len(payload), total)
	}
	id := uuid.New()
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		lo := i * chunkSize
		hi := lo + chunkSize
		if hi > len(payload) {
			hi = len(payload)
		}
		chunks = append(chunks, Chunk{
			Transmission: id,
			Sequence:     uint16(i),
			Total:        uint16(total),
			Data:         payload[lo:hi],
		})
	}
	return chunks, nil
}

// ReassembleChunks reconstructs the original payload from a complete chunk
// set, accepting any arrival order. The second return is false when the set
// is incomplete: a missing or duplicated sequence, or disagreeing totals.
// Incompleteness is a normal wait state, not an error.
func ReassembleChunks(chunks []Chunk) ([]byte, bool) {
	if len(chunks) == 0 {
		return nil, false
	}
	total := chunks[0].Total
	if int(total) != len(chunks) {
		return nil, false
	}
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	size := 0
	for i, c := range sorted {
		if c.Total != total || int(c.Sequence) != i {
			return nil, false
		}
		size += len(c.Data)
	}
	out := make([]byte, 0, size)
	for _, c := range sorted {
		out = append(out, c.Data...)
	}
	return out, true
}

// Assembler accumulates chunks into pending groups keyed by Transmission ID
// and completes each group the moment its last chunk arrives. Groups that
// stay incomplete past the TTL are swept, bounding memory on lossy channels
// where tails of transmissions never arrive.
type Assembler struct {
	ttl     time.Duration
	groups  map[uuid.UUID]*pendingGroup
	expired uint64
	clock   func() time.Time
}

type pendingGroup struct {
	total   uint16
	parts   map[uint16][]byte
	firstAt time.Time
	lastAt  time.Time
}

// NewAssembler creates an assembler. A non-positive ttl selects the default.
func NewAssembler(ttl time.Duration) *Assembler {
	if ttl <= 0 {
		ttl = DefaultGroupTTL
	}
	return &Assembler{
		ttl:    ttl,
		groups: make(map[uuid.UUID]*pendingGroup),
		clock:  time.Now,
	}
}

// Add feeds one chunk. When the chunk completes its group, Add returns the
// reassembled payload, the arrival time of the group's first chunk, and true;
// otherwise the group keeps waiting. A chunk retransmitted with the same
// sequence number overwrites its predecessor, so repeated sends are harmless.
func (a *Assembler) Add(c Chunk) ([]byte, time.Time, bool) {
	now := a.clock()
	a.sweep(now)

	g := a.groups[c.Transmission]
	if g == nil {
		g = &pendingGroup{
			total:   c.Total,
			parts:   make(map[uint16][]byte),
			firstAt: now,
		}
		a.groups[c.Transmission] = g
	}
	if c.Total != g.total {
		// A disagreeing total means earlier chunks were corrupt. Restart the
		// group under the latest total rather than wedging it forever.
		g.total = c.Total
		g.parts = make(map[uint16][]byte)
	}
	if int(c.Sequence) < int(g.total) {
		g.parts[c.Sequence] = c.Data
	}
	g.lastAt = now

	if g.total == 0 || len(g.parts) != int(g.total) {
		return nil, time.Time{}, false
	}
	chunks := make([]Chunk, 0, len(g.parts))
	for seq, data := range g.parts {
		chunks = append(chunks, Chunk{
			Transmission: c.Transmission,
			Sequence:     seq,
			Total:        g.total,
			Data:         data,
		})
	}
	data, ok := ReassembleChunks(chunks)
	if !ok {
		return nil, time.Time{}, false
	}
	delete(a.groups, c.Transmission)
	return data, g.firstAt, true
}

// Pending returns the number of incomplete groups.
func (a *Assembler) Pending() int {
	return len(a.groups)
}

// Expired returns the number of groups dropped by TTL sweeps.
func (a *Assembler) Expired() uint64 {
	return a.expired
}

// Reset drops all pending groups.
func (a *Assembler) Reset() {
	a.groups = make(map[uuid.UUID]*pendingGroup)
}

func (a *Assembler) sweep(now time.Time) {
	for id, g := range a.groups {
		if now.Sub(g.lastAt) > a.ttl {
			delete(a.groups, id)
			a.expired++
		}
	}
}
