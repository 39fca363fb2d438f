// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import "time"

// Packet represents one decoded wire frame. Immutable once built.
type Packet struct {
	header    uint8
	payload   []byte
	crc       uint16
	timestamp time.Time
}

// NewPacket creates a packet from a header byte and payload, computing the
// CRC over the payload bytes.
func NewPacket(header uint8, payload []byte) *Packet {
	return &Packet{
		header:    header,
		payload:   payload,
		crc:       CalculateCRC(payload),
		timestamp: time.Now(),
	}
}

// Header returns the raw header byte (flags plus type tag).
func (p *Packet) Header() uint8 {
	return p.header
}

// Tag returns the 5-bit type tag.
func (p *Packet) Tag() uint8 {
	return p.header & TagMask
}

// Flags returns the 3 flag bits.
func (p *Packet) Flags() uint8 {
	return p.header & FlagMask
}

// HasFlag reports whether the given flag bit is set.
func (p *Packet) HasFlag(flag uint8) bool {
	return p.header&flag != 0
}

// Length returns the payload byte count.
func (p *Packet) Length() uint16 {
	return uint16(len(p.payload))
}

// Payload returns the payload bytes as carried on the wire, before any
// FEC, chunk, or decompression processing.
func (p *Packet) Payload() []byte {
	return p.payload
}

// CRC returns the packet's checksum value.
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns the packet's decode timestamp.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}
