// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"fmt"
	"time"
)

// DecodeBits scans a bit sequence for the first complete frame, tolerating
// leading garbage before the start marker. This scan is the receiver's
// synchronization mechanism: the channel has no clock recovery, so frame
// boundaries can sit at any bit offset.
//
// The returned consumed count tells the caller how many leading bits are safe
// to discard. On success it points one bit past the end marker. On
// ErrStartNotFound it preserves a possible marker prefix at the tail; on
// ErrIncompleteFrame it points at the start marker so the partial frame keeps
// buffering. After a framing or checksum failure it points one bit past the
// failed start marker, so rescanning cannot miss a real frame overlapping the
// false one.
//
// DecodeBits never returns a partially populated packet and never panics on
// truncated input.
func DecodeBits(bits Bits) (*Packet, int, error) {
	start := -1
	for i := 0; i+markerBits <= len(bits); i++ {
		if bits.matchByte(i, StartMarker) {
			start = i
			break
		}
	}
	if start < 0 {
		keep := len(bits) - (markerBits - 1)
		if keep < 0 {
			keep = 0
		}
		return nil, keep, ErrStartNotFound
	}

	// Header byte and 16-bit length follow the marker.
	if len(bits)-start < 32 {
		return nil, start, ErrIncompleteFrame
	}
	headerVal, _ := bits[start+8 : start+16].Value()
	lengthVal, _ := bits[start+16 : start+32].Value()
	length := int(lengthVal)
	if length > MaxPayloadSize {
		return nil, start + 1, fmt.Errorf("%w: %d bytes (max %d)", ErrInvalidLength, length, MaxPayloadSize)
	}

	total := MinPacketBits + length*8
	if len(bits)-start < total {
		return nil, start, ErrIncompleteFrame
	}

	payloadEnd := start + 32 + length*8
	payload, err := bits[start+32 : payloadEnd].Bytes()
	if err != nil {
		return nil, start + 1, err
	}
	receivedCRC, _ := bits[payloadEnd : payloadEnd+16].Value()

	if !bits.matchByte(payloadEnd+16, EndMarker) {
		return nil, start + 1, fmt.Errorf("%w after %d payload bytes", ErrInvalidEndMarker, length)
	}

	calculated := CalculateCRC(payload)
	if uint16(receivedCRC) != calculated {
		return nil, start + 1, fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrChecksumMismatch, calculated, uint16(receivedCRC))
	}

	pkt := &Packet{
		header:    uint8(headerVal),
		payload:   payload,
		crc:       uint16(receivedCRC),
		timestamp: time.Now(),
	}
	return pkt, start + total, nil
}
