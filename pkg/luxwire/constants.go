// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package luxwire implements the Luxcast optical wire protocol.
//
// Luxcast transmits data as binary light pulses: a display flashes one bit per
// bit period and a camera samples brightness at the same cadence. This package
// provides the packet codec, chunk segmentation/reassembly, CRC validation,
// the calibration engine, and the receiver synchronization state machine that
// recovers frames from a noisy, unclocked bit stream.
package luxwire

import "time"

// Protocol framing markers. Both are 8-bit sentinels on the wire; the
// receiver hunts for the start marker bit pattern to synchronize.
const (
	StartMarker = 0x7E
	EndMarker   = 0x7F
)

// Header byte layout: three flag bits in the high bits, a 5-bit type tag in
// the low bits.
const (
	FlagFEC        = 0x80 // payload passed through the FEC adapter
	FlagCompressed = 0x40 // payload deflate-compressed (after reassembly if chunked)
	FlagChunked    = 0x20 // payload is a chunk envelope
	FlagMask       = 0xE0
	TagMask        = 0x1F
)

// Type tags (5-bit space). Unrecognized tags decode to raw bytes.
const (
	TagText        = 0x01
	TagJSON        = 0x02
	TagFile        = 0x03
	TagSensorData  = 0x04
	TagImage       = 0x05
	TagAudio       = 0x06
	TagGesture     = 0x07
	TagMeshCommand = 0x08
	TagQuantumKey  = 0x09
)

// Packet size limits
const (
	MaxPayloadSize   = 512 // bytes; bounds the 16-bit length field
	DefaultChunkSize = 256 // bytes of application data per chunk
	MinPacketBits    = 56  // start + header + length + crc + end, empty payload
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Receiver defaults
const (
	BitPeriod         = 100 * time.Millisecond
	DefaultThreshold  = 128
	DefaultMaxBuffer  = 1 << 16 // bits; buffer truncates to its most recent half past this
	DefaultGroupTTL   = 10 * time.Minute
	legacyUnitBits    = 9 // 8 data bits + 1 even parity bit
	markerBits        = 8
	stateHistoryLimit = 64
)
