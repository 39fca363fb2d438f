// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"fmt"
	mathbits "math/bits"
)

// Legacy mode predates the packet codec: a message is the start marker, one
// 9-bit unit per byte (8 data bits MSB first plus an even parity bit), and
// the end marker. No length field, no CRC, no type tag.

// parityBit returns the even parity bit for b, the XOR of its data bits.
func parityBit(b byte) uint8 {
	return uint8(mathbits.OnesCount8(b) & 1)
}

// AppendLegacyByte appends b as one 9-bit legacy unit.
func AppendLegacyByte(bits Bits, b byte) Bits {
	bits = AppendByte(bits, b)
	return append(bits, parityBit(b))
}

// EncodeLegacy frames a message in legacy mode.
func EncodeLegacy(message []byte) Bits {
	b := make(Bits, 0, 2*markerBits+len(message)*legacyUnitBits)
	b = AppendByte(b, StartMarker)
	for _, by := range message {
		b = AppendLegacyByte(b, by)
	}
	return AppendByte(b, EndMarker)
}

// DecodeLegacyUnit validates one 9-bit unit and returns its data byte.
func DecodeLegacyUnit(unit Bits) (byte, error) {
	if len(unit) != legacyUnitBits {
		return 0, fmt.Errorf("legacy unit has %d bits, want %d", len(unit), legacyUnitBits)
	}
	v, _ := unit[:8].Value()
	b := byte(v)
	if parityBit(b) != unit[8]&1 {
		return 0, fmt.Errorf("%w: byte 0x%02X", ErrParityMismatch, b)
	}
	return b, nil
}

// DecodeLegacyUnits decodes a unit sequence, failing on the first parity
// mismatch with no partial output.
func DecodeLegacyUnits(bits Bits) ([]byte, error) {
	if len(bits)%legacyUnitBits != 0 {
		return nil, fmt.Errorf("bit count %d is not a multiple of %d", len(bits), legacyUnitBits)
	}
	out := make([]byte, 0, len(bits)/legacyUnitBits)
	for i := 0; i < len(bits); i += legacyUnitBits {
		b, err := DecodeLegacyUnit(bits[i : i+legacyUnitBits])
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i/legacyUnitBits, err)
		}
		out = append(out, b)
	}
	return out, nil
}
