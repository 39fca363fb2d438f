// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"fmt"
	"strings"
)

// Bits is an unpacked bit sequence, one element per bit, each 0 or 1.
// Bit order is MSB first within every encoded field and byte.
type Bits []uint8

// AppendValue appends value as a fixed-width, zero-padded, MSB-first bit
// sequence. Returns ErrValueOutOfRange if value does not fit in width bits.
func AppendValue(b Bits, value uint64, width int) (Bits, error) {
	if width < 1 || width > 64 {
		return b, fmt.Errorf("%w: width %d", ErrValueOutOfRange, width)
	}
	if width < 64 && value >= 1<<uint(width) {
		return b, fmt.Errorf("%w: %d needs more than %d bits", ErrValueOutOfRange, value, width)
	}
	for i := width - 1; i >= 0; i-- {
		b = append(b, uint8(value>>uint(i))&1)
	}
	return b, nil
}

// Value interprets the whole sequence as one MSB-first unsigned integer.
// It is the exact inverse of AppendValue for the same width.
func (b Bits) Value() (uint64, error) {
	if len(b) > 64 {
		return 0, fmt.Errorf("%w: %d bits exceed uint64", ErrValueOutOfRange, len(b))
	}
	var v uint64
	for _, bit := range b {
		v = v<<1 | uint64(bit&1)
	}
	return v, nil
}

// AppendByte appends one byte as 8 MSB-first bits.
func AppendByte(b Bits, by byte) Bits {
	for i := 7; i >= 0; i-- {
		b = append(b, (by>>uint(i))&1)
	}
	return b
}

// AppendBytes appends each byte in data as 8 MSB-first bits.
func AppendBytes(b Bits, data []byte) Bits {
	for _, by := range data {
		b = AppendByte(b, by)
	}
	return b
}

// Bytes packs the sequence into bytes. The length must be a multiple of 8.
func (b Bits) Bytes() ([]byte, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("bit count %d is not a multiple of 8", len(b))
	}
	out := make([]byte, len(b)/8)
	for i := range out {
		var by byte
		for j := 0; j < 8; j++ {
			by = by<<1 | b[i*8+j]&1
		}
		out[i] = by
	}
	return out, nil
}

// String renders the sequence as a "0101" string.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		if bit&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseBits parses a "0101" string, the inverse of String.
func ParseBits(s string) (Bits, error) {
	b := make(Bits, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			b = append(b, 0)
		case '1':
			b = append(b, 1)
		default:
			return nil, fmt.Errorf("invalid bit character %q at index %d", s[i], i)
		}
	}
	return b, nil
}

// matchByte reports whether the 8 bits starting at offset equal value.
// Returns false when fewer than 8 bits remain.
func (b Bits) matchByte(offset int, value byte) bool {
	if offset < 0 || offset+8 > len(b) {
		return false
	}
	for i := 0; i < 8; i++ {
		if b[offset+i]&1 != (value>>uint(7-i))&1 {
			return false
		}
	}
	return true
}
