// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import "math/rand"

// Modulate renders a bit sequence as brightness samples, one sample per bit
// period: onLevel for 1, offLevel for 0. The inverse of the receiver's
// threshold decision, used by the loopback path and synthetic feeds.
func Modulate(bits Bits, offLevel, onLevel uint8) []uint8 {
	out := make([]uint8, len(bits))
	for i, b := range bits {
		if b&1 == 1 {
			out[i] = onLevel
		} else {
			out[i] = offLevel
		}
	}
	return out
}

// ModulateNoisy renders bits as samples with uniform jitter of up to
// amplitude on each level, clamped to the 0-255 range. Deterministic for a
// given rng.
func ModulateNoisy(bits Bits, offLevel, onLevel, amplitude uint8, rng *rand.Rand) []uint8 {
	out := Modulate(bits, offLevel, onLevel)
	if amplitude == 0 {
		return out
	}
	span := int(amplitude)*2 + 1
	for i, s := range out {
		v := int(s) + rng.Intn(span) - int(amplitude)
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		out[i] = uint8(v)
	}
	return out
}
