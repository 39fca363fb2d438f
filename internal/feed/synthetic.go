// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package feed

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

// SyntheticFeed replays a modulated bit sequence as brightness samples,
// optionally with noise. Used by the loopback command and tests.
type SyntheticFeed struct {
	samples []byte
	offset  int
}

// NewSynthetic modulates bits into a sample stream. With amplitude 0 the
// stream is clean and rng may be nil.
func NewSynthetic(bits luxwire.Bits, offLevel, onLevel, amplitude uint8, rng *rand.Rand) *SyntheticFeed {
	var samples []uint8
	if amplitude == 0 {
		samples = luxwire.Modulate(bits, offLevel, onLevel)
	} else {
		samples = luxwire.ModulateNoisy(bits, offLevel, onLevel, amplitude, rng)
	}
	return &SyntheticFeed{samples: samples}
}

func (f *SyntheticFeed) Read(p []byte) (int, error) {
	if f.offset >= len(f.samples) {
		return 0, io.EOF
	}
	n := copy(p, f.samples[f.offset:])
	f.offset += n
	return n, nil
}

func (f *SyntheticFeed) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("synthetic feed is read-only")
}

func (f *SyntheticFeed) Close() error {
	return nil
}
