// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"
	"github.com/sigurn/crc8"
)

// FECResult reports the outcome of a forward-error-correction decode.
// Data is populated even when Success is false: unrecoverable payloads pass
// through uncorrected so the caller can log and deliver degraded bytes.
type FECResult struct {
	Success         bool
	Data            []byte
	ErrorsCorrected int
}

// FEC is the pluggable forward-error-correction contract. Encode expands
// application bytes into a self-describing protected block; Decode reverses
// it, correcting what it can.
type FEC interface {
	Encode(data []byte) ([]byte, error)
	Decode(encoded []byte) FECResult
}

var crc8Table = crc8.MakeTable(crc8.CRC8_MAXIM)

// ReedSolomonFEC protects payloads with Reed-Solomon erasure coding. The
// payload is length-prefixed, split into data shards, and extended with
// parity shards; every shard carries a trailing CRC-8 so corrupted shards
// can be identified, erased, and reconstructed from parity.
//
// Block format: (shard1)(crc8)(shard2)(crc8)...(parity1)(crc8)...
type ReedSolomonFEC struct {
	dataShards   int
	parityShards int
}

// NewReedSolomonFEC creates a codec with the given shard geometry.
func NewReedSolomonFEC(dataShards, parityShards int) (*ReedSolomonFEC, error) {
	if dataShards < 1 || parityShards < 1 {
		return nil, fmt.Errorf("invalid shard counts: %d data, %d parity", dataShards, parityShards)
	}
	if dataShards+parityShards > 256 {
		return nil, fmt.Errorf("too many shards: %d (max 256)", dataShards+parityShards)
	}
	return &ReedSolomonFEC{dataShards: dataShards, parityShards: parityShards}, nil
}

// DefaultFEC returns the standard 8+4 codec: any 4 corrupted shards per
// block are recoverable.
func DefaultFEC() FEC {
	f, err := NewReedSolomonFEC(8, 4)
	if err != nil {
		panic(err)
	}
	return f
}

// Encode builds the protected block for data.
func (f *ReedSolomonFEC) Encode(data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	prefixed := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(prefixed, uint16(len(data)))
	copy(prefixed[2:], data)

	shardLen := (len(prefixed) + f.dataShards - 1) / f.dataShards
	shards := make([][]byte, f.dataShards+f.parityShards)
	for i := range shards {
		shards[i] = make([]byte, shardLen)
	}
	for i, b := range prefixed {
		shards[i/shardLen][i%shardLen] = b
	}

	enc, err := reedsolomon.New(f.dataShards, f.parityShards)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}

	out := make([]byte, 0, (shardLen+1)*len(shards))
	for _, s := range shards {
		out = append(out, s...)
		out = append(out, crc8.Checksum(s, crc8Table))
	}
	return out, nil
}

// Decode validates each shard's CRC-8, erases the failures, and reconstructs
// them from parity. ErrorsCorrected counts the rebuilt shards. When more
// shards are corrupt than parity can recover, Success is false and Data holds
// the uncorrected data region.
func (f *ReedSolomonFEC) Decode(encoded []byte) FECResult {
	n := f.dataShards + f.parityShards
	if len(encoded) == 0 || len(encoded)%n != 0 || len(encoded)/n < 2 {
		return FECResult{Success: false, Data: encoded}
	}
	stride := len(encoded) / n
	shardLen := stride - 1

	shards := make([][]byte, n)
	bad := 0
	for i := 0; i < n; i++ {
		s := encoded[i*stride : i*stride+shardLen]
		if crc8.Checksum(s, crc8Table) != encoded[i*stride+shardLen] {
			shards[i] = nil // erased, for reconstruction by the RS algorithm
			bad++
			continue
		}
		shard := make([]byte, shardLen)
		copy(shard, s)
		shards[i] = shard
	}

	enc, err := reedsolomon.New(f.dataShards, f.parityShards)
	if err != nil {
		return FECResult{Success: false, Data: f.rawData(encoded, stride)}
	}
	if bad > 0 {
		if err := enc.Reconstruct(shards); err != nil {
			return FECResult{Success: false, Data: f.rawData(encoded, stride)}
		}
	}

	joined := make([]byte, 0, f.dataShards*shardLen)
	for i := 0; i < f.dataShards; i++ {
		joined = append(joined, shards[i]...)
	}
	size := int(binary.BigEndian.Uint16(joined))
	if size > len(joined)-2 {
		return FECResult{Success: false, Data: f.rawData(encoded, stride)}
	}
	return FECResult{Success: true, Data: joined[2 : 2+size], ErrorsCorrected: bad}
}

// rawData strips the per-shard checksums from the data region without
// correcting anything, for the degraded pass-through path.
func (f *ReedSolomonFEC) rawData(encoded []byte, stride int) []byte {
	out := make([]byte, 0, f.dataShards*(stride-1))
	for i := 0; i < f.dataShards && (i+1)*stride <= len(encoded); i++ {
		out = append(out, encoded[i*stride:i*stride+stride-1]...)
	}
	if len(out) >= 2 {
		if size := int(binary.BigEndian.Uint16(out)); size <= len(out)-2 {
			return out[2 : 2+size]
		}
	}
	return out
}
