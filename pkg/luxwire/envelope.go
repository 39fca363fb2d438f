// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// chunkEnvelope is the on-wire form of a chunk, a CBOR array:
// [transmission, sequence, total, data].
type chunkEnvelope struct {
	_            struct{} `cbor:",toarray"`
	Transmission []byte
	Sequence     uint16
	Total        uint16
	Data         []byte
}

// MarshalChunk encodes a chunk into its CBOR envelope.
func MarshalChunk(c Chunk) ([]byte, error) {
	env := chunkEnvelope{
		Transmission: c.Transmission[:],
		Sequence:     c.Sequence,
		Total:        c.Total,
		Data:         c.Data,
	}
	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode chunk envelope: %w", err)
	}
	return data, nil
}

// UnmarshalChunk decodes a CBOR chunk envelope.
func UnmarshalChunk(data []byte) (Chunk, error) {
	var env chunkEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrInvalidChunk, err)
	}
	id, err := uuid.FromBytes(env.Transmission)
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: transmission id: %v", ErrInvalidChunk, err)
	}
	if env.Total < 1 || env.Sequence >= env.Total {
		return Chunk{}, fmt.Errorf("%w: sequence %d of %d", ErrInvalidChunk, env.Sequence, env.Total)
	}
	return Chunk{
		Transmission: id,
		Sequence:     env.Sequence,
		Total:        env.Total,
		Data:         env.Data,
	}, nil
}

// legacyChunk matches the old JSON chunk envelope, which carried no
// transmission identity.
type legacyChunk struct {
	Sequence *int    `json:"sequence"`
	Total    *int    `json:"total"`
	Data     *string `json:"data"`
}

// ParseLegacyChunk recognizes the old JSON-shaped chunk envelope
// {"sequence": n, "total": n, "data": "<base64>"} by content inspection.
// Old transmitters carry no transmission ID, so these chunks all share the
// nil ID and only one legacy transmission can be in flight at a time.
func ParseLegacyChunk(payload []byte) (Chunk, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Chunk{}, false
	}
	var env legacyChunk
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Chunk{}, false
	}
	if env.Sequence == nil || env.Total == nil || env.Data == nil {
		return Chunk{}, false
	}
	if *env.Sequence < 0 || *env.Total < 1 || *env.Sequence >= *env.Total || *env.Total > 0xFFFF {
		return Chunk{}, false
	}
	data, err := base64.StdEncoding.DecodeString(*env.Data)
	if err != nil {
		return Chunk{}, false
	}
	return Chunk{
		Transmission: uuid.Nil,
		Sequence:     uint16(*env.Sequence),
		Total:        uint16(*env.Total),
		Data:         data,
	}, true
}
