// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import "fmt"

// Encoder builds wire frames from application payloads. Options control the
// payload transforms applied before framing: compression, FEC, and the chunk
// size above which payloads are split.
type Encoder struct {
	fec       FEC
	compress  bool
	chunkSize int
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithFEC routes every frame payload through the given FEC adapter and sets
// the FEC flag bit.
func WithFEC(f FEC) EncoderOption {
	return func(e *Encoder) { e.fec = f }
}

// WithCompression deflate-compresses the payload before chunking and sets the
// compressed flag bit.
func WithCompression() EncoderOption {
	return func(e *Encoder) { e.compress = true }
}

// WithChunkSize overrides the payload size above which messages are split
// into chunks.
func WithChunkSize(n int) EncoderOption {
	return func(e *Encoder) { e.chunkSize = n }
}

// NewEncoder creates an encoder with the given options.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EncodeFrame builds one raw frame: start marker, header byte, 16-bit length,
// payload bits, 16-bit CRC of the payload, end marker. MSB first throughout.
func EncodeFrame(header uint8, payload []byte) (Bits, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	b := make(Bits, 0, MinPacketBits+len(payload)*8)
	b = AppendByte(b, StartMarker)
	b = AppendByte(b, header)
	b, _ = AppendValue(b, uint64(len(payload)), 16)
	b = AppendBytes(b, payload)
	b, _ = AppendValue(b, uint64(CalculateCRC(payload)), 16)
	b = AppendByte(b, EndMarker)
	return b, nil
}

// Encode builds a single frame for the given tag and payload, applying the
// configured compression and FEC transforms. Payloads larger than the chunk
// size are rejected; use EncodeMessage for those.
func (e *Encoder) Encode(tag uint8, payload []byte) (Bits, error) {
	frames, err := e.EncodeFrames(tag, payload)
	if err != nil {
		return nil, err
	}
	if len(frames) != 1 {
		return nil, fmt.Errorf("%w: %d bytes need chunking (chunk size %d)", ErrPayloadTooLarge, len(payload), e.chunkSize)
	}
	return frames[0], nil
}

// EncodeMessage encodes a complete logical message, splitting into chunks
// when the payload exceeds the chunk size, and returns the concatenated
// frame bits ready for the flash-timing driver.
func (e *Encoder) EncodeMessage(tag uint8, payload []byte) (Bits, error) {
	frames, err := e.EncodeFrames(tag, payload)
	if err != nil {
		return nil, err
	}
	var b Bits
	for _, f := range frames {
		b = append(b, f...)
	}
	return b, nil
}

// EncodeFrames encodes a logical message as one frame per chunk, in
// transmission order.
func (e *Encoder) EncodeFrames(tag uint8, payload []byte) ([]Bits, error) {
	header := tag & TagMask
	data := payload

	if e.compress {
		compressed, err := deflate(data)
		if err != nil {
			return nil, fmt.Errorf("compress payload: %w", err)
		}
		data = compressed
		header |= FlagCompressed
	}
	if e.fec != nil {
		header |= FlagFEC
	}

	if len(data) <= e.chunkSize {
		frame, err := e.encodeOne(header, data)
		if err != nil {
			return nil, err
		}
		return []Bits{frame}, nil
	}

	chunks, err := SplitChunks(data, e.chunkSize)
	if err != nil {
		return nil, err
	}
	header |= FlagChunked
	frames := make([]Bits, 0, len(chunks))
	for _, c := range chunks {
		envelope, err := MarshalChunk(c)
		if err != nil {
			return nil, fmt.Errorf("marshal chunk %d/%d: %w", c.Sequence, c.Total, err)
		}
		frame, err := e.encodeOne(header, envelope)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// encodeOne applies the FEC transform and frames a single payload.
func (e *Encoder) encodeOne(header uint8, payload []byte) (Bits, error) {
	if e.fec != nil {
		encoded, err := e.fec.Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("FEC encode: %w", err)
		}
		payload = encoded
	}
	return EncodeFrame(header, payload)
}
