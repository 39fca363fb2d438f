// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomBits generates a random bit sequence of the given length
func randomBits(rng *rand.Rand, n int) Bits {
	b := make(Bits, n)
	for i := range b {
		b[i] = uint8(rng.Intn(2))
	}
	return b
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecodeBits_RandomBits feeds random bit noise to the frame scanner
// and verifies it doesn't panic and keeps its consumed-count contract
func TestFuzzDecodeBits_RandomBits(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		bits := randomBits(rng, rng.Intn(1500))

		pkt, consumed, err := DecodeBits(bits)
		if consumed < 0 || consumed > len(bits) {
			t.Errorf("Round %d: consumed %d outside [0, %d]", i, consumed, len(bits))
		}
		if err == nil {
			if pkt == nil {
				t.Errorf("Round %d: nil packet with nil error", i)
				continue
			}
			if int(pkt.Length()) != len(pkt.Payload()) {
				t.Errorf("Round %d: length field %d but %d payload bytes", i, pkt.Length(), len(pkt.Payload()))
			}
		}
		if errors.Is(err, ErrStartNotFound) {
			expected := len(bits) - (markerBits - 1)
			if expected < 0 {
				expected = 0
			}
			if consumed != expected {
				t.Errorf("Round %d: expected %d consumed on no-start, got %d", i, expected, consumed)
			}
		}
	}
}

// TestFuzzCodec_RandomFrames round-trips random headers and payloads
// through the frame codec
func TestFuzzCodec_RandomFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		header := uint8(rng.Intn(256))
		payload := make([]byte, rng.Intn(MaxPayloadSize+1))
		rng.Read(payload)

		frame, err := EncodeFrame(header, payload)
		if err != nil {
			t.Errorf("Round %d: encode error: %v", i, err)
			continue
		}
		pkt, consumed, err := DecodeBits(frame)
		if err != nil {
			t.Errorf("Round %d: decode error: %v", i, err)
			continue
		}
		if consumed != len(frame) {
			t.Errorf("Round %d: consumed %d of %d bits", i, consumed, len(frame))
		}
		if pkt.Header() != header {
			t.Errorf("Round %d: header mismatch: expected 0x%02X, got 0x%02X", i, header, pkt.Header())
		}
		if !bytes.Equal(pkt.Payload(), payload) {
			t.Errorf("Round %d: payload mismatch", i)
		}
	}
}

// TestFuzzDecodeBits_CorruptedFrames flips random bits in valid frames
// and verifies the scanner never panics on the damage
func TestFuzzDecodeBits_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(128))
		rng.Read(payload)
		frame, err := EncodeFrame(uint8(rng.Intn(256)), payload)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		flips := rng.Intn(4) + 1
		for j := 0; j < flips; j++ {
			frame[rng.Intn(len(frame))] ^= 1
		}

		// The header is outside the CRC, so some corruptions still decode.
		// The contract is only that the scanner survives and stays in bounds.
		pkt, consumed, err := DecodeBits(frame)
		if consumed < 0 || consumed > len(frame) {
			t.Errorf("Round %d: consumed %d outside [0, %d]", i, consumed, len(frame))
		}
		if err == nil && pkt == nil {
			t.Errorf("Round %d: nil packet with nil error", i)
		}
	}
}

// ============================================================
// Receiver Fuzz Tests
// ============================================================

// TestFuzzReceiver_GarbageThenFrame prefixes frames with marker-free noise
// and verifies the receiver always synchronizes onto the real frame
func TestFuzzReceiver_GarbageThenFrame(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		// Noise with every sixth bit forced low can never contain the six
		// consecutive ones a start marker needs.
		garbage := randomBits(rng, rng.Intn(100))
		for j := 0; j < len(garbage); j += 6 {
			garbage[j] = 0
		}

		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)
		frame, err := EncodeFrame(uint8(rng.Intn(9)+1), payload)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		r := NewReceiver(WithLogFunc(quietLog))
		stream := append(append(Bits{}, garbage...), frame...)
		msgs, errs := feedBits(t, r, stream)
		if len(errs) != 0 {
			t.Errorf("Round %d: unexpected errors: %v", i, errs)
			continue
		}
		if len(msgs) != 1 {
			t.Errorf("Round %d: expected 1 message after %d garbage bits, got %d", i, len(garbage), len(msgs))
			continue
		}
		if !bytes.Equal(msgs[0].Data, payload) {
			t.Errorf("Round %d: payload mismatch", i)
		}
	}
}

// TestFuzzReceiver_RandomSamples feeds raw random brightness samples and
// verifies the session never panics and counts every sample
func TestFuzzReceiver_RandomSamples(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds < 1 {
		rounds = 1
	}
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		r := NewReceiver(WithLogFunc(quietLog))
		n := rng.Intn(5000) + 100
		for j := 0; j < n; j++ {
			r.ProcessSample(uint8(rng.Intn(256)))
		}
		if r.Stats().SamplesProcessed != uint64(n) {
			t.Errorf("Round %d: expected %d samples, got %d", i, n, r.Stats().SamplesProcessed)
		}
	}
}

// TestFuzzReceiver_NoisyModulation round-trips random messages through
// the modulator with jitter below the decision margin
func TestFuzzReceiver_NoisyModulation(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds < 1 {
		rounds = 1
	}
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(200)+1)
		rng.Read(payload)
		bits, err := NewEncoder().EncodeMessage(TagFile, payload)
		if err != nil {
			t.Fatalf("Round %d: encode error: %v", i, err)
		}

		samples := ModulateNoisy(bits, 30, 220, 60, rng)
		r := NewReceiver(WithLogFunc(quietLog))
		msgs, errs := feedSamples(t, r, samples)
		if len(errs) != 0 {
			t.Errorf("Round %d: unexpected errors: %v", i, errs)
			continue
		}
		if len(msgs) != 1 || !bytes.Equal(msgs[0].Data, payload) {
			t.Errorf("Round %d: noisy round trip failed", i)
		}
	}
}

// TestFuzzLegacy_RoundTrip round-trips random messages through the legacy
// parity framing
func TestFuzzLegacy_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		// The legacy framing cannot carry the end marker byte: a data byte
		// of 0x7F would terminate the stream early.
		message := make([]byte, rng.Intn(64)+1)
		for j := range message {
			b := byte(rng.Intn(255))
			if b >= EndMarker {
				b++
			}
			message[j] = b
		}

		r := NewReceiver(WithMode(ModeLegacy), WithLogFunc(quietLog))
		msgs, errs := feedBits(t, r, EncodeLegacy(message))
		if len(errs) != 0 {
			t.Errorf("Round %d: unexpected errors: %v", i, errs)
			continue
		}
		if len(msgs) != 1 || !bytes.Equal(msgs[0].Data, message) {
			t.Errorf("Round %d: legacy round trip failed for %d bytes", i, len(message))
		}
	}
}

// ============================================================
// Chunk Fuzz Tests
// ============================================================

// TestFuzzChunks_SplitShuffleReassemble splits random payloads at random
// chunk sizes, shuffles, and verifies lossless reassembly
func TestFuzzChunks_SplitShuffleReassemble(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(4096)+1)
		rng.Read(payload)
		chunkSize := rng.Intn(MaxPayloadSize) + 1

		chunks, err := SplitChunks(payload, chunkSize)
		if err != nil {
			t.Fatalf("Round %d: split error: %v", i, err)
		}
		rng.Shuffle(len(chunks), func(a, b int) {
			chunks[a], chunks[b] = chunks[b], chunks[a]
		})

		out, ok := ReassembleChunks(chunks)
		if !ok {
			t.Errorf("Round %d: reassembly reported incomplete", i)
			continue
		}
		if !bytes.Equal(out, payload) {
			t.Errorf("Round %d: payload mismatch after shuffle", i)
		}
	}
}

// TestFuzzChunks_EnvelopeRoundTrip round-trips random chunks through the
// CBOR envelope
func TestFuzzChunks_EnvelopeRoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(1024)+1)
		rng.Read(payload)
		chunks, err := SplitChunks(payload, rng.Intn(256)+1)
		if err != nil {
			t.Fatalf("Round %d: split error: %v", i, err)
		}

		c := chunks[rng.Intn(len(chunks))]
		encoded, err := MarshalChunk(c)
		if err != nil {
			t.Errorf("Round %d: marshal error: %v", i, err)
			continue
		}
		decoded, err := UnmarshalChunk(encoded)
		if err != nil {
			t.Errorf("Round %d: unmarshal error: %v", i, err)
			continue
		}
		if decoded.Transmission != c.Transmission || decoded.Sequence != c.Sequence ||
			decoded.Total != c.Total || !bytes.Equal(decoded.Data, c.Data) {
			t.Errorf("Round %d: envelope mismatch", i)
		}
	}
}

// ============================================================
// Calibration Fuzz Tests
// ============================================================

// TestFuzzCalibrator_RandomSamples verifies both threshold strategies stay
// within the sampled brightness range
func TestFuzzCalibrator_RandomSamples(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	strategies := []ThresholdFunc{MidpointThreshold, MeanThreshold}
	for i := 0; i < rounds; i++ {
		c := NewCalibrator(WithStrategy(strategies[i%len(strategies)]))
		c.Start()
		n := rng.Intn(500) + 1
		for j := 0; j < n; j++ {
			c.AddSample(uint8(rng.Intn(256)))
		}
		th, err := c.Finish()
		if err != nil {
			t.Fatalf("Round %d: finish error: %v", i, err)
		}
		if th.Value < th.Min || th.Value > th.Max {
			t.Errorf("Round %d: threshold %d outside [%d, %d]", i, th.Value, th.Min, th.Max)
		}
		if th.Mean < float64(th.Min) || th.Mean > float64(th.Max) {
			t.Errorf("Round %d: mean %.2f outside [%d, %d]", i, th.Mean, th.Min, th.Max)
		}
		if th.Samples != n {
			t.Errorf("Round %d: expected %d samples, got %d", i, n, th.Samples)
		}
	}
}
