// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Statistics tracks receiver activity and error rates. It is owned by one
// receiver and must be read from the same goroutine that drives it.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	SamplesProcessed   uint64
	BitsReceived       uint64
	FramesDecoded      uint64
	MessagesDelivered  uint64
	ChecksumErrors     uint64
	FramingErrors      uint64
	ParityErrors       uint64
	PayloadErrors      uint64
	BufferTruncations  uint64
	ChunksReceived     uint64
	GroupsExpired      uint64
	FECFailures        uint64
	FECShardsCorrected uint64
	MessagesByType     map[string]uint64

	// Rates (calculated)
	BitRate   float64 // bits/sec
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		MessagesByType: make(map[string]uint64),
	}
}

// RecordSample counts one processed brightness sample
func (s *Statistics) RecordSample() {
	s.SamplesProcessed++
}

// RecordBit counts one thresholded bit
func (s *Statistics) RecordBit() {
	s.BitsReceived++
	s.LastUpdateTime = time.Now()
}

// RecordFrame counts a frame decode attempt that ran to completion,
// classifying the error when it failed
func (s *Statistics) RecordFrame(err error) {
	switch {
	case err == nil:
		s.FramesDecoded++
	case errors.Is(err, ErrChecksumMismatch):
		s.ChecksumErrors++
	default:
		s.FramingErrors++
	}
	s.LastUpdateTime = time.Now()
}

// RecordMessage counts one delivered message by its formatted type
func (s *Statistics) RecordMessage(m *Message) {
	s.MessagesDelivered++
	s.MessagesByType[m.Type]++
	s.LastUpdateTime = time.Now()
}

// RecordParityError counts one legacy parity failure
func (s *Statistics) RecordParityError() {
	s.ParityErrors++
	s.LastUpdateTime = time.Now()
}

// RecordPayloadError counts a frame whose CRC passed but whose payload
// could not be processed, such as a bad chunk envelope
func (s *Statistics) RecordPayloadError() {
	s.PayloadErrors++
	s.LastUpdateTime = time.Now()
}

// RecordTruncation counts one buffer cap truncation
func (s *Statistics) RecordTruncation() {
	s.BufferTruncations++
}

// RecordChunk counts one chunk envelope accepted into a pending group
func (s *Statistics) RecordChunk() {
	s.ChunksReceived++
}

// RecordFEC counts an FEC decode outcome
func (s *Statistics) RecordFEC(res FECResult) {
	s.FECShardsCorrected += uint64(res.ErrorsCorrected)
	if !res.Success {
		s.FECFailures++
	}
}

// CalculateRates calculates bit, frame, and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.BitRate = float64(s.BitsReceived) / elapsed
		s.FrameRate = float64(s.FramesDecoded) / elapsed
		errorCount := s.ChecksumErrors + s.FramingErrors + s.ParityErrors
		s.ErrorRate = float64(errorCount) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var checksumPercent, framingPercent float64
	attempts := s.FramesDecoded + s.ChecksumErrors + s.FramingErrors
	if attempts > 0 {
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(attempts)
		framingPercent = float64(s.FramingErrors) * 100.0 / float64(attempts)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Samples:         %8d\n", s.SamplesProcessed)
	result += fmt.Sprintf("Bits:            %8d\n", s.BitsReceived)
	result += fmt.Sprintf("Frames Decoded:  %8d\n", s.FramesDecoded)
	result += fmt.Sprintf("Messages:        %8d\n", s.MessagesDelivered)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.FramingErrors > 0 {
		result += fmt.Sprintf("Framing Errors:  %8d (%.1f%%)\n", s.FramingErrors, framingPercent)
	}
	if s.ParityErrors > 0 {
		result += fmt.Sprintf("Parity Errors:   %8d\n", s.ParityErrors)
	}
	if s.PayloadErrors > 0 {
		result += fmt.Sprintf("Payload Errors:  %8d\n", s.PayloadErrors)
	}
	if s.BufferTruncations > 0 {
		result += fmt.Sprintf("Buffer Truncs:   %8d\n", s.BufferTruncations)
	}
	if s.ChunksReceived > 0 {
		result += fmt.Sprintf("Chunks:          %8d\n", s.ChunksReceived)
	}
	if s.GroupsExpired > 0 {
		result += fmt.Sprintf("Groups Expired:  %8d\n", s.GroupsExpired)
	}
	if s.FECShardsCorrected > 0 || s.FECFailures > 0 {
		result += fmt.Sprintf("FEC Corrected:   %8d shards (%d unrecoverable)\n", s.FECShardsCorrected, s.FECFailures)
	}

	if len(s.MessagesByType) > 0 {
		types := make([]string, 0, len(s.MessagesByType))
		for t := range s.MessagesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			result += fmt.Sprintf("  %-14s %8d\n", t+":", s.MessagesByType[t])
		}
	}

	result += fmt.Sprintf("Bit Rate:        %8.1f bits/sec\n", s.BitRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	*s = Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		MessagesByType: make(map[string]uint64),
	}
}
