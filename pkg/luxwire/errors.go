// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import "errors"

// Parse failures returned by DecodeBits. ErrStartNotFound and
// ErrIncompleteFrame mean "keep buffering"; the rest are fatal to the current
// frame but never to the session.
var (
	ErrStartNotFound    = errors.New("start marker not found")
	ErrIncompleteFrame  = errors.New("incomplete frame")
	ErrInvalidLength    = errors.New("invalid length field")
	ErrInvalidEndMarker = errors.New("invalid end marker")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Payload and session failures.
var (
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrValueOutOfRange     = errors.New("value does not fit in bit width")
	ErrParityMismatch      = errors.New("parity mismatch")
	ErrInvalidChunk        = errors.New("invalid chunk envelope")
	ErrNotCalibrating      = errors.New("calibration not active")
	ErrCalibrating         = errors.New("calibration in progress")
	ErrInsufficientSamples = errors.New("insufficient calibration samples")
)
