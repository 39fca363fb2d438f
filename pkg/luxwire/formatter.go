// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FormatTypeTag returns the human-readable name for a type tag
func FormatTypeTag(tag uint8) string {
	switch tag & TagMask {
	case TagText:
		return "TEXT"
	case TagJSON:
		return "JSON"
	case TagFile:
		return "FILE"
	case TagSensorData:
		return "SENSOR_DATA"
	case TagImage:
		return "IMAGE"
	case TagAudio:
		return "AUDIO"
	case TagGesture:
		return "GESTURE"
	case TagMeshCommand:
		return "MESH_COMMAND"
	case TagQuantumKey:
		return "QUANTUM_KEY"
	default:
		return "UNKNOWN"
	}
}

// ParseTypeTag maps a tag name back to its wire value, the inverse of
// FormatTypeTag.
func ParseTypeTag(name string) (uint8, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TEXT":
		return TagText, nil
	case "JSON":
		return TagJSON, nil
	case "FILE":
		return TagFile, nil
	case "SENSOR_DATA", "SENSOR":
		return TagSensorData, nil
	case "IMAGE":
		return TagImage, nil
	case "AUDIO":
		return TagAudio, nil
	case "GESTURE":
		return TagGesture, nil
	case "MESH_COMMAND", "MESH":
		return TagMeshCommand, nil
	case "QUANTUM_KEY", "QKEY":
		return TagQuantumKey, nil
	default:
		return 0, fmt.Errorf("unknown type tag %q", name)
	}
}

// FormatFlags renders the header flag bits, "-" when none are set.
func FormatFlags(flags uint8) string {
	parts := []string{}
	if flags&FlagFEC != 0 {
		parts = append(parts, "FEC")
	}
	if flags&FlagCompressed != 0 {
		parts = append(parts, "COMPRESSED")
	}
	if flags&FlagChunked != 0 {
		parts = append(parts, "CHUNKED")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// FormatPacket formats a decoded packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s (0x%02X) len=%d crc=0x%04X flags=%s",
		timestamp, FormatTypeTag(p.Tag()), p.Header(), p.Length(), p.CRC(), FormatFlags(p.Flags()))
}

// FormatMessage formats a delivered message with a payload preview
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s %d bytes in %.1fs: %s",
		timestamp, m.Type, m.Size, m.Duration.Seconds(), FormatPayloadPreview(m.Data))
}

// FormatPayloadPreview renders a payload as quoted text when printable,
// otherwise as truncated hex.
func FormatPayloadPreview(data []byte) string {
	const previewLimit = 48
	if len(data) == 0 {
		return "(empty)"
	}
	if utf8.Valid(data) && isPrintable(string(data)) {
		s := string(data)
		if len(s) > previewLimit {
			return strconv.Quote(s[:previewLimit]) + "..."
		}
		return strconv.Quote(s)
	}
	if len(data) > previewLimit/3 {
		return fmt.Sprintf("% X ... (%d bytes)", data[:previewLimit/3], len(data))
	}
	return fmt.Sprintf("% X", data)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7F {
			return false
		}
	}
	return true
}
