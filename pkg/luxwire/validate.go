// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// AnomalyType represents different classes of message anomalies
type AnomalyType int

const (
	ANOMALY_INVALID_UTF8 AnomalyType = iota
	ANOMALY_INVALID_JSON
	ANOMALY_EMPTY_PAYLOAD
	ANOMALY_UNKNOWN_TAG
)

// ValidationError represents a message validation failure. Validation is
// advisory: anomalous messages are still delivered.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks a decoded message's payload against its type tag
// Returns a slice of validation errors (empty if the message is clean)
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	if len(m.Data) == 0 {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_EMPTY_PAYLOAD,
			Message: fmt.Sprintf("%s message with empty payload", m.Type),
			Details: map[string]interface{}{"tag": m.Tag},
		})
		return errors
	}

	switch m.Tag {
	case TagText:
		if !utf8.Valid(m.Data) {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_INVALID_UTF8,
				Message: "TEXT payload is not valid UTF-8",
				Details: map[string]interface{}{"length": len(m.Data)},
			})
		}
	case TagJSON, TagSensorData, TagMeshCommand:
		if !json.Valid(m.Data) {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_INVALID_JSON,
				Message: fmt.Sprintf("%s payload is not valid JSON", m.Type),
				Details: map[string]interface{}{"length": len(m.Data)},
			})
		}
	default:
		if FormatTypeTag(m.Tag) == "UNKNOWN" {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_UNKNOWN_TAG,
				Message: fmt.Sprintf("unrecognized type tag 0x%02X", m.Tag),
				Details: map[string]interface{}{"tag": m.Tag},
			})
		}
	}

	return errors
}
