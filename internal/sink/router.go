// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package sink

import "encoding/json"

// backendModes are the envelope channels recognized after decode. Payloads
// carrying one of these route to the backend topic tree instead of the
// message tree.
var backendModes = map[string]bool{
	"auth":    true,
	"config":  true,
	"command": true,
}

// BackendMode inspects a decoded payload for a backend envelope: a JSON
// object whose top-level "mode" field names a backend channel. Routing is
// the only responsibility here; the envelope body is never interpreted.
func BackendMode(data []byte) (string, bool) {
	if len(data) == 0 || data[0] != '{' {
		return "", false
	}

	var envelope struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", false
	}
	if !backendModes[envelope.Mode] {
		return "", false
	}
	return envelope.Mode, true
}
