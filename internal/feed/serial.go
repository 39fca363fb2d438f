// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package feed

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialFeed wraps a serial port carrying one brightness byte per sample.
// Write drives a serial flasher: the send path emits one '0' or '1' byte
// per bit period.
type SerialFeed struct {
	port serial.Port
}

// OpenSerial opens a serial sampler connection
func OpenSerial(portName string, baudRate int) (*SerialFeed, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}

	return &SerialFeed{port: port}, nil
}

func (s *SerialFeed) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialFeed) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialFeed) Close() error {
	return s.port.Close()
}
