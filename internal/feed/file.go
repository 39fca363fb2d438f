// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package feed

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileFeed replays brightness samples recorded to a text file: one value
// per line, or several per line separated by commas or whitespace. Lines
// starting with '#' are comments.
type FileFeed struct {
	samples []byte
	offset  int
}

// OpenFile loads a recorded sample file
func OpenFile(path string) (*FileFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}

	samples, err := ParseSamples(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &FileFeed{samples: samples}, nil
}

// ParseSamples parses recorded sample text into raw sample bytes
func ParseSamples(text string) ([]byte, error) {
	var samples []byte
	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		for _, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid sample %q", lineNo+1, field)
			}
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("line %d: sample %d out of range", lineNo+1, v)
			}
			samples = append(samples, byte(v))
		}
	}
	return samples, nil
}

// Len returns the number of samples left to replay
func (f *FileFeed) Len() int {
	return len(f.samples) - f.offset
}

func (f *FileFeed) Read(p []byte) (int, error) {
	if f.offset >= len(f.samples) {
		return 0, io.EOF
	}
	n := copy(p, f.samples[f.offset:])
	f.offset += n
	return n, nil
}

func (f *FileFeed) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("file feed is read-only")
}

func (f *FileFeed) Close() error {
	return nil
}
