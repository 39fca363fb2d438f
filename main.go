// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors
//
// Luxcast - Display-flash optical data link
//
// A CLI tool for sending data as timed brightness flashes on an ordinary
// display and decoding it back from a light sensor sample feed.

package main

import (
	"os"

	"github.com/luxcast/luxcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
