// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Config file flag
	configPath string

	// Serial sampler flags
	portName string
	baudRate int

	// WebSocket sampler flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
	wsListen      string

	// File replay flag
	samplesFile string
)

var rootCmd = &cobra.Command{
	Use:   "luxcast",
	Short: "Display-flash optical data link",
	Long: `Luxcast - transmit and receive data over a flashing display.

A transmitter flashes a screen region between dark and bright; a sampler
reports one brightness reading per bit period, and the receiver finds frame
boundaries in the sample stream, checks integrity, and reassembles chunked
payloads into messages.

Sample feed modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/samples [--username user]  (dial a remote sampler)
             --listen :8089                             (serve browser samplers)
  File:      --file recording.txt                       (replay recorded samples)

For WebSocket authentication, the password is read from the LUXCAST_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history. Flags override the corresponding config file settings.`,
	Version: "1.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")

	// Serial sampler flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial sampler device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket sampler flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Remote sampler URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	rootCmd.PersistentFlags().StringVarP(&wsListen, "listen", "l", "", "Listen address for browser samplers")

	// File replay flag
	rootCmd.PersistentFlags().StringVarP(&samplesFile, "file", "f", "", "Recorded sample file to replay")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
