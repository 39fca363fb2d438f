// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

var probeTimeout int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the feed by waiting for one valid message",
	Long: `Wait for a valid message on the sample feed until timeout.

This command opens the configured feed and runs samples through the
receiver until one complete message decodes. Decode errors along the
way are counted but not fatal.

Exit codes:
  0 - Message received before timeout
  1 - Timeout reached without a valid message
  2 - Feed error

Useful for checking sensor aim, threshold, and bit period against a
live transmitter.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a message")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}

	f, source, err := openFeed(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Feed error: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()

	fmt.Printf("Luxcast - Feed Probe\n")
	fmt.Printf("Feed: %s\n", source)
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for a valid message...\n\n")

	rx := luxwire.NewReceiver(cfg.ReceiverOptions()...)
	buf := make([]byte, 128)

	msgChan := make(chan *luxwire.Message, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		decodeErrors := 0
		for {
			n, err := f.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for i := 0; i < n; i++ {
				msg, decodeErr := rx.ProcessSample(buf[i])
				if decodeErr != nil {
					decodeErrors++
					continue
				}
				if msg != nil {
					if decodeErrors > 0 {
						fmt.Printf("(%d decode errors before first message)\n", decodeErrors)
					}
					msgChan <- msg
					return
				}
			}
		}
	}()

	// Wait for message or timeout
	select {
	case msg := <-msgChan:
		fmt.Printf("SUCCESS: Received valid message\n")
		fmt.Printf("  Type:     %s (0x%02X)\n", msg.Type, msg.Tag)
		fmt.Printf("  Size:     %d bytes\n", msg.Size)
		fmt.Printf("  Duration: %.1fs\n", msg.Duration.Seconds())
		fmt.Printf("  Preview:  %s\n", luxwire.FormatPayloadPreview(msg.Data))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid message received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
