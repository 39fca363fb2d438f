// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var feedTestCmd = &cobra.Command{
	Use:   "feed_test",
	Short: "Test raw sample feed stability",
	Long: `Read from the sample feed without decoding anything.

This command opens the configured feed and just waits, logging any
samples received or errors encountered. Useful for debugging feed
stability and sample rate issues before involving the receiver.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Feed error`,
	RunE: runFeedTest,
}

var feedTestDuration int

func init() {
	rootCmd.AddCommand(feedTestCmd)
	feedTestCmd.Flags().IntVar(&feedTestDuration, "duration", 30, "Test duration in seconds")
}

func runFeedTest(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Sample Feed Stability Test\n")
	fmt.Printf("Feed: %s\n", source)
	fmt.Printf("Duration: %d seconds\n\n", feedTestDuration)

	// Start a goroutine to read from the feed
	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := f.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	// Run for the specified duration
	endTime := time.Now().Add(time.Duration(feedTestDuration) * time.Second)
	bytesReceived := 0
	batchesReceived := 0

	fmt.Printf("Listening for samples...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			batchesReceived++
			fmt.Printf("[%s] Received %d samples: %x\n",
				time.Now().Format("15:04:05.000"), len(data), data)

		case err := <-errChan:
			fmt.Printf("\n[%s] Feed error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			fmt.Printf("\n--- Test Results ---\n")
			fmt.Printf("Duration: %v\n", time.Since(endTime.Add(-time.Duration(feedTestDuration)*time.Second)))
			fmt.Printf("Batches received: %d\n", batchesReceived)
			fmt.Printf("Samples received: %d\n", bytesReceived)
			fmt.Printf("Result: FAILED (feed error)\n")
			os.Exit(1)

		case <-time.After(1 * time.Second):
			// Just a heartbeat to show the test is running
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %d seconds\n", feedTestDuration)
	fmt.Printf("Batches received: %d\n", batchesReceived)
	fmt.Printf("Samples received: %d\n", bytesReceived)
	fmt.Printf("Result: PASSED (feed stable)\n")

	return nil
}
