// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxcast/luxcast/internal/feed"
	"github.com/luxcast/luxcast/internal/metrics"
	"github.com/luxcast/luxcast/internal/sink"
	"github.com/luxcast/luxcast/internal/store"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

var (
	statsInterval    int
	showErrors       bool
	calibrateOnStart bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive and decode messages from a sample feed",
	Long: `Decode flash-encoded messages from a brightness sample feed.

Each sample is thresholded into a bit and run through the receive state
machine. Decoded messages are printed as they complete and fanned out to
the configured sinks (message store, MQTT). Decode errors are counted in
the statistics; use --show-errors to also print them as they happen.

Periodic statistics summaries are displayed at configurable intervals,
and a final summary is printed on exit. A file feed ends the session at
EOF; live feeds run until Ctrl+C.`,
	RunE: runReceive,
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	receiveCmd.Flags().BoolVar(&showErrors, "show-errors", false, "Print decode errors as they happen")
	receiveCmd.Flags().BoolVar(&calibrateOnStart, "calibrate", false, "Calibrate the threshold before receiving")
}

func runReceive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, source, err := openFeed(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	rx := luxwire.NewReceiver(cfg.ReceiverOptions()...)

	fmt.Printf("Luxcast - Receive Mode\n")
	fmt.Printf("Feed: %s\n", source)
	fmt.Printf("Mode: %s, threshold: %d\n", cfg.Receive.Mode, rx.Threshold())
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)

	var sinks []sink.Sink
	if cfg.Store.Enabled {
		db, err := store.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open message store: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, sink.NewStoreSink(db))
		fmt.Printf("Store: %s\n", cfg.Store.Path)
	}

	mq, err := sink.NewMQTTSink(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("MQTT connection failed: %w", err)
	}
	if mq != nil {
		defer mq.Close()
		sinks = append(sinks, mq)
	}

	dispatcher := sink.NewDispatcher(sinks...)
	defer dispatcher.Close()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
		fmt.Printf("Metrics: http://%s/metrics\n", cfg.Metrics.Listen)
	}

	fmt.Printf("Press Ctrl+C to exit\n\n")

	if calibrateOnStart || cfg.Receive.AutoCalibrate {
		th, err := calibrateFromFeed(rx, f, defaultCalibrationSamples)
		if err != nil {
			return fmt.Errorf("calibration failed: %w", err)
		}
		fmt.Printf("Calibrated: threshold=%d (range %d-%d, mean %.1f, stddev %.1f)\n\n",
			th.Value, th.Min, th.Max, th.Mean, th.StdDev)
	}

	// Channel for non-blocking feed reads. The reader goroutine closes it
	// when the feed ends, which finishes the session cleanly.
	samples := make(chan []byte, 10)
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := f.Read(buf)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, feed.ErrFeedClosed) {
					close(samples)
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			samples <- data
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case data, ok := <-samples:
			if !ok {
				printFinalStats(rx)
				return nil
			}
			for _, b := range data {
				msg, err := rx.ProcessSample(b)
				if err != nil {
					if showErrors {
						printDecodeError(err)
					}
					continue
				}
				if msg == nil {
					continue
				}
				fmt.Println(luxwire.FormatMessage(msg))
				dispatcher.Dispatch(msg)
				collector.RecordMessage(msg)
			}
			collector.Sync(rx)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(rx.Stats().String())
			fmt.Println()

		case <-sigChan:
			fmt.Println()
			printFinalStats(rx)
			return nil
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
}

func printFinalStats(rx *luxwire.Receiver) {
	fmt.Printf("--- Final Statistics ---\n")
	fmt.Print(rx.Stats().String())
}

// calibrateFromFeed feeds n samples into the receiver's calibrator and
// derives the threshold from them.
func calibrateFromFeed(rx *luxwire.Receiver, f feed.Feed, n int) (luxwire.Threshold, error) {
	rx.StartCalibration()
	buf := make([]byte, 64)
	fed := 0
	for fed < n {
		want := n - fed
		if want > len(buf) {
			want = len(buf)
		}
		got, err := f.Read(buf[:want])
		if err != nil {
			return luxwire.Threshold{}, err
		}
		for _, b := range buf[:got] {
			if _, err := rx.ProcessSample(b); err != nil {
				return luxwire.Threshold{}, err
			}
		}
		fed += got
	}
	return rx.FinishCalibration()
}
