// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

const defaultCalibrationSamples = 200

var (
	calibSamples  int
	calibStrategy string
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure a bit decision threshold from live samples",
	Long: `Collect brightness samples from the feed and derive a threshold.

Point the sensor at the transmitting display and have it alternate
between full on and full off while this runs; the calibrator measures
the observed brightness range and derives the decision boundary.

Strategies:
  midpoint  Halfway between the darkest and brightest sample (default)
  mean      Arithmetic mean of all samples, more stable under noise

Copy the measured value into the receive.threshold config key, or run
receive with --calibrate to measure it on startup instead.`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().IntVar(&calibSamples, "samples", defaultCalibrationSamples, "Number of samples to collect")
	calibrateCmd.Flags().StringVar(&calibStrategy, "strategy", "midpoint", "Threshold strategy: midpoint, mean")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var strategy luxwire.ThresholdFunc
	switch calibStrategy {
	case "midpoint":
		strategy = luxwire.MidpointThreshold
	case "mean":
		strategy = luxwire.MeanThreshold
	default:
		return fmt.Errorf("unknown strategy: %s (use midpoint or mean)", calibStrategy)
	}

	f, source, err := openFeed(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("Luxcast - Threshold Calibration\n")
	fmt.Printf("Feed: %s\n", source)
	fmt.Printf("Collecting %d samples...\n\n", calibSamples)

	cal := luxwire.NewCalibrator(luxwire.WithStrategy(strategy))
	cal.Start()

	buf := make([]byte, 64)
	for cal.Count() < calibSamples {
		want := calibSamples - cal.Count()
		if want > len(buf) {
			want = len(buf)
		}
		n, err := f.Read(buf[:want])
		if err != nil {
			return fmt.Errorf("feed read failed after %d samples: %w", cal.Count(), err)
		}
		for _, b := range buf[:n] {
			if err := cal.AddSample(b); err != nil {
				return err
			}
		}
	}

	th, err := cal.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("Threshold: %d\n", th.Value)
	fmt.Printf("  Range:   %d - %d\n", th.Min, th.Max)
	fmt.Printf("  Mean:    %.1f\n", th.Mean)
	fmt.Printf("  StdDev:  %.1f\n", th.StdDev)
	fmt.Printf("  Samples: %d\n", th.Samples)
	return nil
}
