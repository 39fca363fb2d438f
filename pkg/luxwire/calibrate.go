// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ThresholdFunc derives a bit decision boundary from raw brightness samples.
type ThresholdFunc func(samples []float64) uint8

// MidpointThreshold returns the midpoint between the darkest and brightest
// sample, the canonical strategy.
func MidpointThreshold(samples []float64) uint8 {
	return uint8((floats.Min(samples) + floats.Max(samples)) / 2)
}

// MeanThreshold returns the arithmetic mean of the samples. More stable than
// the midpoint when the sample set contains isolated glints.
func MeanThreshold(samples []float64) uint8 {
	return uint8(math.Round(stat.Mean(samples, nil)))
}

// Threshold is the calibration result: the decision boundary plus the sample
// distribution it was derived from, kept for diagnostics.
type Threshold struct {
	Value   uint8
	Min     uint8
	Max     uint8
	Mean    float64
	StdDev  float64
	Samples int
}

// Calibrator collects ambient brightness samples between Start and Finish
// and converts them into a Threshold.
type Calibrator struct {
	active   bool
	samples  []float64
	strategy ThresholdFunc
}

// CalibratorOption configures a Calibrator.
type CalibratorOption func(*Calibrator)

// WithStrategy overrides the threshold computation.
func WithStrategy(fn ThresholdFunc) CalibratorOption {
	return func(c *Calibrator) { c.strategy = fn }
}

// NewCalibrator creates a calibrator using the midpoint strategy.
func NewCalibrator(opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{strategy: MidpointThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start clears the sample buffer and begins collecting.
func (c *Calibrator) Start() {
	c.active = true
	c.samples = c.samples[:0]
}

// AddSample appends one raw 0-255 brightness reading. Samples are only
// accepted between Start and Finish.
func (c *Calibrator) AddSample(brightness uint8) error {
	if !c.active {
		return ErrNotCalibrating
	}
	c.samples = append(c.samples, float64(brightness))
	return nil
}

// Finish computes the threshold from the accumulated samples and stops
// collecting. Finishing with zero samples returns ErrInsufficientSamples and
// leaves the calibrator collecting, so the caller can never silently keep a
// stale threshold.
func (c *Calibrator) Finish() (Threshold, error) {
	if !c.active {
		return Threshold{}, ErrNotCalibrating
	}
	if len(c.samples) == 0 {
		return Threshold{}, ErrInsufficientSamples
	}
	c.active = false

	mean, std := stat.MeanStdDev(c.samples, nil)
	if len(c.samples) < 2 {
		std = 0
	}
	return Threshold{
		Value:   c.strategy(c.samples),
		Min:     uint8(floats.Min(c.samples)),
		Max:     uint8(floats.Max(c.samples)),
		Mean:    mean,
		StdDev:  std,
		Samples: len(c.samples),
	}, nil
}

// Active reports whether the calibrator is collecting samples.
func (c *Calibrator) Active() bool {
	return c.active
}

// Count returns the number of samples collected so far.
func (c *Calibrator) Count() int {
	return len(c.samples)
}
