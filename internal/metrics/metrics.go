// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package metrics exposes receiver activity as Prometheus collectors.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

// Collector holds all Prometheus metric collectors for the receive pipeline
type Collector struct {
	// Pipeline throughput
	samplesTotal prometheus.Counter // Brightness samples processed
	bitsTotal    prometheus.Counter // Thresholded bits appended to the buffer
	framesTotal  prometheus.Counter // Frames decoded with a valid CRC

	// Delivery metrics (with 'type' label)
	messagesTotal *prometheus.CounterVec // Messages delivered, by type tag

	// Error metrics
	decodeErrorsTotal *prometheus.CounterVec // Decode failures (by kind: checksum, framing, parity, payload)
	truncationsTotal  prometheus.Counter     // Bit buffer cap truncations
	groupsExpired     prometheus.Counter     // Chunk groups dropped by TTL expiry

	// FEC metrics
	fecShardsCorrected prometheus.Counter // Shards repaired by Reed-Solomon decode
	fecFailures        prometheus.Counter // FEC decodes that could not recover

	// Reassembly metrics
	chunksTotal   prometheus.Counter // Chunk envelopes accepted into pending groups
	pendingGroups prometheus.Gauge   // Chunk groups currently awaiting reassembly

	// Receiver status
	receiverState  prometheus.Gauge // Current lifecycle state (see State constants)
	thresholdLevel prometheus.Gauge // Active brightness threshold (0-255)

	// Delivery latency and size
	messageSize     prometheus.Histogram // Delivered payload size in bytes
	messageDuration prometheus.Histogram // Start marker to delivery in seconds

	// Counter baselines from the last Sync. The receiver's statistics are
	// cumulative, so each Sync adds only the delta since the previous one.
	last luxwire.Statistics
}

// NewCollector creates and registers all Prometheus metrics
func NewCollector() *Collector {
	return &Collector{
		samplesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_samples_total",
			Help: "Brightness samples processed by the receiver",
		}),
		bitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_bits_total",
			Help: "Thresholded bits appended to the receive buffer",
		}),
		framesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_frames_total",
			Help: "Frames decoded with a valid checksum",
		}),
		messagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luxcast_messages_total",
				Help: "Messages delivered to the application",
			},
			[]string{"type"},
		),
		decodeErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "luxcast_decode_errors_total",
				Help: "Decode failures by kind",
			},
			[]string{"kind"},
		),
		truncationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_buffer_truncations_total",
			Help: "Bit buffer truncations after hitting the capacity limit",
		}),
		groupsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_chunk_groups_expired_total",
			Help: "Chunk groups dropped after the reassembly TTL",
		}),
		fecShardsCorrected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_fec_shards_corrected_total",
			Help: "Payload shards repaired by forward error correction",
		}),
		fecFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_fec_failures_total",
			Help: "Forward error correction decodes that could not recover",
		}),
		chunksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "luxcast_chunks_total",
			Help: "Chunk envelopes accepted into pending reassembly groups",
		}),
		pendingGroups: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "luxcast_pending_groups",
			Help: "Chunk groups currently awaiting reassembly",
		}),
		receiverState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "luxcast_receiver_state",
			Help: "Receiver lifecycle state (0=idle, 1=calibrating, 2=waiting, 3=receiving, 4=end, 5=parity, 6=success, 7=error)",
		}),
		thresholdLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "luxcast_threshold_level",
			Help: "Active brightness threshold separating on from off",
		}),
		messageSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "luxcast_message_size_bytes",
			Help:    "Delivered payload size in bytes",
			Buckets: prometheus.ExponentialBuckets(8, 2, 12),
		}),
		messageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "luxcast_message_duration_seconds",
			Help:    "Time from start marker to message delivery",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

// RecordMessage records a delivered message's type, size, and latency
func (c *Collector) RecordMessage(msg *luxwire.Message) {
	if c == nil {
		return
	}
	c.messagesTotal.WithLabelValues(msg.Type).Inc()
	c.messageSize.Observe(float64(msg.Size))
	c.messageDuration.Observe(msg.Duration.Seconds())
}

// Sync publishes the receiver's cumulative statistics, adding the delta
// since the previous Sync. Must be called from the goroutine driving the
// receiver; a statistics reset rebases the baselines.
func (c *Collector) Sync(r *luxwire.Receiver) {
	if c == nil {
		return
	}

	stats := r.Stats()
	addDelta(c.samplesTotal, stats.SamplesProcessed, &c.last.SamplesProcessed)
	addDelta(c.bitsTotal, stats.BitsReceived, &c.last.BitsReceived)
	addDelta(c.framesTotal, stats.FramesDecoded, &c.last.FramesDecoded)
	addDelta(c.decodeErrorsTotal.WithLabelValues("checksum"), stats.ChecksumErrors, &c.last.ChecksumErrors)
	addDelta(c.decodeErrorsTotal.WithLabelValues("framing"), stats.FramingErrors, &c.last.FramingErrors)
	addDelta(c.decodeErrorsTotal.WithLabelValues("parity"), stats.ParityErrors, &c.last.ParityErrors)
	addDelta(c.decodeErrorsTotal.WithLabelValues("payload"), stats.PayloadErrors, &c.last.PayloadErrors)
	addDelta(c.truncationsTotal, stats.BufferTruncations, &c.last.BufferTruncations)
	addDelta(c.groupsExpired, stats.GroupsExpired, &c.last.GroupsExpired)
	addDelta(c.fecShardsCorrected, stats.FECShardsCorrected, &c.last.FECShardsCorrected)
	addDelta(c.fecFailures, stats.FECFailures, &c.last.FECFailures)
	addDelta(c.chunksTotal, stats.ChunksReceived, &c.last.ChunksReceived)

	c.receiverState.Set(float64(r.State()))
	c.thresholdLevel.Set(float64(r.Threshold()))
	c.pendingGroups.Set(float64(r.PendingGroups()))
}

// addDelta adds the counter movement since the last baseline and advances
// the baseline. A current value below the baseline means the statistics
// were reset, so the baseline rebases without a negative add.
func addDelta(counter prometheus.Counter, current uint64, last *uint64) {
	if current < *last {
		*last = current
		return
	}
	counter.Add(float64(current - *last))
	*last = current
}

// Serve exposes the /metrics endpoint. It blocks, so callers run it on its
// own goroutine.
func Serve(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("metrics: serving on http://%s/metrics", listen)
	return http.ListenAndServe(listen, mux)
}
