// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

// Package sink fans decoded messages out to their consumers: the message
// store, the MQTT bus, and the backend envelope router.
package sink

import (
	"log"
	"sync/atomic"

	"github.com/luxcast/luxcast/internal/store"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

// Sink consumes decoded messages delivered off the sampling loop.
type Sink interface {
	Name() string
	Deliver(msg *luxwire.Message) error
}

// queueSize bounds the dispatch queue. The sampling loop never blocks on a
// slow sink; overflow drops the message and counts it.
const queueSize = 64

// Dispatcher hands decoded messages from the sampling loop to the
// registered sinks on its own goroutine.
type Dispatcher struct {
	sinks   []Sink
	queue   chan *luxwire.Message
	done    chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher delivering to the given sinks in order.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		sinks: sinks,
		queue: make(chan *luxwire.Message, queueSize),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		for _, s := range d.sinks {
			if err := s.Deliver(msg); err != nil {
				log.Printf("sink: %s delivery failed: %v", s.Name(), err)
			}
		}
	}
}

// Dispatch queues a decoded message for delivery. It never blocks: when the
// queue is full the message is dropped and counted.
func (d *Dispatcher) Dispatch(msg *luxwire.Message) {
	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
	}
}

// Dropped reports how many messages overflowed the dispatch queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close drains the queue and stops the delivery goroutine.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

// StoreSink adapts the message store to the sink interface. Save is
// non-blocking, so delivery cost is one channel send.
type StoreSink struct {
	db *store.Store
}

// NewStoreSink wraps a message store as a sink.
func NewStoreSink(db *store.Store) *StoreSink {
	return &StoreSink{db: db}
}

// Name identifies the sink in delivery logs.
func (s *StoreSink) Name() string { return "store" }

// Deliver queues the message for the store's writer goroutine.
func (s *StoreSink) Deliver(msg *luxwire.Message) error {
	s.db.Save(msg)
	return nil
}
