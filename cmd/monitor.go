// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/luxcast/luxcast/internal/feed"
	"github.com/luxcast/luxcast/pkg/luxwire"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live receiver dashboard",
	Long: `Watch the receiver decode a sample feed in a terminal dashboard.

The dashboard shows the receive state machine, the decision threshold,
pending chunk groups, running statistics, the most recent messages, and
an event log of decode errors and receiver warnings.

Press 'q' to quit. Scroll the message list with the arrow keys.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// monitorEvent is one decode outcome pushed to the dashboard.
type monitorEvent struct {
	msg       *luxwire.Message
	decodeErr error
}

// receiverSnapshot is a copy of the receiver's observable state, safe to
// hand across goroutines.
type receiverSnapshot struct {
	state      luxwire.State
	threshold  uint8
	pending    int
	lastSample uint8
	stats      luxwire.Statistics
}

// monitorBatchMsg carries everything that happened since the last refresh.
type monitorBatchMsg struct {
	snapshot *receiverSnapshot
	events   []monitorEvent
	warnings []string
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, source, err := openFeed(cfg)
	if err != nil {
		return err
	}
	defer f.Close()

	// Receiver warnings (expired chunk groups, degraded deliveries) go to
	// the event log instead of stderr, which the TUI owns.
	warnChan := make(chan string, 16)
	rxOpts := append(cfg.ReceiverOptions(), luxwire.WithLogFunc(func(format string, args ...interface{}) {
		select {
		case warnChan <- fmt.Sprintf(format, args...):
		default:
		}
	}))
	rx := luxwire.NewReceiver(rxOpts...)

	m := initialModel(source, cfg.Receive.Mode, cfg.BitPeriod())
	p := tea.NewProgram(m)

	// Buffered channel for batching updates
	eventChan := make(chan monitorEvent, 100)
	snapChan := make(chan receiverSnapshot, 1)
	done := make(chan struct{})

	// Reader goroutine - processes samples and sends outcomes to the batch
	// channel
	go func() {
		buf := make([]byte, 128)
		for {
			n, err := f.Read(buf)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, feed.ErrFeedClosed) {
					select {
					case warnChan <- "feed ended":
					default:
					}
				} else {
					select {
					case warnChan <- fmt.Sprintf("feed error: %v", err):
					default:
					}
				}
				return
			}

			for i := 0; i < n; i++ {
				msg, decodeErr := rx.ProcessSample(buf[i])
				if decodeErr != nil || msg != nil {
					select {
					case eventChan <- monitorEvent{msg: msg, decodeErr: decodeErr}:
					default:
					}
				}
			}
			if n > 0 {
				pushSnapshot(snapChan, rx, buf[n-1])
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to the TUI at a fixed
	// rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				var batch monitorBatchMsg

				// Grab the latest snapshot if one is waiting
				select {
				case snap := <-snapChan:
					batch.snapshot = &snap
				default:
				}

				// Drain all available events and warnings
			drainLoop:
				for {
					select {
					case ev := <-eventChan:
						batch.events = append(batch.events, ev)
					case w := <-warnChan:
						batch.warnings = append(batch.warnings, w)
					default:
						break drainLoop
					}
				}

				if batch.snapshot != nil || len(batch.events) > 0 || len(batch.warnings) > 0 {
					p.Send(batch)
				}
			}
		}
	}()

	_, runErr := p.Run()
	close(done)
	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// pushSnapshot publishes the latest receiver state, replacing any
// unconsumed snapshot. Single producer, so the retry cannot block.
func pushSnapshot(ch chan receiverSnapshot, rx *luxwire.Receiver, lastSample uint8) {
	snap := receiverSnapshot{
		state:      rx.State(),
		threshold:  rx.Threshold(),
		pending:    rx.PendingGroups(),
		lastSample: lastSample,
		stats:      snapshotStats(rx.Stats()),
	}
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// snapshotStats deep-copies the statistics so the dashboard can read them
// while the receiver keeps counting.
func snapshotStats(s *luxwire.Statistics) luxwire.Statistics {
	c := *s
	c.MessagesByType = make(map[string]uint64, len(s.MessagesByType))
	for k, v := range s.MessagesByType {
		c.MessagesByType[k] = v
	}
	return c
}
