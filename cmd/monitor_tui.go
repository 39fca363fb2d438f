// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luxcast/luxcast/pkg/luxwire"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// msgItem adapts a decoded message for the message list.
type msgItem struct {
	msg *luxwire.Message
}

func (i msgItem) Title() string {
	return fmt.Sprintf("%s  %d bytes", i.msg.Type, i.msg.Size)
}

func (i msgItem) Description() string {
	return fmt.Sprintf("%s  %s", i.msg.Timestamp.Format("15:04:05"), luxwire.FormatPayloadPreview(i.msg.Data))
}

func (i msgItem) FilterValue() string { return i.msg.Type }

// TUI model
type model struct {
	source    string
	mode      string
	bitPeriod time.Duration

	snapshot      *receiverSnapshot
	messages      []*luxwire.Message
	maxMessages   int
	msgList       list.Model
	eventLog      []logEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

// Messages
type tickMsg time.Time

func initialModel(source, mode string, bitPeriod time.Duration) model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	msgList := list.New([]list.Item{}, delegate, 42, 12)
	msgList.Title = "Messages"
	msgList.SetShowStatusBar(false)
	msgList.SetShowHelp(false)
	msgList.SetFilteringEnabled(false)

	return model{
		source:        source,
		mode:          mode,
		bitPeriod:     bitPeriod,
		messages:      make([]*luxwire.Message, 0),
		maxMessages:   50,
		msgList:       msgList,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k", "down", "j", "pgup", "pgdown":
			var cmd tea.Cmd
			m.msgList, cmd = m.msgList.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tickMsg:
		return m, tickCmd()

	case monitorBatchMsg:
		if msg.snapshot != nil {
			m.snapshot = msg.snapshot
		}
		for _, w := range msg.warnings {
			m.addLogEntry(w, false)
		}
		for _, ev := range msg.events {
			if ev.decodeErr != nil {
				m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)
			} else if ev.msg != nil {
				m.addLogEntry(fmt.Sprintf("%s message, %d bytes", ev.msg.Type, ev.msg.Size), false)
				m.addMessage(ev.msg)
			}
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// addMessage records a delivered message and rebuilds the list, newest
// first.
func (m *model) addMessage(msg *luxwire.Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > m.maxMessages {
		m.messages = m.messages[len(m.messages)-m.maxMessages:]
	}

	items := make([]list.Item, len(m.messages))
	for i, mg := range m.messages {
		items[len(m.messages)-1-i] = msgItem{msg: mg}
	}
	m.msgList.SetItems(items)
}

func (m *model) updateListSize() {
	listHeight := m.height - 18
	if listHeight < 6 {
		listHeight = 6
	}
	m.msgList.SetSize(42, listHeight)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("LUXCAST - RECEIVER MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Feed: %s | Mode: %s | Bit period: %v | Press 'q' to quit",
		m.source, m.mode, m.bitPeriod)))
	s.WriteString("\n\n")

	if m.snapshot == nil {
		s.WriteString(warningStyle.Render("⏳ Waiting for samples..."))
		s.WriteString("\n")
		return s.String()
	}
	snap := m.snapshot

	// Receiver state
	stateStyle := headerStyle
	switch snap.state {
	case luxwire.StateWaitingForStart, luxwire.StateCalibrating:
		stateStyle = warningStyle
	case luxwire.StateReceiving, luxwire.StateSuccess:
		stateStyle = statsValueStyle
	case luxwire.StateError:
		stateStyle = errorStyle
	}

	recvContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("State:"), stateStyle.Render(snap.state.String()),
		statsLabelStyle.Render("Threshold:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.threshold)),
		statsLabelStyle.Render("Last sample:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.lastSample)),
		statsLabelStyle.Render("Pending groups:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.pending)),
	)
	s.WriteString(boxStyle.Render(recvContent))
	s.WriteString("\n\n")

	// Statistics
	stats := snap.stats
	stats.CalculateRates()

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Samples:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.SamplesProcessed)),
		statsLabelStyle.Render("Bits:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.BitsReceived)),
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.FramesDecoded)),
		statsLabelStyle.Render("Messages:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.MessagesDelivered)),
	))

	errorCount := stats.ChecksumErrors + stats.FramingErrors + stats.ParityErrors + stats.PayloadErrors
	if errorCount > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", errorCount)),
			headerStyle.Render("checksum"), stats.ChecksumErrors,
			headerStyle.Render("framing"), stats.FramingErrors,
			headerStyle.Render("parity"), stats.ParityErrors,
			headerStyle.Render("payload"), stats.PayloadErrors,
		))
	}

	if stats.ChunksReceived > 0 || stats.GroupsExpired > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Chunks:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.ChunksReceived)),
			statsLabelStyle.Render("Expired groups:"), warningStyle.Render(fmt.Sprintf("%d", stats.GroupsExpired)),
		))
	}

	if stats.FECShardsCorrected > 0 || stats.FECFailures > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("FEC corrected:"), warningStyle.Render(fmt.Sprintf("%d shards", stats.FECShardsCorrected)),
			statsLabelStyle.Render("FEC failures:"), errorStyle.Render(fmt.Sprintf("%d", stats.FECFailures)),
		))
	}

	if len(stats.MessagesByType) > 0 {
		types := make([]string, 0, len(stats.MessagesByType))
		for t := range stats.MessagesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		parts := make([]string, len(types))
		for i, t := range types {
			parts[i] = fmt.Sprintf("%s %d", headerStyle.Render(t+":"), stats.MessagesByType[t])
		}
		statsContent.WriteString(statsLabelStyle.Render("By type:"))
		statsContent.WriteString(" " + strings.Join(parts, "   ") + "\n")
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Bit Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f bits/s", stats.BitRate)),
		statsLabelStyle.Render("Error Rate:"), func() string {
			if stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
			}
			return statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Layout: left panel (messages) | right panel (event log)
	leftWidth := 46
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 24 {
		rightWidth = 24
	}

	msgPanel := boxStyle.Width(leftWidth).Render(m.msgList.View())
	logPanel := boxStyle.Width(rightWidth).Render(m.renderEventLog(statsLabelStyle, headerStyle, errorStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, msgPanel, " ", logPanel))

	return s.String()
}

func (m model) renderEventLog(statsLabelStyle, headerStyle, errorStyle, warningStyle lipgloss.Style) string {
	logHeight := m.height - 18
	if logHeight < 6 {
		logHeight = 6
	}

	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("Recent Events"))
	s.WriteString("\n")

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("(no events yet)"))
		return s.String()
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				errorStyle.Render("✗ "+entry.message),
			))
		} else {
			s.WriteString(fmt.Sprintf("%s %s\n",
				headerStyle.Render(timestamp),
				warningStyle.Render("ℹ "+entry.message),
			))
		}
	}

	return s.String()
}
