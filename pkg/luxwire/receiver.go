// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Luxcast Authors

package luxwire

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Mode selects the receiver's wire discipline.
type Mode int

const (
	// ModePacket decodes framed packets from a rolling bit buffer.
	ModePacket Mode = iota
	// ModeLegacy decodes the old 9-bit parity unit stream.
	ModeLegacy
)

// State enumerates the receiver lifecycle.
type State int

const (
	StateIdle State = iota
	StateCalibrating
	StateWaitingForStart
	StateReceiving
	StateEndDetected
	StateParityCheck
	StateSuccess
	StateError
)

// String returns the state's display name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCalibrating:
		return "CALIBRATING"
	case StateWaitingForStart:
		return "WAITING_FOR_START"
	case StateReceiving:
		return "RECEIVING"
	case StateEndDetected:
		return "END_DETECTED"
	case StateParityCheck:
		return "PARITY_CHECK"
	case StateSuccess:
		return "SUCCESS"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Message is one fully decoded transmission, after FEC, reassembly, and
// decompression. Transmission is the chunk group ID, or uuid.Nil for
// unchunked messages.
type Message struct {
	Type         string
	Tag          uint8
	Data         []byte
	Timestamp    time.Time
	Duration     time.Duration
	Size         int
	Transmission uuid.UUID
}

// receiverState is the tagged state representation: one variant per
// lifecycle state, each carrying exactly the data valid in that state.
type receiverState interface {
	state() State
}

type idleState struct{}

type calibratingState struct{ cal *Calibrator }

// packetWaitState holds bits not yet known to contain a start marker.
type packetWaitState struct{ buf Bits }

// packetReceiveState holds the rolling buffer once a start marker is inside.
type packetReceiveState struct {
	buf     Bits
	startAt time.Time
}

// legacyWaitState slides an 8-bit window across the stream hunting the
// start marker.
type legacyWaitState struct{ window Bits }

// legacyReceiveState accumulates message bits after the start marker.
type legacyReceiveState struct {
	buf     Bits
	startAt time.Time
}

// endDetectedState and parityCheckState are passed through while a legacy
// end marker is evaluated; they surface in the state history.
type endDetectedState struct {
	units   Bits
	startAt time.Time
}

type parityCheckState struct {
	units   Bits
	startAt time.Time
}

// successState and errorState are terminal for one message. Packet mode
// carries leftover buffer bits into the next message.
type successState struct{ buf Bits }

type errorState struct {
	buf Bits
	err error
}

func (idleState) state() State          { return StateIdle }
func (calibratingState) state() State   { return StateCalibrating }
func (packetWaitState) state() State    { return StateWaitingForStart }
func (packetReceiveState) state() State { return StateReceiving }
func (legacyWaitState) state() State    { return StateWaitingForStart }
func (legacyReceiveState) state() State { return StateReceiving }
func (endDetectedState) state() State   { return StateEndDetected }
func (parityCheckState) state() State   { return StateParityCheck }
func (successState) state() State       { return StateSuccess }
func (errorState) state() State         { return StateError }

// Receiver is one reception session: it converts brightness samples into
// bits, drives calibration, frame synchronization, and payload dispatch.
// A Receiver is single-threaded and is driven synchronously, one call per
// bit period, by an external sampling loop. It owns all of its buffers; use
// one Receiver per concurrent reception.
type Receiver struct {
	mode      Mode
	threshold uint8
	maxBuffer int
	fec       FEC
	asm       *Assembler
	stats     *Statistics
	st        receiverState
	history   []State
	lastErr   error
	logf      func(format string, args ...interface{})
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithMode selects packet or legacy decoding.
func WithMode(m Mode) ReceiverOption {
	return func(r *Receiver) { r.mode = m }
}

// WithThreshold sets the bit decision boundary up front, skipping
// calibration.
func WithThreshold(t uint8) ReceiverOption {
	return func(r *Receiver) { r.threshold = t }
}

// WithReceiverFEC replaces the FEC adapter used for flagged payloads.
func WithReceiverFEC(f FEC) ReceiverOption {
	return func(r *Receiver) { r.fec = f }
}

// WithGroupTTL sets the expiry for incomplete chunk groups.
func WithGroupTTL(ttl time.Duration) ReceiverOption {
	return func(r *Receiver) { r.asm = NewAssembler(ttl) }
}

// WithMaxBuffer overrides the bit buffer cap.
func WithMaxBuffer(bits int) ReceiverOption {
	return func(r *Receiver) {
		if bits > 0 {
			r.maxBuffer = bits
		}
	}
}

// WithLogFunc replaces the logger used for degraded-delivery warnings.
func WithLogFunc(fn func(format string, args ...interface{})) ReceiverOption {
	return func(r *Receiver) { r.logf = fn }
}

// NewReceiver creates a receiver in the idle state.
func NewReceiver(opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		mode:      ModePacket,
		threshold: DefaultThreshold,
		maxBuffer: DefaultMaxBuffer,
		fec:       DefaultFEC(),
		asm:       NewAssembler(DefaultGroupTTL),
		stats:     NewStatistics(),
		st:        idleState{},
		history:   []State{StateIdle},
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current lifecycle state.
func (r *Receiver) State() State {
	return r.st.state()
}

// History returns the recent state transitions, oldest first.
func (r *Receiver) History() []State {
	out := make([]State, len(r.history))
	copy(out, r.history)
	return out
}

// Threshold returns the current bit decision boundary.
func (r *Receiver) Threshold() uint8 {
	return r.threshold
}

// Stats returns the receiver's statistics tracker.
func (r *Receiver) Stats() *Statistics {
	return r.stats
}

// PendingGroups returns the number of incomplete chunk groups.
func (r *Receiver) PendingGroups() int {
	return r.asm.Pending()
}

// LastError returns the most recent message-fatal error.
func (r *Receiver) LastError() error {
	return r.lastErr
}

// Reset clears all buffers and pending chunk groups and returns the session
// to idle. Safe to call from any state.
func (r *Receiver) Reset() {
	r.st = idleState{}
	r.history = []State{StateIdle}
	r.lastErr = nil
	r.asm.Reset()
}

// StartCalibration clears collected samples and enters the calibrating
// state. Safe from any state; an in-progress message is abandoned.
func (r *Receiver) StartCalibration() {
	cal := NewCalibrator()
	cal.Start()
	r.transition(calibratingState{cal: cal})
}

// FinishCalibration derives the threshold from the collected samples and
// enters the waiting state. With zero samples it returns
// ErrInsufficientSamples and stays calibrating.
func (r *Receiver) FinishCalibration() (Threshold, error) {
	cs, ok := r.st.(calibratingState)
	if !ok {
		return Threshold{}, ErrNotCalibrating
	}
	th, err := cs.cal.Finish()
	if err != nil {
		return Threshold{}, err
	}
	r.threshold = th.Value
	r.transition(r.waitState(nil))
	return th, nil
}

// ProcessSample consumes one brightness sample. While calibrating, the
// sample feeds the calibrator; otherwise it is thresholded into a bit and
// processed. Returns a message when the sample completes one.
func (r *Receiver) ProcessSample(brightness uint8) (*Message, error) {
	r.stats.RecordSample()
	if cs, ok := r.st.(calibratingState); ok {
		return nil, cs.cal.AddSample(brightness)
	}
	var bit uint8
	if brightness > r.threshold {
		bit = 1
	}
	return r.ProcessBit(bit)
}

// ProcessBit consumes one pre-thresholded bit. Returns a message when the
// bit completes one; message-fatal decode failures are returned as errors
// while the session keeps scanning.
func (r *Receiver) ProcessBit(bit uint8) (*Message, error) {
	if _, ok := r.st.(calibratingState); ok {
		return nil, ErrCalibrating
	}
	r.stats.RecordBit()
	r.rollForward()

	if r.mode == ModeLegacy {
		return r.processLegacy(bit & 1)
	}
	return r.processPacket(bit & 1)
}

// rollForward moves out of idle and terminal states on the next input:
// success and error are terminal for one message only, the session then
// returns to waiting for the next start marker.
func (r *Receiver) rollForward() {
	switch st := r.st.(type) {
	case idleState:
		r.transition(r.waitState(nil))
	case successState:
		r.transition(r.waitState(st.buf))
	case errorState:
		r.transition(r.waitState(st.buf))
	}
}

// waitState builds the mode-appropriate waiting state around leftover bits.
func (r *Receiver) waitState(buf Bits) receiverState {
	if r.mode == ModeLegacy {
		return legacyWaitState{}
	}
	return packetWaitState{buf: buf}
}

// transition replaces the current state, recording the lifecycle change.
func (r *Receiver) transition(next receiverState) {
	cur := r.st.state()
	r.st = next
	if next.state() != cur {
		r.history = append(r.history, next.state())
		if len(r.history) > stateHistoryLimit {
			r.history = r.history[len(r.history)-stateHistoryLimit:]
		}
	}
}

// ============================================================
// Packet mode
// ============================================================

func (r *Receiver) processPacket(bit uint8) (*Message, error) {
	var buf Bits
	var startAt time.Time
	switch st := r.st.(type) {
	case packetWaitState:
		buf = st.buf
	case packetReceiveState:
		buf = st.buf
		startAt = st.startAt
	}

	buf = append(buf, bit)
	if len(buf) > r.maxBuffer {
		keep := len(buf) / 2
		buf = append(Bits(nil), buf[len(buf)-keep:]...)
		r.stats.RecordTruncation()
		startAt = time.Time{} // sync lost with the discarded prefix
	}
	if len(buf) < MinPacketBits {
		r.holdPacketBuf(buf, startAt)
		return nil, nil
	}

	pkt, consumed, err := DecodeBits(buf)
	switch {
	case err == nil:
		r.stats.RecordFrame(nil)
		rest := trimBits(buf, consumed)
		return r.dispatch(pkt, rest, startAt)

	case errors.Is(err, ErrStartNotFound):
		r.transition(packetWaitState{buf: trimBits(buf, consumed)})
		return nil, nil

	case errors.Is(err, ErrIncompleteFrame):
		if startAt.IsZero() {
			startAt = time.Now()
		}
		r.transition(packetReceiveState{buf: trimBits(buf, consumed), startAt: startAt})
		return nil, nil

	default:
		r.stats.RecordFrame(err)
		r.lastErr = err
		r.transition(errorState{buf: trimBits(buf, consumed), err: err})
		return nil, err
	}
}

// holdPacketBuf stores the buffer back into the current wait or receive
// state without rescanning.
func (r *Receiver) holdPacketBuf(buf Bits, startAt time.Time) {
	if startAt.IsZero() {
		r.transition(packetWaitState{buf: buf})
		return
	}
	r.transition(packetReceiveState{buf: buf, startAt: startAt})
}

// dispatch routes a validated packet through FEC, chunk reassembly, and
// decompression, and delivers the resulting message.
func (r *Receiver) dispatch(pkt *Packet, rest Bits, startAt time.Time) (*Message, error) {
	now := time.Now()
	if startAt.IsZero() {
		startAt = now
	}
	payload := pkt.Payload()
	tx := uuid.Nil

	if pkt.HasFlag(FlagFEC) {
		res := r.fec.Decode(payload)
		r.stats.RecordFEC(res)
		if !res.Success {
			r.logf("luxwire: FEC could not recover payload, passing through %d bytes uncorrected", len(res.Data))
		}
		payload = res.Data
	}

	var chunk Chunk
	isChunk := false
	if pkt.HasFlag(FlagChunked) {
		c, err := UnmarshalChunk(payload)
		if err != nil {
			r.stats.RecordPayloadError()
			r.lastErr = err
			r.transition(errorState{buf: rest, err: err})
			return nil, err
		}
		chunk, isChunk = c, true
	} else if c, ok := ParseLegacyChunk(payload); ok {
		chunk, isChunk = c, true
	}

	if isChunk {
		r.stats.RecordChunk()
		data, firstAt, done := r.asm.Add(chunk)
		r.stats.GroupsExpired = r.asm.Expired()
		if !done {
			r.transition(packetWaitState{buf: rest})
			return nil, nil
		}
		payload = data
		tx = chunk.Transmission
		if !firstAt.IsZero() && firstAt.Before(startAt) {
			startAt = firstAt
		}
	}

	if pkt.HasFlag(FlagCompressed) {
		data, err := inflate(payload)
		if err != nil {
			r.stats.RecordPayloadError()
			r.lastErr = err
			r.transition(errorState{buf: rest, err: err})
			return nil, err
		}
		payload = data
	}

	msg := &Message{
		Type:         FormatTypeTag(pkt.Tag()),
		Tag:          pkt.Tag(),
		Data:         payload,
		Timestamp:    now,
		Duration:     now.Sub(startAt),
		Size:         len(payload),
		Transmission: tx,
	}
	r.stats.RecordMessage(msg)
	r.transition(successState{buf: rest})
	return msg, nil
}

// ============================================================
// Legacy mode
// ============================================================

func (r *Receiver) processLegacy(bit uint8) (*Message, error) {
	switch st := r.st.(type) {
	case legacyWaitState:
		window := st.window
		if len(window) < markerBits {
			window = append(window, bit)
		} else {
			copy(window, window[1:])
			window[markerBits-1] = bit
		}
		if len(window) == markerBits && window.matchByte(0, StartMarker) {
			r.transition(legacyReceiveState{startAt: time.Now()})
			return nil, nil
		}
		r.transition(legacyWaitState{window: window})
		return nil, nil

	case legacyReceiveState:
		buf := append(st.buf, bit)
		if len(buf) > r.maxBuffer {
			// Legacy frames cannot resync mid-message, so a runaway
			// message is abandoned rather than truncated.
			err := fmt.Errorf("legacy message exceeded %d bits without an end marker", r.maxBuffer)
			r.stats.RecordTruncation()
			r.lastErr = err
			r.transition(errorState{err: err})
			return nil, err
		}
		if len(buf) >= markerBits &&
			(len(buf)-markerBits)%legacyUnitBits == 0 &&
			buf.matchByte(len(buf)-markerBits, EndMarker) {
			units := buf[:len(buf)-markerBits]
			r.transition(endDetectedState{units: units, startAt: st.startAt})
			return r.checkParity(units, st.startAt)
		}
		r.transition(legacyReceiveState{buf: buf, startAt: st.startAt})
		return nil, nil

	default:
		return nil, fmt.Errorf("unexpected legacy receiver state %s", r.st.state())
	}
}

// checkParity validates the 9-bit units of a completed legacy message.
func (r *Receiver) checkParity(units Bits, startAt time.Time) (*Message, error) {
	r.transition(parityCheckState{units: units, startAt: startAt})
	data, err := DecodeLegacyUnits(units)
	if err != nil {
		r.stats.RecordParityError()
		r.lastErr = err
		r.transition(errorState{err: err})
		return nil, err
	}
	now := time.Now()
	msg := &Message{
		Type:      FormatTypeTag(TagText),
		Tag:       TagText,
		Data:      data,
		Timestamp: now,
		Duration:  now.Sub(startAt),
		Size:      len(data),
	}
	r.stats.RecordMessage(msg)
	r.transition(successState{})
	return msg, nil
}

// trimBits drops the first n bits, copying so the retained tail does not
// pin the old backing array.
func trimBits(b Bits, n int) Bits {
	if n <= 0 {
		return b
	}
	if n >= len(b) {
		return nil
	}
	return append(Bits(nil), b[n:]...)
}
