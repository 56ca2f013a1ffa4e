// Package streams implements the stream manager: it opens, tracks, and
// closes bidirectional and unidirectional streams, enforces
// peer-imposed and locally-advertised stream limits, and maintains the
// auxiliary per-stream bookkeeping (priority, head-of-line blocking,
// app-idle) the connection core consults when scheduling writes.
//
// It knows nothing about the bytes a stream carries; buffering and framing
// belong to the codec collaborator.
package streams

import (
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// SendState is the state of a stream's send half (RFC 9000 §3.1).
type SendState uint8

const (
	SendStateOpen SendState = iota
	SendStateDataSent
	SendStateResetSent
	SendStateDataRecvd
	SendStateResetRecvd
)

// Terminal reports whether the peer has acknowledged either the data or the
// reset; once terminal the send half can never re-enter a prior state.
func (s SendState) Terminal() bool {
	return s == SendStateDataRecvd || s == SendStateResetRecvd
}

// ReceiveState is the state of a stream's receive half (RFC 9000 §3.2).
type ReceiveState uint8

const (
	ReceiveStateRecv ReceiveState = iota
	ReceiveStateSizeKnown
	ReceiveStateDataRecvd
	ReceiveStateDataRead
	ReceiveStateResetRecvd
	ReceiveStateResetRead
)

func (s ReceiveState) Terminal() bool {
	return s == ReceiveStateDataRead || s == ReceiveStateResetRead
}

// DefaultMaxPriorityLevel is the lowest-precedence priority level a stream
// may be assigned; lower numeric levels sort ahead of it.
const DefaultMaxPriorityLevel = 7

// Priority is a stream's scheduling weight: level sorts streams (lower
// value drains first), incremental lets round-robin fairness apply among
// streams that share a level.
type Priority struct {
	Level       int
	Incremental bool
}

func DefaultPriority() Priority { return Priority{Level: DefaultMaxPriorityLevel} }

// holBlockedLatch tracks the time a stream's readable state has spent
// waiting behind a gap in its receive buffer.
type holBlockedLatch struct {
	blockedSince time.Time
	cumulative   time.Duration
	count        int
}

// update recomputes the latch after a change to the stream's readable
// state. hasGap reports whether the read cursor is stalled behind missing
// bytes; when it isn't (no buffered data, or the read offset already sits
// at the front of the buffer) any open latch is closed out.
func (h *holBlockedLatch) update(hasGap bool, now time.Time) {
	if !hasGap {
		if !h.blockedSince.IsZero() {
			h.cumulative += now.Sub(h.blockedSince)
			h.blockedSince = time.Time{}
		}
		return
	}
	if h.blockedSince.IsZero() {
		h.blockedSince = now
		h.count++
	}
}

func (h *holBlockedLatch) cumulativeBlocked(now time.Time) time.Duration {
	if h.blockedSince.IsZero() {
		return h.cumulative
	}
	return h.cumulative + now.Sub(h.blockedSince)
}

func (h *holBlockedLatch) blockCount() int { return h.count }

// State is a stream's lazily-allocated record. Its existence in the
// Manager's open-stream set is authoritative; the record itself may not
// exist yet.
type State struct {
	ID protocol.StreamID

	Send    SendState
	Receive ReceiveState

	Priority Priority

	// IsControl marks streams the congestion controller should ignore when
	// deciding whether the connection is app-idle.
	IsControl bool

	hol    holBlockedLatch
	ranges *receivedRanges

	ReadErr  error
	WriteErr error
}

// RecordReceivedRange folds a newly-arrived byte range [start, end) into
// this stream's reassembly state and updates its head-of-line-blocked
// latch from whatever gap remains before the highest offset seen so far.
func (s *State) RecordReceivedRange(start, end protocol.ByteCount, now time.Time) {
	if s.ranges == nil {
		s.ranges = newReceivedRanges()
	}
	s.ranges.add(start, end)
	s.UpdateHOLBlocked(s.ranges.hasGap(), now)
}

// Terminal reports whether both halves have reached a terminal state, the
// point at which the stream is eligible for removal from every index.
func (s *State) Terminal() bool {
	return s.Send.Terminal() && s.Receive.Terminal()
}

// UpdateHOLBlocked recomputes the stream's head-of-line-blocked accounting
// after its readable state advances.
func (s *State) UpdateHOLBlocked(hasGap bool, now time.Time) { s.hol.update(hasGap, now) }

func (s *State) CumulativeHOLBlocked(now time.Time) time.Duration { return s.hol.cumulativeBlocked(now) }

func (s *State) HOLBlockCount() int { return s.hol.blockCount() }
