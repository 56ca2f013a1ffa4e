package streams

import (
	"context"
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// Limits carries the stream-count limits a Manager needs at construction:
// the two locally-advertised limits for peer-initiated streams. The two
// peer-advertised limits for local streams are filled in later via
// SetMaxStreams as MAX_STREAMS frames arrive.
type Limits struct {
	MaxIncomingBidiStreams protocol.StreamNum
	MaxIncomingUniStreams  protocol.StreamNum

	// WindowingFraction is the divisor for MAX_STREAMS credit batching; 0
	// disables windowed updates.
	WindowingFraction protocol.StreamNum
}

// Manager is the top-level stream lifecycle owner: it holds all four
// (initiator, directionality) quartets, the shared priority index, and the
// app-idle latch the congestion controller is notified of.
type Manager struct {
	role protocol.Perspective

	outgoingBidi *outgoingMap
	outgoingUni  *outgoingMap
	incomingBidi *incomingMap
	incomingUni  *incomingMap

	priorities *priorityMap

	// openNonControlStreams counts streams, of either perspective, that are
	// not flagged IsControl; zero means the connection is app-idle.
	openNonControlStreams int
	appIdle               bool

	onAppIdleChange   func(idle bool, now time.Time)
	onPriorityChanged func(id protocol.StreamID)
	onStreamOpened    func(dir protocol.StreamDirection)
	onStreamClosed    func(dir protocol.StreamDirection)

	now func() time.Time
}

// QueueMaxStreams is called with the new locally-advertised limit whenever
// closing peer streams accumulates enough credit to bump it
// (incomingMap.maybeBumpLimit).
type ManagerCallbacks struct {
	QueueMaxStreams     func(dir protocol.StreamDirection, limit protocol.StreamNum)
	QueueStreamsBlocked func(dir protocol.StreamDirection, limit protocol.StreamNum)
	OnAppIdleChange     func(idle bool, now time.Time)
	OnPriorityChanged   func(id protocol.StreamID)
	OnStreamOpened      func(dir protocol.StreamDirection)
	OnStreamClosed      func(dir protocol.StreamDirection)
	Now                 func() time.Time
}

func NewManager(role protocol.Perspective, limits Limits, cb ManagerCallbacks) *Manager {
	if cb.Now == nil {
		cb.Now = time.Now
	}
	if cb.OnAppIdleChange == nil {
		cb.OnAppIdleChange = func(bool, time.Time) {}
	}
	if cb.OnPriorityChanged == nil {
		cb.OnPriorityChanged = func(protocol.StreamID) {}
	}
	if cb.OnStreamOpened == nil {
		cb.OnStreamOpened = func(protocol.StreamDirection) {}
	}
	if cb.OnStreamClosed == nil {
		cb.OnStreamClosed = func(protocol.StreamDirection) {}
	}
	if cb.QueueMaxStreams == nil {
		cb.QueueMaxStreams = func(protocol.StreamDirection, protocol.StreamNum) {}
	}
	if cb.QueueStreamsBlocked == nil {
		cb.QueueStreamsBlocked = func(protocol.StreamDirection, protocol.StreamNum) {}
	}

	m := &Manager{
		role:              role,
		priorities:        newPriorityMap(),
		appIdle:           true,
		onAppIdleChange:   cb.OnAppIdleChange,
		onPriorityChanged: cb.OnPriorityChanged,
		onStreamOpened:    cb.OnStreamOpened,
		onStreamClosed:    cb.OnStreamClosed,
		now:               cb.Now,
	}

	m.outgoingBidi = newOutgoingMap(role, protocol.StreamDirectionBidi, cb.QueueStreamsBlocked)
	m.outgoingUni = newOutgoingMap(role, protocol.StreamDirectionUni, cb.QueueStreamsBlocked)
	m.incomingBidi = newIncomingMap(role.Opposite(), protocol.StreamDirectionBidi, limits.MaxIncomingBidiStreams, limits.WindowingFraction, cb.QueueMaxStreams)
	m.incomingUni = newIncomingMap(role.Opposite(), protocol.StreamDirectionUni, limits.MaxIncomingUniStreams, limits.WindowingFraction, cb.QueueMaxStreams)

	for _, mp := range []*outgoingMap{m.outgoingBidi, m.outgoingUni} {
		mp.onOpen = m.trackOpen
		mp.onClose = m.trackClose
	}
	for _, mp := range []*incomingMap{m.incomingBidi, m.incomingUni} {
		mp.onOpen = m.trackOpen
		mp.onClose = m.trackClose
	}

	return m
}

func (m *Manager) trackOpen(s *State) {
	m.priorities.set(s.ID, Priority{}, s.Priority)
	m.onStreamOpened(s.ID.Direction())
	if !s.IsControl {
		m.openNonControlStreams++
		m.recomputeAppIdle()
	}
}

func (m *Manager) trackClose(s *State) {
	m.priorities.remove(s.ID, s.Priority.Level)
	m.onStreamClosed(s.ID.Direction())
	if !s.IsControl {
		m.openNonControlStreams--
		m.recomputeAppIdle()
	}
}

// recomputeAppIdle tracks app-idle state: the connection is app-idle iff no
// non-control stream is open, and the congestion controller is notified
// only on the transition edge.
func (m *Manager) recomputeAppIdle() {
	idle := m.openNonControlStreams == 0
	if idle == m.appIdle {
		return
	}
	m.appIdle = idle
	m.onAppIdleChange(idle, m.now())
}

func (m *Manager) IsAppIdle() bool { return m.appIdle }

func (m *Manager) outgoing(dir protocol.StreamDirection) *outgoingMap {
	if dir == protocol.StreamDirectionUni {
		return m.outgoingUni
	}
	return m.outgoingBidi
}

func (m *Manager) incoming(dir protocol.StreamDirection) *incomingMap {
	if dir == protocol.StreamDirectionUni {
		return m.incomingUni
	}
	return m.incomingBidi
}

// OpenStream opens the next local stream of the given directionality,
// failing immediately with ErrTooManyOpenStreams if the peer hasn't
// granted enough credit.
func (m *Manager) OpenStream(dir protocol.StreamDirection) (*State, error) {
	return m.outgoing(dir).OpenStream()
}

// OpenStreamSync is the blocking counterpart of OpenStream.
func (m *Manager) OpenStreamSync(ctx context.Context, dir protocol.StreamDirection) (*State, error) {
	return m.outgoing(dir).OpenStreamSync(ctx)
}

// AcceptStream returns the next peer-opened stream of the given
// directionality, in the order the peer introduced it.
func (m *Manager) AcceptStream(ctx context.Context, dir protocol.StreamDirection) (*State, error) {
	return m.incoming(dir).AcceptStream(ctx)
}

// GetOrOpenStream returns id's state record, implicitly opening it (and any
// lower-numbered sibling in its quartet) if id names a peer stream that
// hasn't been referenced yet. A nil, nil result means id is a
// known-but-already-closed stream: callers must silently ignore frames
// referencing it.
func (m *Manager) GetOrOpenStream(id protocol.StreamID) (*State, error) {
	if id.IsLocal(m.role) {
		return m.outgoing(id.Direction()).GetStream(id.Num(m.role, id.Direction()))
	}
	return m.incoming(id.Direction()).GetOrOpenStream(id.Num(m.role.Opposite(), id.Direction()))
}

// GetStream looks up an already-known stream without implicitly opening
// anything. It returns nil, nil for a peer stream id not yet referenced, and
// an error for a local stream id not yet opened.
func (m *Manager) GetStream(id protocol.StreamID) (*State, error) {
	if id.IsLocal(m.role) {
		return m.outgoing(id.Direction()).GetStream(id.Num(m.role, id.Direction()))
	}
	return m.incoming(id.Direction()).GetStream(id.Num(m.role.Opposite(), id.Direction())), nil
}

// DeleteClosedStream removes id from every index. Callers must have
// already verified s.Terminal() for id's state record.
func (m *Manager) DeleteClosedStream(id protocol.StreamID) error {
	if id.IsLocal(m.role) {
		return m.outgoing(id.Direction()).DeleteStream(id.Num(m.role, id.Direction()))
	}
	return m.incoming(id.Direction()).DeleteStream(id.Num(m.role.Opposite(), id.Direction()))
}

// SetMaxStreams applies a peer MAX_STREAMS frame to the outgoing quartet of
// the given directionality.
func (m *Manager) SetMaxStreams(dir protocol.StreamDirection, limit protocol.StreamNum) {
	m.outgoing(dir).SetMaxStream(limit)
}

// SetStreamPriority changes id's scheduling priority; a no-op if the
// priority is unchanged, otherwise it updates the shared priority index and
// notifies the write-scheduler observer exactly once.
func (m *Manager) SetStreamPriority(s *State, p Priority) {
	old := s.Priority
	if !m.priorities.set(s.ID, old, p) {
		return
	}
	s.Priority = p
	m.onPriorityChanged(s.ID)
}

// HighestPriorityLevel returns the numerically lowest (highest-precedence)
// level with an open stream, or DefaultMaxPriorityLevel if none is open.
func (m *Manager) HighestPriorityLevel() int { return m.priorities.highestLevel() }

// CloseWithError fails every blocked Open/Accept call across all four
// quartets, the connection-teardown path.
func (m *Manager) CloseWithError(err error) {
	m.outgoingBidi.CloseWithError(err)
	m.outgoingUni.CloseWithError(err)
	m.incomingBidi.CloseWithError(err)
	m.incomingUni.CloseWithError(err)
}
