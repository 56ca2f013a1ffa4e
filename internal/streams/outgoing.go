package streams

import (
	"context"
	"sync"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// outgoingMap tracks one (initiator, directionality) quartet of streams
// this side created: opening fails with ErrTooManyOpenStreams once the
// next ID would cross the peer-advertised limit for this quartet.
type outgoingMap struct {
	mutex sync.Mutex

	openQueue []chan struct{}

	streams map[protocol.StreamNum]*State

	nextStream protocol.StreamNum
	maxStream  protocol.StreamNum // protocol.InvalidStreamNum until the peer grants any

	initiator protocol.Perspective
	dir       protocol.StreamDirection

	blockedSent         bool
	queueStreamsBlocked func(dir protocol.StreamDirection, limit protocol.StreamNum)

	// onOpen and onClose let the Manager keep its priority and app-idle
	// bookkeeping current without this map knowing anything about them.
	onOpen  func(*State)
	onClose func(*State)

	closeErr error
}

func newOutgoingMap(initiator protocol.Perspective, dir protocol.StreamDirection, queueStreamsBlocked func(protocol.StreamDirection, protocol.StreamNum)) *outgoingMap {
	return &outgoingMap{
		streams:             make(map[protocol.StreamNum]*State),
		maxStream:           protocol.InvalidStreamNum,
		nextStream:          1,
		initiator:           initiator,
		dir:                 dir,
		queueStreamsBlocked: queueStreamsBlocked,
		onOpen:              func(*State) {},
		onClose:             func(*State) {},
	}
}

// OpenStream opens the next stream in this quartet, or fails immediately
// with ErrTooManyOpenStreams if no credit is available.
func (m *outgoingMap) OpenStream() (*State, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closeErr != nil {
		return nil, m.closeErr
	}
	if len(m.openQueue) > 0 || m.nextStream > m.maxStream {
		m.maybeSendStreamsBlocked()
		return nil, ErrTooManyOpenStreams
	}
	return m.openStream(), nil
}

// OpenStreamSync blocks until credit is available, the map is closed, or
// ctx is done.
func (m *outgoingMap) OpenStreamSync(ctx context.Context) (*State, error) {
	m.mutex.Lock()
	if m.closeErr != nil {
		m.mutex.Unlock()
		return nil, m.closeErr
	}
	if len(m.openQueue) == 0 && m.nextStream <= m.maxStream {
		s := m.openStream()
		m.mutex.Unlock()
		return s, nil
	}

	waitChan := make(chan struct{}, 1)
	m.openQueue = append(m.openQueue, waitChan)
	m.maybeSendStreamsBlocked()
	m.mutex.Unlock()

	for {
		select {
		case <-ctx.Done():
			m.mutex.Lock()
			m.removeFromQueue(waitChan)
			m.mutex.Unlock()
			return nil, ctx.Err()
		case <-waitChan:
		}

		m.mutex.Lock()
		if m.closeErr != nil {
			m.mutex.Unlock()
			return nil, m.closeErr
		}
		if m.nextStream > m.maxStream {
			m.mutex.Unlock()
			continue
		}
		s := m.openStream()
		m.removeFromQueue(waitChan)
		m.unblockNext()
		m.mutex.Unlock()
		return s, nil
	}
}

func (m *outgoingMap) openStream() *State {
	id := protocol.StreamIDFromNum(m.initiator, m.dir, m.nextStream)
	s := &State{ID: id, Priority: DefaultPriority()}
	m.streams[m.nextStream] = s
	m.nextStream++
	m.onOpen(s)
	return s
}

func (m *outgoingMap) removeFromQueue(c chan struct{}) {
	for i, waiter := range m.openQueue {
		if waiter == c {
			m.openQueue = append(m.openQueue[:i], m.openQueue[i+1:]...)
			return
		}
	}
}

func (m *outgoingMap) maybeSendStreamsBlocked() {
	if m.blockedSent {
		return
	}
	limit := protocol.StreamNum(0)
	if m.maxStream != protocol.InvalidStreamNum {
		limit = m.maxStream
	}
	m.queueStreamsBlocked(m.dir, limit)
	m.blockedSent = true
}

func (m *outgoingMap) GetStream(num protocol.StreamNum) (*State, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if num == 0 || num >= m.nextStream {
		return nil, &unknownStreamError{action: "get", id: protocol.StreamIDFromNum(m.initiator, m.dir, max1(num))}
	}
	return m.streams[num], nil
}

func (m *outgoingMap) DeleteStream(num protocol.StreamNum) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, ok := m.streams[num]
	if !ok {
		return &unknownStreamError{action: "delete", id: protocol.StreamIDFromNum(m.initiator, m.dir, max1(num))}
	}
	delete(m.streams, num)
	m.onClose(s)
	return nil
}

// SetMaxStream raises the locally-known peer limit for this quartet; it is
// monotonic, matching the MAX_STREAMS frame's semantics.
func (m *outgoingMap) SetMaxStream(limit protocol.StreamNum) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if limit <= m.maxStream && m.maxStream != protocol.InvalidStreamNum {
		return
	}
	m.maxStream = limit
	m.blockedSent = false
	m.unblockNext()
}

func (m *outgoingMap) unblockNext() {
	if len(m.openQueue) == 0 {
		return
	}
	select {
	case m.openQueue[0] <- struct{}{}:
	default:
	}
}

// CloseWithError fails every pending and future OpenStream(Sync) call with
// err, the connection-teardown path.
func (m *outgoingMap) CloseWithError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.closeErr = err
	for _, c := range m.openQueue {
		close(c)
	}
	m.openQueue = nil
}

func max1(n protocol.StreamNum) protocol.StreamNum {
	if n == 0 {
		return 1
	}
	return n
}
