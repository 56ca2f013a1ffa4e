package streams

import (
	"context"
	"fmt"
	"sync"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
)

// incomingMap tracks one quartet of peer-initiated streams: opening a
// peer-initiated stream on first reference, and the credit-based
// MAX_STREAMS bump on close.
type incomingMap struct {
	mutex sync.Mutex

	streams map[protocol.StreamNum]*State

	nextStream   protocol.StreamNum // lowest not-yet-opened peer stream num
	maxStream    protocol.StreamNum // current locally-advertised limit
	initialLimit protocol.StreamNum

	// windowingFraction is the divisor used to decide whether accumulated
	// stream credit is worth advertising: a bump fires once streamCredit
	// >= initialLimit/windowingFraction.
	windowingFraction protocol.StreamNum

	initiator protocol.Perspective
	dir       protocol.StreamDirection

	acceptQueue       []protocol.StreamNum
	queuedForDeletion map[protocol.StreamNum]struct{}
	acceptWaiters     []chan struct{}

	queueMaxStreams func(protocol.StreamDirection, protocol.StreamNum)

	onOpen  func(*State)
	onClose func(*State)

	closeErr error
}

func newIncomingMap(
	initiator protocol.Perspective,
	dir protocol.StreamDirection,
	initialLimit, windowingFraction protocol.StreamNum,
	queueMaxStreams func(protocol.StreamDirection, protocol.StreamNum),
) *incomingMap {
	return &incomingMap{
		streams:           make(map[protocol.StreamNum]*State),
		nextStream:        1,
		maxStream:         initialLimit,
		initialLimit:      initialLimit,
		windowingFraction: windowingFraction,
		initiator:         initiator,
		dir:               dir,
		queuedForDeletion: make(map[protocol.StreamNum]struct{}),
		queueMaxStreams:   queueMaxStreams,
		onOpen:            func(*State) {},
		onClose:           func(*State) {},
	}
}

// GetStream returns an already-opened peer stream's record without opening
// anything new, or nil if num hasn't been referenced yet.
func (m *incomingMap) GetStream(num protocol.StreamNum) *State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.streams[num]
}

// GetOrOpenStream returns the record for a peer stream, implicitly opening
// every intermediate stream in this quartet up to num if the peer hasn't
// referenced them yet. It fails with a STREAM_LIMIT_ERROR transport error
// if num is above the locally-advertised maximum.
func (m *incomingMap) GetOrOpenStream(num protocol.StreamNum) (*State, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if num == 0 {
		return nil, &unknownStreamError{action: "get", id: protocol.StreamIDFromNum(m.initiator, m.dir, 1)}
	}
	if num < m.nextStream {
		return m.streams[num], nil // may be nil: already accepted and deleted
	}
	if num > m.maxStream {
		return nil, qerr.NewTransportError(qerr.StreamLimitError,
			fmt.Sprintf("peer tried to open stream %d (current limit: %d)", num, m.maxStream))
	}

	for n := m.nextStream; n <= num; n++ {
		s := &State{ID: protocol.StreamIDFromNum(m.initiator, m.dir, n), Priority: DefaultPriority()}
		m.streams[n] = s
		m.acceptQueue = append(m.acceptQueue, n)
		m.onOpen(s)
	}
	m.nextStream = num + 1
	m.signalAccept()
	return m.streams[num], nil
}

// AcceptStream returns the next peer-opened stream in the order the peer
// introduced it, blocking until one is available or ctx is done.
func (m *incomingMap) AcceptStream(ctx context.Context) (*State, error) {
	m.mutex.Lock()
	for {
		if m.closeErr != nil {
			m.mutex.Unlock()
			return nil, m.closeErr
		}
		for len(m.acceptQueue) > 0 {
			num := m.acceptQueue[0]
			m.acceptQueue = m.acceptQueue[1:]
			if _, deleting := m.queuedForDeletion[num]; deleting {
				delete(m.queuedForDeletion, num)
				m.deleteStreamLocked(num)
				continue
			}
			s := m.streams[num]
			m.mutex.Unlock()
			return s, nil
		}

		waitChan := make(chan struct{}, 1)
		m.acceptWaiters = append(m.acceptWaiters, waitChan)
		m.mutex.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-waitChan:
		}
		m.mutex.Lock()
	}
}

func (m *incomingMap) signalAccept() {
	for _, c := range m.acceptWaiters {
		select {
		case c <- struct{}{}:
		default:
		}
	}
	m.acceptWaiters = nil
}

// DeleteStream removes a stream once both halves are terminal and returns
// its stream credit. A stream that AcceptStream hasn't handed out yet is
// dropped from the accept queue as well, so it is never accepted.
func (m *incomingMap) DeleteStream(num protocol.StreamNum) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.streams[num]; !ok {
		return &unknownStreamError{action: "delete", id: protocol.StreamIDFromNum(m.initiator, m.dir, max1(num))}
	}
	for i, n := range m.acceptQueue {
		if n == num {
			m.acceptQueue = append(m.acceptQueue[:i], m.acceptQueue[i+1:]...)
			break
		}
	}
	m.deleteStreamLocked(num)
	return nil
}

func (m *incomingMap) deleteStreamLocked(num protocol.StreamNum) {
	s := m.streams[num]
	delete(m.streams, num)
	m.onClose(s)
	m.maybeBumpLimit()
}

// maybeBumpLimit implements a windowed MAX_STREAMS update: it only
// advertises new credit once the accumulated, unused credit reaches
// initialLimit/windowingFraction, trading update frequency for batch size.
func (m *incomingMap) maybeBumpLimit() {
	if m.windowingFraction == 0 {
		return
	}
	openableRemote := m.maxStream - (m.nextStream - 1)
	streamCredit := m.initialLimit - openableRemote - protocol.StreamNum(len(m.streams))
	threshold := m.initialLimit / m.windowingFraction
	if streamCredit > 0 && streamCredit >= threshold {
		m.maxStream += streamCredit
		m.queueMaxStreams(m.dir, m.maxStream)
	}
}

// CloseWithError fails every pending and future GetOrOpenStream/AcceptStream
// call with err.
func (m *incomingMap) CloseWithError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.closeErr = err
	for _, c := range m.acceptWaiters {
		close(c)
	}
	m.acceptWaiters = nil
}
