package qcore

import (
	"errors"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/coldwave-io/qcore/internal/ackstate"
	"github.com/coldwave-io/qcore/internal/flowcontrol"
	"github.com/coldwave-io/qcore/internal/handshake"
	"github.com/coldwave-io/qcore/internal/migration"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/streams"
	"github.com/coldwave-io/qcore/internal/utils"
	"github.com/coldwave-io/qcore/internal/wire"
)

// State is the Connection's top-level state: Open is the initial state,
// and Open -> Closed is one-way.
type State uint8

const (
	StateOpen State = iota
	StateClosed
)

// InitialKeyDeriver derives the deterministic Initial-epoch keys from a
// connection ID and version (RFC 9001 §5.2). This is a cryptographic
// primitive and therefore an external collaborator: qcore only calls it
// and installs whatever it returns.
type InitialKeyDeriver interface {
	DeriveInitialCiphers(dcid protocol.ConnectionID, version protocol.Version, side protocol.Perspective) (readCipher handshake.Cipher, readHeader handshake.HeaderCipher, writeCipher handshake.Cipher, writeHeader handshake.HeaderCipher, err error)
}

// ReadData is one received UDP datagram, the unit the worker delivers to a
// connection.
type ReadData struct {
	Peer        netip.AddrPort
	Buffer      []byte
	ReceiveTime time.Time
}

// Connection is the server-side connection state machine: it owns every
// per-connection component and drives packet processing, the handshake,
// migration, and ACK scheduling from a single goroutine, with no internal
// locking.
type Connection struct {
	settings *Config

	codec        ReadCodec
	driver       handshake.Driver
	cidAllocator ConnectionIDAllocator
	cidRejector  ConnectionIDRejector
	initialKeys  InitialKeyDeriver

	congestion    CongestionController
	newCongestion func() CongestionController
	pacer         Pacer
	qlog          QLogger
	stats         StatsCollector

	now func() time.Time

	logger *utils.Logger

	state    State
	closeErr error

	version      protocol.Version
	versionKnown bool

	serverAddr          netip.AddrPort
	originalPeerAddress netip.AddrPort
	peerAddress         netip.AddrPort

	originalDestConnID protocol.ConnectionID
	activeServerConnID protocol.ConnectionID
	activeClientConnID protocol.ConnectionID

	migrationTracker *migration.Tracker
	pathRateLimiter  *migration.PathRateLimiter

	ackStates [3]*ackstate.AckState
	sentTimes [3]*sentPacketTracker
	rttStats  *utils.RTTStats

	streams *streams.Manager

	connFlowControl *flowcontrol.ConnectionFlowController
	streamFlow      map[protocol.StreamID]*flowcontrol.StreamFlowController

	cryptoStreams [4]cryptoStream // indexed by protocol.EncryptionLevel

	pending        pendingEvents
	outgoingFrames []wire.Frame

	oneRTTWriteCipherInstalled bool
	installedOneRTTWriteCipher handshake.Cipher
	handshakeReadInstalled     bool
	handshakeWriteInstalled    bool
	initialDiscarded           bool
	handshakeDoneSent          bool

	idleTimeout                 time.Duration
	peerMaxDatagramFrameSize    protocol.ByteCount
	peerActiveConnectionIDLimit uint64

	udpSendPacketLen   protocol.ByteCount
	writableBytesLimit *protocol.ByteCount
	pmtud              pmtudState

	pendingZeroRTT          [][]byte
	pendingOneRTT           [][]byte
	zeroRTTAdmissionChecked bool

	tokenStore *sourceAddressTokenStore

	tracingID uuid.UUID

	peerCloseError error
	receivedClose  bool

	bootstrapped bool
}

// NewConnection constructs a fresh server-side Connection in the Open
// state. serverAddr is the local socket address the connection is bound
// to; it seeds the self-issued connection ID's stateless-reset token
// derivation.
func NewConnection(cfg *Config, serverAddr netip.AddrPort, codec ReadCodec, driver handshake.Driver, cidAllocator ConnectionIDAllocator, initialKeys InitialKeyDeriver) *Connection {
	cfg = PopulateServerConfig(cfg)
	rttStats := &utils.RTTStats{}
	rttStats.SetMaxAckDelay(cfg.MaxAckDelay)
	logger := utils.DefaultLogger.WithPrefix("qcore")

	c := &Connection{
		settings:         cfg,
		codec:            codec,
		driver:           driver,
		cidAllocator:     cidAllocator,
		initialKeys:      initialKeys,
		congestion:       noopCongestion{},
		newCongestion:    func() CongestionController { return noopCongestion{} },
		pacer:            noopPacer{},
		qlog:             noopQLogger{},
		stats:            noopStats{},
		now:              time.Now,
		logger:           logger,
		state:            StateOpen,
		serverAddr:       serverAddr,
		rttStats:         rttStats,
		udpSendPacketLen: cfg.MaxUDPPayloadSize,
		tracingID:        uuid.New(),
	}

	for space := range c.ackStates {
		c.ackStates[space] = ackstate.NewAckState(rttStats, logger)
		c.sentTimes[space] = newSentPacketTracker()
	}

	c.streams = streams.NewManager(protocol.PerspectiveServer, streams.Limits{
		MaxIncomingBidiStreams: cfg.MaxIncomingStreams,
		MaxIncomingUniStreams:  cfg.MaxIncomingUniStreams,
		WindowingFraction:      cfg.StreamLimitWindowingFraction,
	}, streams.ManagerCallbacks{
		QueueMaxStreams: func(dir protocol.StreamDirection, limit protocol.StreamNum) {
			c.queueFrame(&wire.MaxStreamsFrame{Type: dir, MaxStreams: limit})
		},
		QueueStreamsBlocked: func(dir protocol.StreamDirection, limit protocol.StreamNum) {
			c.queueFrame(&wire.StreamsBlockedFrame{Type: dir, StreamLimit: limit})
		},
		OnAppIdleChange: func(idle bool, now time.Time) { c.congestion.OnAppIdleChange(idle, now) },
		OnStreamOpened:  func(dir protocol.StreamDirection) { c.stats.OnStreamOpened(dir) },
		OnStreamClosed:  func(dir protocol.StreamDirection) { c.stats.OnStreamClosed(dir) },
		Now:             func() time.Time { return c.now() },
	})

	c.connFlowControl = flowcontrol.NewConnectionFlowController(cfg.InitialMaxData, cfg.InitialMaxData*2, 0, rttStats)
	c.streamFlow = make(map[protocol.StreamID]*flowcontrol.StreamFlowController)
	c.tokenStore = newSourceAddressTokenStore(KMaxNumTokenSourceAddresses, nil)

	return c
}

// TracingID returns the collision-free identifier assigned at
// construction, used to correlate qlog/stats output across restarts
// (SPEC_FULL domain-stack: google/uuid replaces a plain atomic counter).
func (c *Connection) TracingID() uuid.UUID { return c.tracingID }

func (c *Connection) State() State { return c.state }

// ActiveServerConnID returns the connection ID this side is currently
// routed under, valid once HandleFirstPacket has run. Used by Worker to
// re-key its dispatch table after bootstrapping.
func (c *Connection) ActiveServerConnID() protocol.ConnectionID { return c.activeServerConnID }

func (c *Connection) queueFrame(f wire.Frame) { c.outgoingFrames = append(c.outgoingFrames, f) }

// DrainOutgoingFrames returns and clears frames qcore queued for the write
// path to serialize (MAX_STREAMS, STREAMS_BLOCKED, HANDSHAKE_DONE, ...).
func (c *Connection) DrainOutgoingFrames() []wire.Frame {
	frames := c.outgoingFrames
	c.outgoingFrames = nil
	return frames
}

// DrainPendingEvents returns and clears the flags the event-loop driver
// consults between iterations.
func (c *Connection) DrainPendingEvents() pendingEvents { return c.pending.Drain() }

// DrainAckFrame returns the ACK frame due for space, if any, for the
// writer to include in its next outgoing packet at that space's
// encryption level.
func (c *Connection) DrainAckFrame(space protocol.PacketNumberSpace, onlyIfQueued bool) *wire.AckFrame {
	ack := c.ackStates[space].GetAckFrame(onlyIfQueued)
	if ack != nil {
		c.stats.OnAckSent(space)
	}
	return ack
}

func (c *Connection) dropPacket(reason string) {
	c.logger.Debugf("dropping packet: %s", reason)
	c.qlog.RecordPacketDropped(reason)
	c.stats.OnPacketDropped(reason)
}

// closeWithTransportError transitions Open -> Closed and records the
// error to be sent on the wire: protocol errors unwind to the connection
// boundary, where they are translated to a CONNECTION_CLOSE and a
// transition to Closed.
func (c *Connection) closeWithTransportError(err *qerr.TransportError) {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.closeErr = err
	c.streams.CloseWithError(err)
	c.logger.Errorf("closing connection: %s", err)
}

// PeerCloseError returns the peer's application-layer close, if the peer
// initiated shutdown; the wire response was NO_ERROR regardless.
func (c *Connection) PeerCloseError() error { return c.peerCloseError }

// OnServerReadData is the worker's entry point: it dispatches on
// connection state and, on Open, drives the per-packet pipeline.
func (c *Connection) OnServerReadData(rd ReadData) error {
	if c.state == StateClosed {
		return c.handleClosedStateRead(rd)
	}
	return c.readOpen(rd)
}

// handleClosedStateRead implements Closed-state behavior: only
// CONNECTION_CLOSE is processed (to update last-received for echo
// suppression); everything else is dropped.
func (c *Connection) handleClosedStateRead(rd ReadData) error {
	data := rd.Buffer
	for len(data) > 0 {
		pkt, err := c.codec.ParsePacket(data, rd.ReceiveTime)
		if err != nil || pkt.Outcome != ParseRegular {
			c.dropPacket("packet received on closed connection")
			return nil
		}
		for _, f := range pkt.Frames {
			if cc, ok := f.(*wire.ConnectionCloseFrame); ok {
				c.receivedClose = true
				_ = cc
			}
		}
		if pkt.ConsumedBytes <= 0 {
			break
		}
		data = data[pkt.ConsumedBytes:]
	}
	return nil
}

// readOpen is the Open-state hot path: split up to KMaxNumCoalescedPackets
// packets out of the datagram and process each in on-wire order.
func (c *Connection) readOpen(rd ReadData) error {
	if !c.bootstrapped {
		c.bootstrapped = true
		if err := c.HandleFirstPacket(rd.Buffer, rd.Peer, rd.ReceiveTime); err != nil {
			return c.handleFatalError(err)
		}
	}

	data := rd.Buffer
	for i := 0; i < KMaxNumCoalescedPackets && len(data) > 0; i++ {
		consumed, err := c.processOnePacket(data, rd.Peer, rd.ReceiveTime)
		if err != nil {
			return c.handleFatalError(err)
		}
		if consumed <= 0 {
			break
		}
		data = data[consumed:]
	}

	if c.pending.handshakeConfirmed {
		c.pending.handshakeConfirmed = false
		c.onHandshakeConfirmed()
	}
	return nil
}

func (c *Connection) handleFatalError(err error) error {
	var te *qerr.TransportError
	if errors.As(err, &te) {
		c.closeWithTransportError(te)
		return nil
	}
	c.closeWithTransportError(qerr.NewTransportError(qerr.InternalError, err.Error()))
	return nil
}

// restoreOrResetCongestionController implements the migration half of path
// state carry-over: a path that was previously validated and shed its
// congestion state within TimeToRetainLastCongestionAndRttState gets that
// state (and RTT) back; otherwise it starts over with a fresh controller,
// since carrying stale congestion state to an unrelated path overshoots.
func (c *Connection) restoreOrResetCongestionController(newPeerAddress netip.AddrPort, now time.Time) {
	restored := c.migrationTracker.TakeRestorableState(newPeerAddress, now)
	if restored == nil {
		c.resetCongestionController()
		return
	}
	if cc, ok := restored.Controller.(CongestionController); ok {
		c.congestion = cc
	} else {
		c.resetCongestionController()
	}
	c.rttStats.SetInitialRTT(restored.SRTT)
}

// resetCongestionController discards path-specific congestion state and
// installs a fresh controller, starting over on an unvalidated or
// non-restorable path.
func (c *Connection) resetCongestionController() {
	c.congestion = c.newCongestion()
}

// onHandshakeConfirmed is invoked once, after the frame loop, when a
// HANDSHAKE_DONE acknowledgement was observed in this packet, deferred
// this way to avoid re-entrancy into the packet-processing loop.
func (c *Connection) onHandshakeConfirmed() {
	c.logger.Infof("handshake confirmed")
}
