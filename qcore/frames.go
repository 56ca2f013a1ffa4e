package qcore

import (
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/flowcontrol"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/streams"
	"github.com/coldwave-io/qcore/internal/wire"
)

// processOnePacket implements the hot-path pipeline for a single coalesced
// packet out of data. It returns how many bytes of data
// the packet occupied so the caller can advance to the next one; a
// non-nil error is fatal and is propagated to handleFatalError, which
// closes with INTERNAL_ERROR when it is not a *qerr.TransportError.
func (c *Connection) processOnePacket(data []byte, peer netip.AddrPort, now time.Time) (int, error) {
	pkt, err := c.codec.ParsePacket(data, now)
	if err != nil {
		c.dropPacket("malformed packet: " + err.Error())
		return len(data), nil
	}

	switch pkt.Outcome {
	case ParseCipherUnavailable:
		c.bufferUndecryptable(pkt, data[:max(pkt.ConsumedBytes, 0)])
		return pkt.ConsumedBytes, nil
	case ParseRetry:
		c.dropPacket("received a Retry packet")
		return pkt.ConsumedBytes, nil
	case ParseStatelessReset:
		c.dropPacket("received a stateless reset")
		return pkt.ConsumedBytes, nil
	case ParseNothing:
		c.dropPacket("codec returned no packet")
		return pkt.ConsumedBytes, nil
	}

	// step 2: a parseable header with zero frames is a protocol violation.
	if len(pkt.Frames) == 0 {
		return 0, qerr.NewTransportError(qerr.ProtocolViolation, "packet carried no frames")
	}

	// step 3: unprotected (Initial/Handshake) packets may only carry a
	// restricted frame set.
	if pkt.Level == protocol.EncryptionInitial || pkt.Level == protocol.EncryptionHandshake {
		for _, f := range pkt.Frames {
			if !isPermittedOnUnprotected(f) {
				return 0, qerr.NewTransportError(qerr.ProtocolViolation, "disallowed frame on an unprotected packet")
			}
		}
	}

	// step 4: record the negotiated version on first observation.
	if !c.versionKnown && pkt.IsLongHeader {
		c.version = pkt.Version
		c.versionKnown = true
	}

	// step 5: address-migration precondition check.
	addressChanged := peer != c.peerAddress
	if addressChanged {
		if pkt.Level != protocol.Encryption1RTT {
			return 0, qerr.NewTransportError(qerr.InvalidMigration, "address change observed before AppData keys")
		}
		if !c.settings.AllowMigration {
			return 0, qerr.NewTransportError(qerr.InvalidMigration, "migration is administratively disabled")
		}
		// otherwise deferred to step 10.
	}

	// step 6: update the packet-number space's receive tracking.
	space := pkt.Level.PacketNumberSpace()
	ackEliciting := false
	containsCrypto := false
	for _, f := range pkt.Frames {
		if wire.IsAckEliciting(f) {
			ackEliciting = true
		}
		if _, ok := f.(*wire.CryptoFrame); ok {
			containsCrypto = true
		}
	}
	isNewLargestAppData := space == protocol.SpaceAppData && pkt.PacketNumber > c.ackStates[space].LargestObserved()
	c.ackStates[space].ReceivedPacket(pkt.PacketNumber, protocol.ECNNon, now, ackEliciting, containsCrypto)

	// step 7: dispatch frame handlers.
	handshakeDoneAcked := false
	for _, f := range pkt.Frames {
		acked, err := c.handleFrame(f, pkt.Level, now)
		if err != nil {
			return 0, err
		}
		handshakeDoneAcked = handshakeDoneAcked || acked
	}

	// step 8: defer handshake-confirmed invocation until after the loop.
	if handshakeDoneAcked {
		c.pending.SetHandshakeConfirmed()
	}

	// step 9: extend an active writable-bytes limit by one MSS budget.
	if c.writableBytesLimit != nil {
		extended := *c.writableBytesLimit + protocol.ByteCount(KLimitedCwndInMSS)*c.udpSendPacketLen
		c.writableBytesLimit = &extended
	}

	// step 10: trigger migration on a non-probing packet from a new
	// address that set the new AppData high-water mark.
	if addressChanged && wire.HasNonProbingFrame(pkt.Frames) && space == protocol.SpaceAppData && isNewLargestAppData {
		if !pkt.IsLongHeader && c.isIntentionalMigration(pkt.DestConnID) {
			c.logger.Infof("intentional migration to %s", peer)
		}
		if err := c.onConnectionMigration(peer, now); err != nil {
			return 0, err
		}
	}

	// step 11: drain newly-contiguous crypto bytes to the handshake driver.
	if crypto := c.cryptoStreams[pkt.Level].ReadReady(); len(crypto) > 0 {
		if err := c.driver.HandleCryptoData(pkt.Level, crypto); err != nil {
			c.dropPacket("TRANSPORT_PARAMETER_ERROR: " + err.Error())
			return 0, qerr.NewTransportError(qerr.TransportParameterError, err.Error())
		}
	}
	if err := c.updateHandshakeState(now); err != nil {
		c.dropPacket("TRANSPORT_PARAMETER_ERROR: " + err.Error())
		return 0, err
	}

	// step 13: discard Initial keys the first time a Handshake packet
	// arrives, and drop the now-irrelevant Initial crypto stream state.
	if pkt.Level == protocol.EncryptionHandshake && !c.initialDiscarded {
		c.initialDiscarded = true
		c.codec.DiscardCipher(protocol.EncryptionInitial)
		c.cryptoStreams[protocol.EncryptionInitial] = cryptoStream{}
		c.ackStates[protocol.SpaceInitial].IgnoreBelow(protocol.MaxPacketNumber)
	}

	return pkt.ConsumedBytes, nil
}

// bufferUndecryptable implements the CipherUnavailable branch of step 1:
// 0-RTT and 1-RTT packets that arrived before their keys are queued,
// subject to a per-connection budget; anything else is dropped.
func (c *Connection) bufferUndecryptable(pkt ParsedPacket, raw []byte) {
	switch pkt.Level {
	case protocol.Encryption0RTT:
		if len(c.pendingZeroRTT) >= c.settings.MaxPacketsToBuffer {
			c.dropPacket("0-RTT buffer full")
			return
		}
		c.pendingZeroRTT = append(c.pendingZeroRTT, append([]byte(nil), raw...))
	case protocol.Encryption1RTT:
		if len(c.pendingOneRTT) >= c.settings.MaxPacketsToBuffer {
			c.dropPacket("1-RTT buffer full")
			return
		}
		c.pendingOneRTT = append(c.pendingOneRTT, append([]byte(nil), raw...))
	default:
		c.dropPacket("undecryptable packet at an unbufferable encryption level")
	}
}

// isPermittedOnUnprotected implements the frame allow-list for
// Initial/Handshake packets.
func isPermittedOnUnprotected(f wire.Frame) bool {
	switch f.(type) {
	case *wire.PaddingFrame, *wire.AckFrame, *wire.ConnectionCloseFrame, *wire.CryptoFrame, *wire.PingFrame:
		return true
	default:
		return false
	}
}

// handleFrame dispatches one decoded frame to its handler. It returns
// whether this frame was an ACK that newly acknowledged the HANDSHAKE_DONE
// packet, the signal processOnePacket needs to schedule handshakeConfirmed.
func (c *Connection) handleFrame(f wire.Frame, level protocol.EncryptionLevel, now time.Time) (bool, error) {
	switch frame := f.(type) {
	case *wire.PaddingFrame:
		return false, nil

	case *wire.PingFrame:
		return false, nil

	case *wire.AckFrame:
		return c.handleAckFrame(frame, level, now)

	case *wire.CryptoFrame:
		c.cryptoStreams[level].Write(int64(frame.Offset), frame.Data)
		return false, nil

	case *wire.StreamFrame:
		return false, c.handleStreamFrame(frame, now)

	case *wire.ResetStreamFrame:
		c.handleResetStreamFrame(frame)
		return false, nil

	case *wire.StopSendingFrame:
		return false, nil

	case *wire.MaxDataFrame:
		c.connFlowControl.UpdateSendWindow(frame.MaximumData)
		return false, nil

	case *wire.MaxStreamDataFrame:
		return false, c.handleMaxStreamDataFrame(frame)

	case *wire.MaxStreamsFrame:
		c.streams.SetMaxStreams(frame.Type, frame.MaxStreams)
		return false, nil

	case *wire.DataBlockedFrame, *wire.StreamDataBlockedFrame, *wire.StreamsBlockedFrame:
		return false, nil

	case *wire.ConnectionCloseFrame:
		if frame.IsApplicationError {
			c.peerCloseError = &qerr.ApplicationError{ErrorCode: frame.ErrorCode, ErrorMessage: frame.ReasonPhrase}
		} else {
			c.peerCloseError = qerr.NewTransportError(qerr.TransportErrorCode(frame.ErrorCode), frame.ReasonPhrase)
		}
		c.receivedClose = true
		return false, qerr.NewTransportError(qerr.NoError, "peer closed the connection")

	case *wire.DatagramFrame:
		return false, nil

	case *wire.PathChallengeFrame:
		c.queueFrame(&wire.PathResponseFrame{Data: frame.Data})
		return false, nil

	case *wire.PathResponseFrame:
		return false, nil

	case *wire.HandshakeDoneFrame:
		return false, nil

	default:
		return false, nil
	}
}

// handleAckFrame implements the ACK contract: it drives RTT estimation for
// the largest newly-acknowledged packet and retires send-time bookkeeping
// for everything at or below it.
func (c *Connection) handleAckFrame(f *wire.AckFrame, level protocol.EncryptionLevel, now time.Time) (bool, error) {
	space := level.PacketNumberSpace()
	largest := f.LargestAcked()
	if largest == protocol.InvalidPacketNumber {
		return false, nil
	}

	ackDelay := time.Duration(f.DelayTime) << c.settings.AckDelayExponent
	if sendTime, ok := c.sentTimes[space].TakeSendTime(largest); ok {
		sendDelta := now.Sub(sendTime)
		c.rttStats.UpdateRTT(sendDelta, ackDelay, now)
		c.qlog.RecordRTTSample(sendDelta, c.rttStats.MinRTT(), c.rttStats.SmoothedRTT(), ackDelay)
	}
	c.sentTimes[space].ForgetBelow(largest)

	// Whether this ACK newly covers the packet HANDSHAKE_DONE went out on
	// is only knowable once the write path records that packet number via
	// RecordPacketSent; approximated here as "any AppData ACK once
	// HANDSHAKE_DONE has been sent", since sent-packet-to-frame mapping is
	// the codec collaborator's responsibility, not this core's.
	handshakeDoneAcked := c.handshakeDoneSent && space == protocol.SpaceAppData
	return handshakeDoneAcked, nil
}

// handleStreamFrame implements the STREAM contract: delivers to the stream
// if present, silently ignores data for streams that are gone. The stream's
// own flow-control window is checked first (StreamFlowController folds the
// incremental new bytes into the connection-wide window as a side effect),
// so a retransmission that overlaps already-seen bytes never double-charges
// the connection aggregate.
func (c *Connection) handleStreamFrame(f *wire.StreamFrame, now time.Time) error {
	s, err := c.streams.GetOrOpenStream(f.StreamID)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	highestOffset := f.Offset + protocol.ByteCount(len(f.Data))
	if err := c.streamFlowController(f.StreamID).UpdateHighestReceived(highestOffset, f.Fin); err != nil {
		return err
	}
	s.RecordReceivedRange(f.Offset, highestOffset, now)
	if f.Fin && s.Receive == streams.ReceiveStateRecv {
		s.Receive = streams.ReceiveStateSizeKnown
	}
	return nil
}

// streamFlowController returns id's per-stream flow controller, creating it
// on first reference with the receive window this side advertised for
// streams of id's directionality and initiator.
func (c *Connection) streamFlowController(id protocol.StreamID) *flowcontrol.StreamFlowController {
	if fc, ok := c.streamFlow[id]; ok {
		return fc
	}
	receiveWindow := c.settings.InitialMaxStreamDataBidiRemote
	switch {
	case id.IsUniDirectional():
		receiveWindow = c.settings.InitialMaxStreamDataUni
	case id.IsLocal(protocol.PerspectiveServer):
		receiveWindow = c.settings.InitialMaxStreamDataBidiLocal
	}
	fc := flowcontrol.NewStreamFlowController(id, c.connFlowControl, receiveWindow, receiveWindow*2, 0, c.rttStats)
	c.streamFlow[id] = fc
	return fc
}

// handleResetStreamFrame implements the RESET_STREAM contract: delivered to
// the stream's receive handler if it still exists.
func (c *Connection) handleResetStreamFrame(f *wire.ResetStreamFrame) {
	s, err := c.streams.GetStream(f.StreamID)
	if err != nil || s == nil {
		return
	}
	s.Receive = streams.ReceiveStateResetRecvd
	s.ReadErr = &qerr.StreamError{StreamID: uint64(f.StreamID), ErrorCode: f.ErrorCode, Remote: true}
}

// handleMaxStreamDataFrame implements the MAX_STREAM_DATA contract: raising
// the send limit on a stream this side cannot send on (a receive-only
// stream, by ID parity) is a protocol violation; otherwise it raises this
// stream's send window.
func (c *Connection) handleMaxStreamDataFrame(f *wire.MaxStreamDataFrame) error {
	if f.StreamID.IsRemote(protocol.PerspectiveServer) && f.StreamID.IsUniDirectional() {
		return qerr.NewTransportError(qerr.StreamStateError, "MAX_STREAM_DATA on a receive-only stream")
	}
	c.streamFlowController(f.StreamID).UpdateSendWindow(f.MaximumStreamData)
	return nil
}
