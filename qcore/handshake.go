package qcore

import (
	"time"

	"github.com/coldwave-io/qcore/internal/handshake"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/wire"
)

// updateHandshakeState pulls whatever ciphers have newly become available
// from the handshake driver, in the fixed order the protocol makes them
// available in, and reacts to each.
func (c *Connection) updateHandshakeState(now time.Time) error {
	if data, header, ok := c.driver.GetZeroRTTReadCipher(); ok {
		accept := true
		if !c.zeroRTTAdmissionChecked {
			c.zeroRTTAdmissionChecked = true
			if _, presented := c.driver.PresentedSourceAddressToken(); presented {
				var limit protocol.ByteCount
				var hasLimit bool
				accept, limit, hasLimit = c.validateAndUpdateSourceToken(c.peerAddress.Addr())
				if hasLimit {
					c.writableBytesLimit = &limit
				}
			}
		}
		if accept {
			c.codec.InstallCipher(protocol.Encryption0RTT, CipherRead, data, header)
			c.replayBufferedPackets(c.pendingZeroRTT, now)
		}
		c.pendingZeroRTT = nil
	}

	if data, header, ok := c.driver.GetOneRTTReadHeaderCipher(); ok {
		c.codec.InstallCipher(protocol.Encryption1RTT, CipherRead, data, header)
		c.replayBufferedPackets(c.pendingOneRTT, now)
		c.pendingOneRTT = nil
		// CFIN has arrived: any anti-amplification limit installed by
		// validateAndUpdateSourceToken no longer applies.
		c.writableBytesLimit = nil
	}

	if data, ok := c.driver.GetOneRTTWriteCipher(); ok {
		if c.oneRTTWriteCipherInstalled {
			if c.installedOneRTTWriteCipher != data {
				return qerr.NewTransportError(qerr.CryptoErrorBase, "handshake driver returned a different 1-RTT write cipher instance")
			}
		} else {
			header, headerOK := c.driver.GetOneRTTWriteHeaderCipher()
			if !headerOK {
				return qerr.NewTransportError(qerr.InternalError, "1-RTT write data cipher available without its header cipher")
			}
			c.codec.InstallCipher(protocol.Encryption1RTT, CipherWrite, data, header)
			c.installedOneRTTWriteCipher = data
			c.oneRTTWriteCipherInstalled = true
			c.pacer.OnKeyEstablished()

			params, ok := c.driver.ClientTransportParameters()
			if !ok {
				return qerr.NewTransportError(qerr.TransportParameterError, "1-RTT write keys installed without client transport parameters")
			}
			if err := c.processClientInitialParams(params); err != nil {
				return err
			}
		}
	}

	if data, header, ok := c.driver.GetHandshakeReadCipher(); ok && !c.handshakeReadInstalled {
		c.handshakeReadInstalled = true
		c.codec.InstallCipher(protocol.EncryptionHandshake, CipherRead, data, header)
	}

	if data, header, ok := c.driver.GetHandshakeWriteCipher(); ok && !c.handshakeWriteInstalled {
		c.handshakeWriteInstalled = true
		c.codec.InstallCipher(protocol.EncryptionHandshake, CipherWrite, data, header)
	}

	if c.driver.IsHandshakeDone() && !c.handshakeDoneSent {
		c.handshakeDoneSent = true
		c.queueFrame(&wire.HandshakeDoneFrame{})
	}

	return nil
}

// replayBufferedPackets feeds datagrams that arrived before their keys
// existed back through the hot path now that decryption is possible.
func (c *Connection) replayBufferedPackets(buffered [][]byte, now time.Time) {
	for _, raw := range buffered {
		data := raw
		for len(data) > 0 {
			consumed, err := c.processOnePacket(data, c.peerAddress, now)
			if err != nil || consumed <= 0 {
				break
			}
			data = data[consumed:]
		}
	}
}

// buildServerTransportParameters translates Config into the parameters
// handed to the handshake driver for inclusion in the server's flight.
// serverCID is the connection ID this side chose for the client to
// address future packets to.
func (c *Connection) buildServerTransportParameters(serverCID protocol.ConnectionID) handshake.ServerTransportParameters {
	portBytes := []byte{byte(c.serverAddr.Port()), byte(c.serverAddr.Port() >> 8)}
	resetToken := protocol.GenerateStatelessResetToken(c.settings.StatelessResetSecret, serverCID, c.serverAddr.Addr().AsSlice(), portBytes)

	return handshake.ServerTransportParameters{
		InitialMaxData:                 c.settings.InitialMaxData,
		InitialMaxStreamDataBidiLocal:  c.settings.InitialMaxStreamDataBidiLocal,
		InitialMaxStreamDataBidiRemote: c.settings.InitialMaxStreamDataBidiRemote,
		InitialMaxStreamDataUni:        c.settings.InitialMaxStreamDataUni,
		InitialMaxStreamsBidi:          c.settings.MaxIncomingStreams,
		InitialMaxStreamsUni:           c.settings.MaxIncomingUniStreams,
		MaxIdleTimeout:                 c.settings.MaxIdleTimeout,
		AckDelayExponent:               c.settings.AckDelayExponent,
		MaxUDPPayloadSize:              c.settings.MaxUDPPayloadSize,
		StatelessResetToken:            resetToken,
		OriginalDestinationConnectionID: c.originalDestConnID,
		InitialSourceConnectionID:       serverCID,
	}
}

// processClientInitialParams validates the client's transport parameters
// and applies the ones this core consumes.
func (c *Connection) processClientInitialParams(p handshake.ClientTransportParameters) error {
	if p.PreferredAddressSet || p.OriginalDestinationCIDSet || p.StatelessResetTokenSet || p.RetrySourceConnectionIDSet {
		return qerr.NewTransportError(qerr.TransportParameterError, "client sent a server-only transport parameter")
	}
	if p.MaxAckDelay >= (1<<14)*time.Millisecond {
		return qerr.NewTransportError(qerr.TransportParameterError, "max_ack_delay too large")
	}
	if p.MaxUDPPayloadSize < KMinMaxUDPPayload {
		return qerr.NewTransportError(qerr.TransportParameterError, "max_packet_size below the protocol minimum")
	}
	if p.AckDelayExponent > KAckDelayExponentMax {
		return qerr.NewTransportError(qerr.TransportParameterError, "ack_delay_exponent exceeds the protocol maximum")
	}
	if c.version.UsesInitialSourceConnectionID() {
		if !p.InitialSourceConnectionIDSet || !p.InitialSourceConnectionID.Equal(c.activeClientConnID) {
			return qerr.NewTransportError(qerr.TransportParameterError, "initial_source_connection_id missing or mismatched")
		}
	}
	if p.MaxDatagramFrameSizeSet && p.MaxDatagramFrameSize > 0 && p.MaxDatagramFrameSize <= KMaxDatagramPacketOverhead {
		return qerr.NewTransportError(qerr.TransportParameterError, "max_datagram_frame_size too small to carry a datagram")
	}

	c.connFlowControl.UpdateSendWindow(p.InitialMaxData)
	c.streams.SetMaxStreams(protocol.StreamDirectionBidi, p.InitialMaxStreamsBidi)
	c.streams.SetMaxStreams(protocol.StreamDirectionUni, p.InitialMaxStreamsUni)

	if p.MaxIdleTimeout > 0 && p.MaxIdleTimeout < c.settings.MaxIdleTimeout {
		c.idleTimeout = p.MaxIdleTimeout
	} else {
		c.idleTimeout = c.settings.MaxIdleTimeout
	}

	c.rttStats.SetMaxAckDelay(p.MaxAckDelay)

	if p.MaxDatagramFrameSizeSet {
		c.peerMaxDatagramFrameSize = p.MaxDatagramFrameSize
	}
	if p.ActiveConnectionIDLimit > 0 {
		c.peerActiveConnectionIDLimit = p.ActiveConnectionIDLimit
	}

	if c.settings.PMTUMode == PMTUModeForced {
		c.applyForcedPMTU(p.MaxUDPPayloadSize)
	} else {
		c.maybeEnablePLPMTUD(p.D6DBasePMTU, p.D6DBasePMTUSet)
	}

	return nil
}
