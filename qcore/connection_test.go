package qcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldwave-io/qcore/internal/handshake"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/streams"
	"github.com/coldwave-io/qcore/internal/wire"
)

// Scenario 1: a first datagram bootstraps the connection and, in the same
// call, its CRYPTO frame reaches the handshake driver.
func TestFirstPacketBootstraps(t *testing.T) {
	conn, codec, driver := newTestConnection(nil)

	clientCID := protocol.ConnectionID{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x01, 0x02}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	chello := &wire.CryptoFrame{Offset: 0, Data: []byte("client-hello")}
	raw := firstFlightDatagram(codec, clientCID, serverCID, []wire.Frame{chello})

	require.False(t, driver.IsHandshakeDone())
	err := conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: raw, ReceiveTime: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, StateOpen, conn.State())
	assert.Equal(t, []byte("client-hello"), driver.ClientExtensions())
	assert.NotEmpty(t, conn.ActiveServerConnID())
	assert.True(t, codec.installed[protocol.EncryptionInitial][CipherRead])
	assert.True(t, codec.installed[protocol.EncryptionInitial][CipherWrite])
}

// Scenario 2: a client that sends a server-only transport parameter is
// rejected with TRANSPORT_PARAMETER_ERROR.
func TestClientServerOnlyParameterRejected(t *testing.T) {
	conn, codec, driver := newTestConnection(nil)

	clientCID := protocol.ConnectionID{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	chello := &wire.CryptoFrame{Offset: 0, Data: []byte("client-hello")}
	raw := firstFlightDatagram(codec, clientCID, serverCID, []wire.Frame{chello})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: raw, ReceiveTime: time.Now()}))

	driver.SetClientTransportParameters(handshake.ClientTransportParameters{
		InitialSourceConnectionIDSet: true,
		InitialSourceConnectionID:    clientCID,
		MaxUDPPayloadSize:            1400,
		OriginalDestinationCIDSet:    true, // server-only parameter
	})
	driver.MakeOneRTTWriteHeaderAvailable("hdr")
	driver.MakeOneRTTWriteAvailable("data")

	second := append([]byte{0xc0}, byte(1))
	codec.invariant = InvariantHeader{IsLongHeader: true, Version: protocol.Version1, DestConnID: serverCID, SrcConnID: clientCID}
	codec.Script(second, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.PingFrame{}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: second, ReceiveTime: time.Now()}))

	assert.Equal(t, StateClosed, conn.State())
	assert.ErrorContains(t, conn.closeErr, "server-only")
}

// Scenario 3: the handshake driver returning a different 1-RTT write
// cipher instance than it first advertised is a fatal CRYPTO_ERROR.
func TestDuplicateOneRTTWriteCipherIsFatal(t *testing.T) {
	conn, codec, driver := newTestConnection(nil)

	clientCID := protocol.ConnectionID{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	chello := &wire.CryptoFrame{Offset: 0, Data: []byte("client-hello")}
	raw := firstFlightDatagram(codec, clientCID, serverCID, []wire.Frame{chello})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: raw, ReceiveTime: time.Now()}))

	driver.SetClientTransportParameters(handshake.ClientTransportParameters{
		InitialSourceConnectionIDSet: true,
		InitialSourceConnectionID:    clientCID,
		MaxUDPPayloadSize:            1400,
	})
	driver.MakeOneRTTWriteHeaderAvailable("hdr")
	driver.MakeOneRTTWriteAvailable("cipher-a")

	first := append([]byte{0xd0}, byte(2))
	codec.invariant = InvariantHeader{IsLongHeader: true, Version: protocol.Version1, DestConnID: serverCID, SrcConnID: clientCID}
	codec.Script(first, ParsedPacket{Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1, Frames: []wire.Frame{&wire.PingFrame{}}})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: first, ReceiveTime: time.Now()}))
	require.Equal(t, StateOpen, conn.State())

	driver.MakeOneRTTWriteAvailable("cipher-b")
	second := append([]byte{0xd0}, byte(3))
	codec.Script(second, ParsedPacket{Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 2, Frames: []wire.Frame{&wire.PingFrame{}}})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: second, ReceiveTime: time.Now()}))

	assert.Equal(t, StateClosed, conn.State())
}

// A STREAM frame implicitly opens a peer-initiated stream and charges its
// bytes against the connection-wide flow-control window.
func TestStreamFrameOpensStreamAndChargesFlowControl(t *testing.T) {
	cfg := PopulateServerConfig(&Config{InitialMaxData: 1024})
	conn, codec, _ := newTestConnection(cfg)

	clientCID := protocol.ConnectionID{0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	chello := &wire.CryptoFrame{Offset: 0, Data: []byte("client-hello")}
	raw := firstFlightDatagram(codec, clientCID, serverCID, []wire.Frame{chello})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: raw, ReceiveTime: time.Now()}))

	clientBidiStream := protocol.FirstStreamID(protocol.PerspectiveClient, protocol.StreamDirectionBidi)
	streamPkt := append([]byte{0xd0}, byte(4))
	codec.Script(streamPkt, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.StreamFrame{StreamID: clientBidiStream, Data: []byte("hello"), Fin: true}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: testClientAddr(), Buffer: streamPkt, ReceiveTime: time.Now()}))

	s, err := conn.streams.GetStream(clientBidiStream)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, streams.ReceiveStateSizeKnown, s.Receive)
}

func TestConfigDefaults(t *testing.T) {
	cfg := PopulateServerConfig(nil)
	assert.Equal(t, 30*time.Second, cfg.MaxIdleTimeout)
	assert.Equal(t, protocol.ByteCount(1452), cfg.MaxUDPPayloadSize)
	assert.NotEmpty(t, cfg.StatelessResetSecret)
}
