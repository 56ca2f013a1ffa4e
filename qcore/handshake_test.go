package qcore

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// When the client presented no source-address token, 0-RTT is admitted
// unconditionally: validateAndUpdateSourceToken is never consulted and no
// writable-bytes limit is installed.
func TestZeroRTTAdmittedWithoutPresentedToken(t *testing.T) {
	cfg := PopulateServerConfig(&Config{ZeroRTTPolicy: ZeroRTTAlwaysReject})
	conn, codec, driver := newTestConnection(cfg)
	conn.peerAddress = testClientAddr()

	driver.MakeZeroRTTReadAvailable(struct{}{}, struct{}{})

	require.NoError(t, conn.updateHandshakeState(time.Now()))
	assert.True(t, codec.installed[protocol.Encryption0RTT][CipherRead])
	assert.Nil(t, conn.writableBytesLimit)
}

// A presented token under ZeroRTTAlwaysReject skips cipher installation
// entirely, so buffered 0-RTT packets are never replayed.
func TestZeroRTTRejectedWhenPolicyAlwaysRejects(t *testing.T) {
	cfg := PopulateServerConfig(&Config{ZeroRTTPolicy: ZeroRTTAlwaysReject})
	conn, codec, driver := newTestConnection(cfg)
	conn.peerAddress = testClientAddr()

	driver.MakeZeroRTTReadAvailable(struct{}{}, struct{}{})
	driver.PresentSourceAddressToken([]byte("resumed-session-token"))

	require.NoError(t, conn.updateHandshakeState(time.Now()))
	assert.False(t, codec.installed[protocol.Encryption0RTT][CipherRead])
}

// Under ZeroRTTLimitIfNoExactMatch a first-sighting address is admitted but
// bounded to a limited congestion window's worth of writable bytes, and the
// admission decision is only made once even if ciphers stay available on a
// later call.
func TestZeroRTTLimitedInstallsWritableBytesLimitOnce(t *testing.T) {
	cfg := PopulateServerConfig(&Config{ZeroRTTPolicy: ZeroRTTLimitIfNoExactMatch, MaxUDPPayloadSize: 1200})
	conn, codec, driver := newTestConnection(cfg)
	conn.peerAddress = netip.MustParseAddrPort("198.51.100.7:9000")

	driver.MakeZeroRTTReadAvailable(struct{}{}, struct{}{})
	driver.PresentSourceAddressToken([]byte("first-sighting-token"))

	require.NoError(t, conn.updateHandshakeState(time.Now()))
	assert.True(t, codec.installed[protocol.Encryption0RTT][CipherRead])
	require.NotNil(t, conn.writableBytesLimit)
	assert.Equal(t, conn.udpSendPacketLen*KLimitedCwndInMSS, *conn.writableBytesLimit)

	*conn.writableBytesLimit = 42
	require.NoError(t, conn.updateHandshakeState(time.Now()))
	assert.Equal(t, protocol.ByteCount(42), *conn.writableBytesLimit, "admission is checked once per connection, not re-derived every call")
}
