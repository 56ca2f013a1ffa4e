// Package qcore is the server-side QUIC connection core: it decrypts and
// dispatches received datagrams, drives the TLS handshake, negotiates
// transport parameters, manages
// stream lifecycle, tracks acknowledgement/RTT state, and handles peer
// address migration. The UDP socket layer, TLS engine, congestion
// controller, wire codec, and qlog sink are external collaborators
// injected as interfaces (interfaces.go); qcore never talks to a socket or
// a byte slice codec directly.
package qcore

import (
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// ZeroRTTPolicy governs 0-RTT admission in validateAndUpdateSourceToken.
type ZeroRTTPolicy uint8

const (
	// ZeroRTTAlwaysReject refuses every 0-RTT attempt.
	ZeroRTTAlwaysReject ZeroRTTPolicy = iota
	// ZeroRTTRejectIfNoExactMatch admits 0-RTT only when the connection's
	// peer IP exactly matches an address in the server's token store.
	ZeroRTTRejectIfNoExactMatch
	// ZeroRTTLimitIfNoExactMatch always admits 0-RTT, but installs a
	// writable-bytes limit when there was no exact match.
	ZeroRTTLimitIfNoExactMatch
)

// PMTUMode selects how the server tracks the path MTU.
type PMTUMode uint8

const (
	// PMTUModeProbing lets PLPMTUD search upward from a base value.
	PMTUModeProbing PMTUMode = iota
	// PMTUModeForced pins udpSendPacketLen to the client-advertised
	// max_packet_size (or the default upper bound, whichever is smaller)
	// and never probes.
	PMTUModeForced
)

const (
	// KMaxNumCoalescedPackets bounds how many QUIC packets are processed
	// out of one UDP datagram.
	KMaxNumCoalescedPackets = 10

	// KMaxNumMigrationsAllowed is the migration rate limit.
	KMaxNumMigrationsAllowed = 5

	// KMaxNumTokenSourceAddresses bounds the zero-RTT source-token MRU
	// list.
	KMaxNumTokenSourceAddresses = 8

	// KMinMaxUDPPayload is the floor enforced on the client's
	// max_packet_size transport parameter.
	KMinMaxUDPPayload protocol.ByteCount = 1200

	// KMaxDatagramPacketOverhead bounds the smallest acceptable
	// max_datagram_frame_size a client may advertise.
	KMaxDatagramPacketOverhead protocol.ByteCount = 3

	// KAckDelayExponentMax is the protocol maximum for ack_delay_exponent
	// (RFC 9000 §18.2).
	KAckDelayExponentMax uint8 = 20

	// KDefaultMaxPriority mirrors streams.DefaultMaxPriorityLevel as a
	// qcore-level constant; Config has no field for it.
	KDefaultMaxPriority = 7

	// KStreamLimitWindowingFraction is the default divisor used to decide
	// whether accumulated stream credit is worth advertising via
	// MAX_STREAMS.
	KStreamLimitWindowingFraction protocol.StreamNum = 4

	// KLimitedCwndInMSS is how many maximum-segment-size units worth of
	// writable-byte budget is granted per received packet while an
	// anti-amplification limit is active.
	KLimitedCwndInMSS = 3
)

// Config carries every server-side knob the connection core consults.
// Grounded on the teacher's Config/populateServerConfig split: fields left
// zero are filled in by PopulateServerConfig, never at the call site.
type Config struct {
	Versions []protocol.Version

	HandshakeTimeout time.Duration
	MaxIdleTimeout   time.Duration

	ConnectionIDLength int

	InitialMaxData                 protocol.ByteCount
	InitialMaxStreamDataBidiLocal  protocol.ByteCount
	InitialMaxStreamDataBidiRemote protocol.ByteCount
	InitialMaxStreamDataUni        protocol.ByteCount

	MaxIncomingStreams    protocol.StreamNum
	MaxIncomingUniStreams protocol.StreamNum

	StreamLimitWindowingFraction protocol.StreamNum

	AckDelayExponent  uint8
	MaxAckDelay       time.Duration
	MaxUDPPayloadSize protocol.ByteCount

	ActiveConnectionIDLimit uint64

	MaxPacketsToBuffer int

	// AllowMigration disables all migration when false; any non-probing
	// packet from a new address then closes with INVALID_MIGRATION.
	AllowMigration bool

	// MaxDatagramFrameSize is not read by the core: it is not included in
	// the server's transport parameters, and DATAGRAM frames are ignored.
	MaxDatagramFrameSize protocol.ByteCount

	ZeroRTTPolicy ZeroRTTPolicy

	PMTUMode         PMTUMode
	D6DRaiseTimeout  time.Duration
	D6DProbeTimeout  time.Duration
	D6DBasePMTU      protocol.ByteCount

	// StatelessResetSecret keys the self-issued connection ID's
	// stateless-reset token derivation.
	StatelessResetSecret []byte
}

// PopulateServerConfig fills in every zero-valued field of config with its
// default, without mutating the caller's value. May be called with nil.
func PopulateServerConfig(config *Config) *Config {
	var c Config
	if config != nil {
		c = *config
	}

	if len(c.Versions) == 0 {
		c.Versions = []protocol.Version{protocol.Version1, protocol.VersionDraft29}
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MaxIdleTimeout == 0 {
		c.MaxIdleTimeout = 30 * time.Second
	}
	if c.ConnectionIDLength == 0 {
		c.ConnectionIDLength = protocol.DefaultConnectionIDLength
	}
	if c.InitialMaxData == 0 {
		c.InitialMaxData = 1 << 20
	}
	if c.InitialMaxStreamDataBidiLocal == 0 {
		c.InitialMaxStreamDataBidiLocal = 1 << 18
	}
	if c.InitialMaxStreamDataBidiRemote == 0 {
		c.InitialMaxStreamDataBidiRemote = 1 << 18
	}
	if c.InitialMaxStreamDataUni == 0 {
		c.InitialMaxStreamDataUni = 1 << 18
	}
	if c.MaxIncomingStreams == 0 {
		c.MaxIncomingStreams = 100
	}
	if c.MaxIncomingUniStreams == 0 {
		c.MaxIncomingUniStreams = 100
	}
	if c.StreamLimitWindowingFraction == 0 {
		c.StreamLimitWindowingFraction = KStreamLimitWindowingFraction
	}
	if c.AckDelayExponent == 0 {
		c.AckDelayExponent = 3
	}
	if c.MaxAckDelay == 0 {
		c.MaxAckDelay = protocol.MaxAckDelay
	}
	if c.MaxUDPPayloadSize == 0 {
		c.MaxUDPPayloadSize = 1452
	}
	if c.ActiveConnectionIDLimit == 0 {
		c.ActiveConnectionIDLimit = 4
	}
	if c.MaxPacketsToBuffer == 0 {
		c.MaxPacketsToBuffer = 32
	}
	if c.D6DRaiseTimeout == 0 {
		c.D6DRaiseTimeout = 600 * time.Millisecond
	}
	if c.D6DProbeTimeout == 0 {
		c.D6DProbeTimeout = 3 * time.Second
	}
	if len(c.StatelessResetSecret) == 0 {
		c.StatelessResetSecret = []byte("qcore-default-development-secret")
	}
	return &c
}
