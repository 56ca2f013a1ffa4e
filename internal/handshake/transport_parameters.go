package handshake

import (
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// PreferredAddress carries the wire shape of the preferred_address
// transport parameter; the core never sends one (single-path server) and
// rejects one presented by a client.
type PreferredAddress struct {
	V4, V6              netip.AddrPort
	ConnectionID        protocol.ConnectionID
	StatelessResetToken protocol.StatelessResetToken
}

// D6DParameters carries the optional PLPMTUD extension parameters,
// grounded on mvfst's d6d transport parameters (base PMTU, raise timeout,
// probe timeout).
type D6DParameters struct {
	BasePMTU     protocol.ByteCount
	RaiseTimeout time.Duration
	ProbeTimeout time.Duration
}

// ClientTransportParameters is the set of parameters consumed from the
// client's flight. Every field has an accompanying Set flag so
// processClientInitialParams (qcore) can distinguish "absent" from "sent
// as zero", which several validation checks depend on.
type ClientTransportParameters struct {
	InitialMaxData                 protocol.ByteCount
	InitialMaxStreamDataBidiLocal  protocol.ByteCount
	InitialMaxStreamDataBidiRemote protocol.ByteCount
	InitialMaxStreamDataUni        protocol.ByteCount
	InitialMaxStreamsBidi          protocol.StreamNum
	InitialMaxStreamsUni           protocol.StreamNum

	MaxIdleTimeout time.Duration

	AckDelayExponent uint8
	MaxAckDelay      time.Duration
	MinAckDelay      time.Duration
	MinAckDelaySet   bool

	MaxUDPPayloadSize protocol.ByteCount

	ActiveConnectionIDLimit uint64

	MaxDatagramFrameSize    protocol.ByteCount
	MaxDatagramFrameSizeSet bool

	InitialSourceConnectionID    protocol.ConnectionID
	InitialSourceConnectionIDSet bool

	// The following are server-only parameters; a client that sends any of
	// them is in violation of the transport parameter rules.
	PreferredAddressSet          bool
	OriginalDestinationCIDSet    bool
	StatelessResetTokenSet       bool
	RetrySourceConnectionIDSet   bool

	D6DBasePMTU     protocol.ByteCount
	D6DBasePMTUSet  bool
	D6DRaiseTimeout time.Duration
	D6DProbeTimeout time.Duration
}

// ServerTransportParameters is the set of parameters advertised by the
// server: the values qcore.Config produces and hands to the handshake
// driver for inclusion in the server's flight.
type ServerTransportParameters struct {
	InitialMaxData                 protocol.ByteCount
	InitialMaxStreamDataBidiLocal  protocol.ByteCount
	InitialMaxStreamDataBidiRemote protocol.ByteCount
	InitialMaxStreamDataUni        protocol.ByteCount
	InitialMaxStreamsBidi          protocol.StreamNum
	InitialMaxStreamsUni           protocol.StreamNum

	MaxIdleTimeout   time.Duration
	AckDelayExponent uint8

	MaxUDPPayloadSize protocol.ByteCount

	StatelessResetToken protocol.StatelessResetToken

	OriginalDestinationConnectionID protocol.ConnectionID
	InitialSourceConnectionID       protocol.ConnectionID
}
