// Package protocol holds the wire-level value types shared across the
// connection core: connection IDs, stream IDs, packet numbers, encryption
// levels and protocol versions. It carries no behavior beyond what those
// values need to be compared, ordered and printed.
package protocol

import "time"

// ByteCount is used to count bytes.
type ByteCount int64

// A Perspective determines if we're acting as a client or a server.
type Perspective uint8

const (
	PerspectiveServer Perspective = 1
	PerspectiveClient Perspective = 2
)

func (p Perspective) Opposite() Perspective {
	if p == PerspectiveClient {
		return PerspectiveServer
	}
	return PerspectiveClient
}

func (p Perspective) String() string {
	switch p {
	case PerspectiveServer:
		return "server"
	case PerspectiveClient:
		return "client"
	default:
		return "invalid perspective"
	}
}

// PacketNumber is the packet number of a QUIC packet.
type PacketNumber int64

// InvalidPacketNumber is used when no packet number is available.
const InvalidPacketNumber PacketNumber = -1

// MaxPacketNumber is the highest packet number allowed by the wire format
// (2^62 - 1). A connection that would need to send beyond this must close.
const MaxPacketNumber PacketNumber = (1 << 62) - 1

// PacketNumberSpace identifies one of the three independent packet-number
// spaces a QUIC connection maintains.
type PacketNumberSpace uint8

const (
	SpaceInitial PacketNumberSpace = iota
	SpaceHandshake
	SpaceAppData
)

func (s PacketNumberSpace) String() string {
	switch s {
	case SpaceInitial:
		return "Initial"
	case SpaceHandshake:
		return "Handshake"
	case SpaceAppData:
		return "AppData"
	default:
		return "unknown packet number space"
	}
}

// EncryptionLevel is the encryption level of a packet.
type EncryptionLevel uint8

const (
	EncryptionUnspecified EncryptionLevel = iota
	EncryptionInitial
	EncryptionHandshake
	Encryption0RTT
	Encryption1RTT
)

func (e EncryptionLevel) String() string {
	switch e {
	case EncryptionInitial:
		return "Initial"
	case EncryptionHandshake:
		return "Handshake"
	case Encryption0RTT:
		return "0-RTT"
	case Encryption1RTT:
		return "1-RTT"
	default:
		return "unknown"
	}
}

// PacketNumberSpace reports which packet-number space packets sent at this
// encryption level belong to. 0-RTT and 1-RTT both use the AppData space.
func (e EncryptionLevel) PacketNumberSpace() PacketNumberSpace {
	switch e {
	case EncryptionInitial:
		return SpaceInitial
	case EncryptionHandshake:
		return SpaceHandshake
	default:
		return SpaceAppData
	}
}

// Version identifies a QUIC wire version.
type Version uint32

const (
	VersionUnknown      Version = 0
	VersionDraft29      Version = 0xff00001d
	Version1            Version = 0x00000001
	VersionExperimental Version = 0xfaceb002
)

func (v Version) String() string {
	switch v {
	case Version1:
		return "v1"
	case VersionDraft29:
		return "draft-29"
	case VersionExperimental:
		return "experimental"
	default:
		return "unknown"
	}
}

// IsValidTransportVersion reports whether v is one of the versions this
// core is willing to process packets for.
func (v Version) IsValidTransportVersion() bool {
	switch v {
	case Version1, VersionDraft29, VersionExperimental:
		return true
	default:
		return false
	}
}

// UsesInitialSourceConnectionID reports whether this version requires the
// client to echo its own first-flight source connection ID as a transport
// parameter.
func (v Version) UsesInitialSourceConnectionID() bool {
	return v == Version1 || v == VersionDraft29
}

// TimerGranularity is the smallest unit of time the core schedules timers
// with; used as a PTO floor for very small measured RTTs.
const TimerGranularity = time.Millisecond

// MinConnectionIDLenInitial is the minimum length, in bytes, a client's
// destination connection ID on an Initial packet must have.
const MinConnectionIDLenInitial = 8

// DefaultConnectionIDLength is the length of the connection IDs we generate
// for ourselves when no explicit configuration overrides it.
const DefaultConnectionIDLength = 8

// WindowUpdateThreshold is the fraction of the flow-control receive window
// that must be consumed before a MAX_DATA/MAX_STREAM_DATA update is sent;
// below it the update is withheld.
const WindowUpdateThreshold = 0.25

// MaxAckDelay is the default maximum amount of time a receiver delays
// sending an ACK after receiving an ack-eliciting packet, absent a
// transport-parameter override from the peer.
const MaxAckDelay = 25 * time.Millisecond

// ECN is the ECN marking observed on a received packet.
type ECN uint8

const (
	ECNNon ECN = iota
	ECT0
	ECT1
	ECNCE
)

func (e ECN) String() string {
	switch e {
	case ECNNon:
		return "not-ECT"
	case ECT0:
		return "ECT(0)"
	case ECT1:
		return "ECT(1)"
	case ECNCE:
		return "CE"
	default:
		return "unknown ECN marking"
	}
}
