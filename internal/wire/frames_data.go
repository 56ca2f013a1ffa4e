package wire

import "github.com/coldwave-io/qcore/internal/protocol"

// StreamFrame carries a contiguous chunk of one stream's byte sequence.
// Grounded on the teacher's internal/wire/stream_frame.go field shape.
type StreamFrame struct {
	baseFrame

	StreamID protocol.StreamID
	Offset   protocol.ByteCount
	Data     []byte
	Fin      bool
}

func (f *StreamFrame) DataLen() protocol.ByteCount { return protocol.ByteCount(len(f.Data)) }

// CryptoFrame carries handshake bytes for the TLS collaborator; this package
// only carries the decoded offset/data, never the TLS content itself.
type CryptoFrame struct {
	baseFrame

	Offset protocol.ByteCount
	Data   []byte
}

// ResetStreamFrame aborts sending on StreamID.
type ResetStreamFrame struct {
	baseFrame

	StreamID  protocol.StreamID
	ErrorCode uint64
	FinalSize protocol.ByteCount
}

// StopSendingFrame asks the peer to abort sending on StreamID.
type StopSendingFrame struct {
	baseFrame

	StreamID  protocol.StreamID
	ErrorCode uint64
}

// MaxDataFrame raises the connection-level send limit.
type MaxDataFrame struct {
	baseFrame

	MaximumData protocol.ByteCount
}

// MaxStreamDataFrame raises the per-stream send limit.
type MaxStreamDataFrame struct {
	baseFrame

	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

// MaxStreamsFrame raises the number of streams the peer is allowed to open
// in the given direction. Grounded on the teacher's max_streams_frame.go.
type MaxStreamsFrame struct {
	baseFrame

	Type       protocol.StreamDirection
	MaxStreams protocol.StreamNum
}

// DataBlockedFrame signals the sender is connection-flow-control limited.
type DataBlockedFrame struct {
	baseFrame

	MaximumData protocol.ByteCount
}

// StreamDataBlockedFrame signals the sender is stream-flow-control limited.
type StreamDataBlockedFrame struct {
	baseFrame

	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

// StreamsBlockedFrame signals the sender wanted to open more streams than
// its peer-granted limit allows.
type StreamsBlockedFrame struct {
	baseFrame

	Type        protocol.StreamDirection
	StreamLimit protocol.StreamNum
}

// ConnectionCloseFrame carries the reason a connection is being torn down.
// Grounded on the teacher's connection_close_frame.go field shape.
type ConnectionCloseFrame struct {
	baseFrame

	IsApplicationError bool
	ErrorCode          uint64
	FrameType          uint64
	ReasonPhrase       string
}

// DatagramFrame carries an unreliable, unordered datagram (RFC 9221).
type DatagramFrame struct {
	baseFrame

	Data []byte
}

// HandshakeDoneFrame is sent exactly once by a server to confirm the
// handshake is complete.
type HandshakeDoneFrame struct{ baseFrame }

// NewConnectionIDFrame advertises a self-issued connection ID the peer may
// address future packets to.
type NewConnectionIDFrame struct {
	baseFrame

	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        protocol.ConnectionID
	StatelessResetToken protocol.StatelessResetToken
}

// RetireConnectionIDFrame tells the peer a connection ID it issued is no
// longer in use and may be retired.
type RetireConnectionIDFrame struct {
	baseFrame

	SequenceNumber uint64
}

// NewTokenFrame carries an address-validation token the peer can present on
// a future connection to skip address validation, including for 0-RTT.
type NewTokenFrame struct {
	baseFrame

	Token []byte
}

// PathChallengeFrame probes reachability of a path; it is a probing frame.
type PathChallengeFrame struct {
	baseFrame

	Data [8]byte
}

// PathResponseFrame answers a PathChallengeFrame; it is a probing frame.
type PathResponseFrame struct {
	baseFrame

	Data [8]byte
}
