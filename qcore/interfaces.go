package qcore

import (
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/handshake"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/wire"
)

// ParseOutcome classifies what a ReadCodec did with one packet's worth of
// bytes.
type ParseOutcome uint8

const (
	ParseRegular ParseOutcome = iota
	ParseCipherUnavailable
	ParseRetry
	ParseStatelessReset
	ParseNothing
)

// InvariantHeader is the version-independent header a codec can parse even
// before any cipher exists, used on the cold path.
type InvariantHeader struct {
	IsLongHeader bool
	Version      protocol.Version
	DestConnID   protocol.ConnectionID
	SrcConnID    protocol.ConnectionID
}

// ParsedPacket is one decoded QUIC packet handed back from ReadCodec.
type ParsedPacket struct {
	Outcome ParseOutcome

	Level        protocol.EncryptionLevel
	PacketNumber protocol.PacketNumber
	DestConnID   protocol.ConnectionID
	SrcConnID    protocol.ConnectionID
	Version      protocol.Version
	IsLongHeader bool

	Frames []wire.Frame

	// ConsumedBytes is how much of the input buffer this packet occupied,
	// so the caller can advance to the next coalesced packet.
	ConsumedBytes int
}

// CipherDirection distinguishes which direction a cipher installed via
// ReadCodec.InstallCipher applies to.
type CipherDirection uint8

const (
	CipherRead CipherDirection = iota
	CipherWrite
)

// ReadCodec parses QUIC packets out of a UDP payload and accepts installed
// ciphers to decrypt future packets. The wire format itself is out of
// scope for this package; this is the seam a concrete codec plugs into.
type ReadCodec interface {
	ParseInvariantHeader(data []byte) (InvariantHeader, error)
	ParsePacket(data []byte, now time.Time) (ParsedPacket, error)
	InstallCipher(level protocol.EncryptionLevel, dir CipherDirection, data handshake.Cipher, header handshake.HeaderCipher)
	DiscardCipher(level protocol.EncryptionLevel)
}

// ConnectionIDAllocator mints connection IDs for HandleFirstPacket's
// server-CID assignment.
type ConnectionIDAllocator interface {
	Generate(length int) (protocol.ConnectionID, error)
}

// ConnectionIDRejector optionally vetoes a freshly generated connection ID
// (e.g. because it collides with one already routed); HandleFirstPacket
// retries generation up to 16 times before giving up.
type ConnectionIDRejector interface {
	Reject(protocol.ConnectionID) bool
}

// CongestionController is the owned, per-connection congestion state; it is
// moved (never shared) across migrations.
type CongestionController interface {
	OnAppIdleChange(idle bool, now time.Time)
	OnPacketsLost(count int)
}

// Pacer schedules when queued packets may be sent; qcore only needs to
// tell it when new keys make pacing decisions meaningful again.
type Pacer interface {
	OnKeyEstablished()
}

// QLogger is the observability sink for structured connection events.
type QLogger interface {
	RecordPacketDropped(reason string)
	RecordMigration(from, to netip.AddrPort, isNATRebinding bool)
	RecordRTTSample(sample, min, smoothed, ackDelay time.Duration)
}

// StatsCollector is the metrics sink. NewConnection installs noopStats;
// this package does not import internal/metrics.
type StatsCollector interface {
	OnPacketDropped(reason string)
	OnAckSent(space protocol.PacketNumberSpace)
	OnMigration(natRebinding bool)
	OnStreamOpened(dir protocol.StreamDirection)
	OnStreamClosed(dir protocol.StreamDirection)
}

// noopQLogger and noopStats let NewConnection be called without wiring
// observability in tests that don't care about it.
type noopQLogger struct{}

func (noopQLogger) RecordPacketDropped(string)                                {}
func (noopQLogger) RecordMigration(netip.AddrPort, netip.AddrPort, bool)      {}
func (noopQLogger) RecordRTTSample(time.Duration, time.Duration, time.Duration, time.Duration) {}

type noopStats struct{}

func (noopStats) OnPacketDropped(string)                     {}
func (noopStats) OnAckSent(protocol.PacketNumberSpace)        {}
func (noopStats) OnMigration(bool)                            {}
func (noopStats) OnStreamOpened(protocol.StreamDirection)     {}
func (noopStats) OnStreamClosed(protocol.StreamDirection)     {}

type noopCongestion struct{}

func (noopCongestion) OnAppIdleChange(bool, time.Time) {}
func (noopCongestion) OnPacketsLost(int)               {}

type noopPacer struct{}

func (noopPacer) OnKeyEstablished() {}
