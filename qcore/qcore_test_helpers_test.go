package qcore

import (
	"errors"
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/handshake"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/wire"
)

// fakeCodec is a scriptable ReadCodec: tests queue up ParsedPacket results
// keyed by the raw bytes handed in, so processOnePacket's control flow can
// be exercised without a real wire format.
type fakeCodec struct {
	invariant InvariantHeader

	scripted map[string]ParsedPacket

	installed map[protocol.EncryptionLevel]map[CipherDirection]bool
	discarded map[protocol.EncryptionLevel]bool
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		scripted:  make(map[string]ParsedPacket),
		installed: make(map[protocol.EncryptionLevel]map[CipherDirection]bool),
		discarded: make(map[protocol.EncryptionLevel]bool),
	}
}

func (f *fakeCodec) ParseInvariantHeader(data []byte) (InvariantHeader, error) {
	return f.invariant, nil
}

func (f *fakeCodec) Script(raw []byte, pkt ParsedPacket) {
	pkt.ConsumedBytes = len(raw)
	f.scripted[string(raw)] = pkt
}

func (f *fakeCodec) ParsePacket(data []byte, now time.Time) (ParsedPacket, error) {
	if pkt, ok := f.scripted[string(data)]; ok {
		return pkt, nil
	}
	return ParsedPacket{}, errUnscriptedPacket
}

var errUnscriptedPacket = errors.New("fakeCodec: no packet scripted for this input")

func (f *fakeCodec) InstallCipher(level protocol.EncryptionLevel, dir CipherDirection, data handshake.Cipher, header handshake.HeaderCipher) {
	if f.installed[level] == nil {
		f.installed[level] = make(map[CipherDirection]bool)
	}
	f.installed[level][dir] = true
}

func (f *fakeCodec) DiscardCipher(level protocol.EncryptionLevel) {
	f.discarded[level] = true
}

// fakeCIDAllocator hands out sequential connection IDs of the requested
// length.
type fakeCIDAllocator struct {
	next byte
}

func (a *fakeCIDAllocator) Generate(length int) (protocol.ConnectionID, error) {
	a.next++
	cid := make(protocol.ConnectionID, length)
	cid[0] = a.next
	return cid, nil
}

// fakeInitialKeys stands in for RFC 9001 §5.2's deterministic Initial key
// derivation, standing in for a real cryptographic library.
type fakeInitialKeys struct{}

func (fakeInitialKeys) DeriveInitialCiphers(dcid protocol.ConnectionID, version protocol.Version, side protocol.Perspective) (handshake.Cipher, handshake.HeaderCipher, handshake.Cipher, handshake.HeaderCipher, error) {
	return "read-data", "read-hdr", "write-data", "write-hdr", nil
}

// fakeCongestion is a pointer-identity CongestionController double, used to
// tell apart a freshly reset controller from one restored across a
// migration (qcore.Connection never compares congestion state by value).
type fakeCongestion struct{ id int }

func (*fakeCongestion) OnAppIdleChange(bool, time.Time) {}
func (*fakeCongestion) OnPacketsLost(int)               {}

func testServerAddr() netip.AddrPort {
	return netip.MustParseAddrPort("127.0.0.1:4433")
}

func testClientAddr() netip.AddrPort {
	return netip.MustParseAddrPort("192.0.2.1:12345")
}

// newTestConnection wires a Connection with fakes for every collaborator
// and hands back the codec/driver so a test can script further behavior.
func newTestConnection(cfg *Config) (*Connection, *fakeCodec, *handshake.FakeDriver) {
	codec := newFakeCodec()
	driver := handshake.NewFakeDriver()
	conn := NewConnection(cfg, testServerAddr(), codec, driver, &fakeCIDAllocator{}, fakeInitialKeys{})
	return conn, codec, driver
}

// firstFlightDatagram scripts an Initial-packet datagram with no frames
// buffered beyond what HandleFirstPacket needs (an invariant header parse),
// and arms the codec so the immediately-following processOnePacket call
// (readOpen's second phase, same datagram) sees a scripted CRYPTO frame.
func firstFlightDatagram(codec *fakeCodec, clientSrcCID, serverDestCID protocol.ConnectionID, frames []wire.Frame) []byte {
	raw := append([]byte{0xc0}, clientSrcCID...)
	raw = append(raw, serverDestCID...)

	codec.invariant = InvariantHeader{
		IsLongHeader: true,
		Version:      protocol.Version1,
		DestConnID:   serverDestCID,
		SrcConnID:    clientSrcCID,
	}
	codec.Script(raw, ParsedPacket{
		Outcome:      ParseRegular,
		Level:        protocol.EncryptionInitial,
		PacketNumber: 0,
		DestConnID:   serverDestCID,
		SrcConnID:    clientSrcCID,
		Version:      protocol.Version1,
		IsLongHeader: true,
		Frames:       frames,
	})
	return raw
}
