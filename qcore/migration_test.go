package qcore

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/wire"
)

// A non-probing packet from a new, previously-unseen address on a
// migration-enabled connection queues a PATH_CHALLENGE, defers congestion
// state to the validation outcome, and adopts the new address immediately.
func TestMigrationToNewAddressQueuesPathChallenge(t *testing.T) {
	clientCID := protocol.ConnectionID{0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	cfg := PopulateServerConfig(&Config{AllowMigration: true})
	conn, codec := bootstrapOpenConnection(t, cfg, clientCID, serverCID)

	newAddr := netip.MustParseAddrPort("203.0.113.5:12345")
	pkt := append([]byte{0xd0}, byte(1))
	codec.Script(pkt, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.PingFrame{}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: newAddr, Buffer: pkt, ReceiveTime: time.Now()}))

	assert.Equal(t, StateOpen, conn.State())
	assert.Equal(t, newAddr, conn.peerAddress)
	assert.Equal(t, 1, conn.migrationTracker.NumMigrations)

	queued := conn.DrainOutgoingFrames()
	require.Len(t, queued, 1)
	_, ok := queued[0].(*wire.PathChallengeFrame)
	assert.True(t, ok)
}

// A migration attempted while migration is administratively disabled is a
// fatal INVALID_MIGRATION error.
func TestMigrationDisabledIsFatal(t *testing.T) {
	clientCID := protocol.ConnectionID{0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	conn, codec := bootstrapOpenConnection(t, nil, clientCID, serverCID) // AllowMigration defaults to false

	newAddr := netip.MustParseAddrPort("203.0.113.9:44444")
	pkt := append([]byte{0xd0}, byte(1))
	codec.Script(pkt, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.PingFrame{}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: newAddr, Buffer: pkt, ReceiveTime: time.Now()}))

	assert.Equal(t, StateClosed, conn.State())
}

// A first migration to a never-before-seen address defers to path
// validation and leaves the departing address's congestion/RTT state
// snapshotted for a possible return.
func TestMigrationFromValidatedPathSnapshotsCongestionState(t *testing.T) {
	clientCID := protocol.ConnectionID{0xb0, 0xb1, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6, 0xb7}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	cfg := PopulateServerConfig(&Config{AllowMigration: true})
	conn, codec := bootstrapOpenConnection(t, cfg, clientCID, serverCID)
	originalAddr := conn.peerAddress
	originalController := conn.congestion

	pathA := netip.MustParseAddrPort("203.0.113.20:1000")
	pkt := append([]byte{0xd0}, byte(1))
	codec.Script(pkt, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.PingFrame{}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: pathA, Buffer: pkt, ReceiveTime: time.Now()}))

	assert.Equal(t, pathA, conn.peerAddress)
	assert.True(t, conn.migrationTracker.HasSeen(originalAddr))
	saved := conn.migrationTracker.TakeRestorableState(originalAddr, time.Now())
	require.NotNil(t, saved, "the departing address's controller and RTT should have been snapshotted")
	assert.Equal(t, originalController, saved.Controller)
}

// A migration to an address the tracker already knows about, with a path
// validation still outstanding from the prior migration, restores that
// address's saved congestion/RTT state instead of starting a fresh
// congestion controller.
func TestMigrationRestoresSavedCongestionState(t *testing.T) {
	clientCID := protocol.ConnectionID{0xa0, 0xa1, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7}
	serverCID := protocol.ConnectionID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	cfg := PopulateServerConfig(&Config{AllowMigration: true})
	conn, codec := bootstrapOpenConnection(t, cfg, clientCID, serverCID)

	pathA := netip.MustParseAddrPort("203.0.113.20:1000")

	var congestionSeq int
	conn.newCongestion = func() CongestionController {
		congestionSeq++
		return &fakeCongestion{id: congestionSeq}
	}

	savedController := &fakeCongestion{id: 0}
	conn.migrationTracker.Remember(pathA)
	conn.migrationTracker.SaveCongestionAndRTT(pathA, time.Now(), savedController,
		50*time.Millisecond, 50*time.Millisecond, 5*time.Millisecond, 40*time.Millisecond)
	conn.pending.SetSchedulePathValidation()

	pkt := append([]byte{0xd0}, byte(1))
	codec.Script(pkt, ParsedPacket{
		Outcome: ParseRegular, Level: protocol.Encryption1RTT, PacketNumber: 1,
		Frames: []wire.Frame{&wire.PingFrame{}},
	})
	require.NoError(t, conn.OnServerReadData(ReadData{Peer: pathA, Buffer: pkt, ReceiveTime: time.Now()}))

	assert.Equal(t, pathA, conn.peerAddress)
	assert.Same(t, savedController, conn.congestion)
	assert.Equal(t, 0, congestionSeq, "a restored path reuses the saved controller rather than minting a fresh one")
}
