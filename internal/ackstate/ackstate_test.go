package ackstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/utils"
)

func newTestAckState() *AckState {
	return NewAckState(&utils.RTTStats{}, utils.DefaultLogger)
}

func receiveAndAckTen(t *testing.T, a *AckState) {
	for i := 1; i <= 10; i++ {
		a.ReceivedPacket(protocol.PacketNumber(i), protocol.ECNNon, time.Time{}, true, false)
	}
	require.NotNil(t, a.GetAckFrame(true))
	require.False(t, a.ackQueued)
}

func TestAckStateAlwaysQueuesFirstPacket(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(1, protocol.ECNNon, time.Now(), true, false)
	require.True(t, a.ackQueued)
	require.True(t, a.GetAlarmTimeout().IsZero())
	require.NotNil(t, a.GetAckFrame(true))
}

func TestAckStateSetsECNCounters(t *testing.T) {
	a := newTestAckState()
	pn := protocol.PacketNumber(0)
	a.ReceivedPacket(pn, protocol.ECT0, time.Now(), true, false)
	pn++
	for i := 0; i < 2; i++ {
		a.ReceivedPacket(pn, protocol.ECT1, time.Now(), true, false)
		pn++
	}
	for i := 0; i < 3; i++ {
		a.ReceivedPacket(pn, protocol.ECNCE, time.Now(), true, false)
		pn++
	}
	ack := a.GetAckFrame(false)
	require.NotNil(t, ack)
	require.EqualValues(t, 1, ack.ECT0)
	require.EqualValues(t, 2, ack.ECT1)
	require.EqualValues(t, 3, ack.ECNCE)
}

func TestAckStateQueuesEverySecondAckElicitingPacket(t *testing.T) {
	a := newTestAckState()
	receiveAndAckTen(t, a)

	p := protocol.PacketNumber(11)
	for i := 0; i < 5; i++ {
		a.ReceivedPacket(p, protocol.ECNNon, time.Time{}, true, false)
		require.False(t, a.ackQueued)
		p++
		a.ReceivedPacket(p, protocol.ECNNon, time.Time{}, true, false)
		require.True(t, a.ackQueued)
		p++
		require.NotNil(t, a.GetAckFrame(true))
	}
}

func TestAckStateNoAckForNonElicitingPacketsAlone(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(1, protocol.ECNNon, time.Now(), true, false)
	require.NotNil(t, a.GetAckFrame(true))

	a.ReceivedPacket(2, protocol.ECNNon, time.Now(), false, false)
	require.Nil(t, a.GetAckFrame(false))

	a.ReceivedPacket(3, protocol.ECNNon, time.Now(), true, false)
	ack := a.GetAckFrame(false)
	require.NotNil(t, ack)
	require.Equal(t, protocol.PacketNumber(1), ack.LowestAcked())
	require.Equal(t, protocol.PacketNumber(3), ack.LargestAcked())
}

func TestAckStateDelayTimeIsNonNegative(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(0, protocol.ECNNon, time.Now().Add(time.Hour), true, false)
	ack := a.GetAckFrame(true)
	require.NotNil(t, ack)
	require.Zero(t, ack.DelayTime)
}

func TestAckStateBuildsMissingRanges(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(1, protocol.ECNNon, time.Now(), true, false)
	a.ReceivedPacket(4, protocol.ECNNon, time.Now(), true, false)
	ack := a.GetAckFrame(true)
	require.NotNil(t, ack)
	require.True(t, ack.HasMissingRanges())
	require.Equal(t, protocol.PacketNumber(4), ack.LargestAcked())
	require.Equal(t, protocol.PacketNumber(1), ack.LowestAcked())
}

func TestAckStateIgnoreBelowPrunesHistory(t *testing.T) {
	a := newTestAckState()
	for i := 1; i <= 12; i++ {
		a.ReceivedPacket(protocol.PacketNumber(i), protocol.ECNNon, time.Now(), true, false)
	}
	a.IgnoreBelow(7)
	ack := a.GetAckFrame(true)
	require.NotNil(t, ack)
	require.Equal(t, protocol.PacketNumber(12), ack.LargestAcked())
	require.Equal(t, protocol.PacketNumber(7), ack.LowestAcked())
	require.False(t, ack.HasMissingRanges())
}

func TestAckStateNoAckWhenNoneQueuedAndAlarmNotSet(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(1, protocol.ECNNon, time.Now(), true, false)
	a.ackQueued = false
	a.ackAlarm = time.Time{}
	require.Nil(t, a.GetAckFrame(true))
}

func TestAckStateGeneratesWhenAlarmExpired(t *testing.T) {
	a := newTestAckState()
	a.ReceivedPacket(1, protocol.ECNNon, time.Now(), true, false)
	a.ackQueued = false
	a.ackAlarm = time.Now().Add(-time.Minute)
	require.NotNil(t, a.GetAckFrame(true))
}

// A packet carrying crypto data queues an immediate ACK even when the
// every-second-packet threshold hasn't been reached, since the handshake
// should not wait on the delayed-ACK timer.
func TestAckStateCryptoDataQueuesImmediateAck(t *testing.T) {
	a := newTestAckState()
	receiveAndAckTen(t, a)

	a.ReceivedPacket(11, protocol.ECNNon, time.Now(), true, true)
	require.True(t, a.ackQueued)
}
