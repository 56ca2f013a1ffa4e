package qcore

import (
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// sentPacketTracker remembers the wall-clock send time of recently sent
// packet numbers in one packet-number space, just enough to turn an
// incoming ACK into an RTT sample. Actual retransmission bookkeeping
// belongs to the congestion controller collaborator; this only answers
// "when did we send packet N".
type sentPacketTracker struct {
	times map[protocol.PacketNumber]time.Time
}

func newSentPacketTracker() *sentPacketTracker {
	return &sentPacketTracker{times: make(map[protocol.PacketNumber]time.Time)}
}

// RecordSent notes that pn was handed to the network at now. The external
// writer (worker/codec collaborator) calls this once per transmitted
// packet; qcore never sends bytes itself.
func (t *sentPacketTracker) RecordSent(pn protocol.PacketNumber, now time.Time) {
	t.times[pn] = now
}

// TakeSendTime returns and forgets the send time recorded for pn.
func (t *sentPacketTracker) TakeSendTime(pn protocol.PacketNumber) (time.Time, bool) {
	v, ok := t.times[pn]
	if ok {
		delete(t.times, pn)
	}
	return v, ok
}

// ForgetBelow drops every recorded send time below pn, once it is known to
// have been superseded by a later acknowledgement.
func (t *sentPacketTracker) ForgetBelow(pn protocol.PacketNumber) {
	for k := range t.times {
		if k < pn {
			delete(t.times, k)
		}
	}
}

// RecordPacketSent is the writer-facing hook for sentPacketTracker.RecordSent,
// exposed on Connection since the tracker itself is unexported.
func (c *Connection) RecordPacketSent(space protocol.PacketNumberSpace, pn protocol.PacketNumber, now time.Time) {
	c.sentTimes[space].RecordSent(pn, now)
}
