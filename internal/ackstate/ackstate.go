// Package ackstate tracks which packets in one packet-number space have
// been received and decides when to send an ACK for them. It knows
// nothing about retransmission or loss detection; that is the
// congestion-controller collaborator's job.
package ackstate

import (
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/utils"
	"github.com/coldwave-io/qcore/internal/wire"
)

const (
	// rxPacketsBeforeAckBeforeInit is not consulted by ReceivedPacket: the
	// only packet that queues an ACK on its own is the first ack-eliciting
	// one, before any ACK has been sent; after that the single
	// rxPacketsBeforeAckAfterInit threshold applies, with no switch between
	// a before-init and an after-init value.
	rxPacketsBeforeAckBeforeInit = 1
	// rxPacketsBeforeAckAfterInit queues an ACK for every second
	// ack-eliciting packet received since the last ACK was sent.
	rxPacketsBeforeAckAfterInit = 2

	// outOfOrderAckQueueThreshold is not consulted by ReceivedPacket:
	// reordering queues an immediate ACK only when a packet arrives below
	// the largest observed number and the last ACK sent reported it missing.
	outOfOrderAckQueueThreshold = protocol.PacketNumber(1)
)

// AckState tracks received packet numbers in one packet-number space and
// the ACK frame, if any, that is currently due to be sent for them.
type AckState struct {
	rttStats *utils.RTTStats
	logger   *utils.Logger

	largestObserved             protocol.PacketNumber
	largestObservedReceivedTime time.Time
	ignoreBelow                 protocol.PacketNumber

	received map[protocol.PacketNumber]struct{}

	ackElicitingPacketsReceivedSinceLastAck int
	packetsReceivedSinceLastAck             int

	ackQueued bool
	ackAlarm  time.Time

	lastAck *wire.AckFrame

	ect0, ect1, ecnce uint64
}

func NewAckState(rttStats *utils.RTTStats, logger *utils.Logger) *AckState {
	return &AckState{
		rttStats:        rttStats,
		logger:          logger,
		largestObserved: protocol.InvalidPacketNumber,
		ignoreBelow:     protocol.InvalidPacketNumber,
		received:        make(map[protocol.PacketNumber]struct{}),
	}
}

// ReceivedPacket records that pn arrived at rcvTime, was marked with ecn,
// and whether it is ack-eliciting. It decides whether this obliges an
// immediate ACK; a packet carrying crypto data always does, since the
// handshake should not wait on the delayed-ACK timer.
func (a *AckState) ReceivedPacket(pn protocol.PacketNumber, ecn protocol.ECN, rcvTime time.Time, ackEliciting, containsCrypto bool) {
	isMissing := a.isMissing(pn)
	isOutOfOrder := pn < a.largestObserved

	if pn > a.largestObserved {
		a.largestObserved = pn
		a.largestObservedReceivedTime = rcvTime
	}

	if pn >= a.ignoreBelow {
		a.received[pn] = struct{}{}
	}

	switch ecn {
	case protocol.ECT0:
		a.ect0++
	case protocol.ECT1:
		a.ect1++
	case protocol.ECNCE:
		a.ecnce++
	}

	if !ackEliciting {
		return
	}

	a.packetsReceivedSinceLastAck++
	a.ackElicitingPacketsReceivedSinceLastAck++

	if a.lastAck == nil {
		a.ackQueued = true
	} else if isOutOfOrder && isMissing {
		a.ackQueued = true
	} else if containsCrypto {
		a.ackQueued = true
	} else if a.ackElicitingPacketsReceivedSinceLastAck >= rxPacketsBeforeAckAfterInit {
		a.ackQueued = true
	}

	if a.ackQueued {
		a.ackAlarm = time.Time{}
	} else if a.ackAlarm.IsZero() {
		a.ackAlarm = rcvTime.Add(protocol.MaxAckDelay)
	}
}

// isMissing reports whether pn falls below the largest packet number
// already covered by the last ACK we sent, i.e. it was reported missing.
func (a *AckState) isMissing(pn protocol.PacketNumber) bool {
	if a.lastAck == nil {
		return false
	}
	return pn <= a.lastAck.LargestAcked() && !a.lastAck.AcksPacket(pn)
}

// IgnoreBelow raises the threshold below which packet numbers are no
// longer tracked individually; used once a packet number is known to have
// already been acknowledged and retired.
func (a *AckState) IgnoreBelow(pn protocol.PacketNumber) {
	if pn <= a.ignoreBelow {
		return
	}
	a.ignoreBelow = pn
	for p := range a.received {
		if p < pn {
			delete(a.received, p)
		}
	}
}

// LargestObserved returns the highest packet number seen so far in this
// space, or protocol.InvalidPacketNumber if none has arrived yet.
func (a *AckState) LargestObserved() protocol.PacketNumber { return a.largestObserved }

// GetAlarmTimeout returns when a delayed ACK must be sent if nothing else
// triggers one sooner. A zero time means no alarm is set.
func (a *AckState) GetAlarmTimeout() time.Time { return a.ackAlarm }

// GetAckFrame returns the ACK frame due for this packet-number space, or
// nil if none is due. If onlyIfQueued is true, a frame is generated only
// when an ACK is queued or the delayed-ACK alarm has expired; if false, any
// ack-eliciting packet received since the last ACK also triggers one.
func (a *AckState) GetAckFrame(onlyIfQueued bool) *wire.AckFrame {
	if !a.ackQueued {
		if onlyIfQueued {
			if a.ackAlarm.IsZero() || time.Now().Before(a.ackAlarm) {
				return nil
			}
		} else if a.ackElicitingPacketsReceivedSinceLastAck == 0 {
			return nil
		}
	}
	if len(a.received) == 0 {
		return nil
	}

	ranges := a.buildRanges()
	delay := time.Since(a.largestObservedReceivedTime)
	if delay < 0 {
		delay = 0
	}

	ack := &wire.AckFrame{
		AckRanges: ranges,
		DelayTime: protocol.ByteCount(delay),
		ECT0:      a.ect0,
		ECT1:      a.ect1,
		ECNCE:     a.ecnce,
	}

	a.lastAck = ack
	a.ackQueued = false
	a.ackAlarm = time.Time{}
	a.ackElicitingPacketsReceivedSinceLastAck = 0
	a.packetsReceivedSinceLastAck = 0
	return ack
}

func (a *AckState) buildRanges() []wire.AckRange {
	pns := make([]protocol.PacketNumber, 0, len(a.received))
	for pn := range a.received {
		pns = append(pns, pn)
	}
	sortDesc(pns)

	var ranges []wire.AckRange
	for _, pn := range pns {
		if len(ranges) > 0 && ranges[len(ranges)-1].Smallest == pn+1 {
			ranges[len(ranges)-1].Smallest = pn
			continue
		}
		ranges = append(ranges, wire.AckRange{Smallest: pn, Largest: pn})
	}
	return ranges
}

func sortDesc(pns []protocol.PacketNumber) {
	for i := 1; i < len(pns); i++ {
		for j := i; j > 0 && pns[j] > pns[j-1]; j-- {
			pns[j], pns[j-1] = pns[j-1], pns[j]
		}
	}
}
