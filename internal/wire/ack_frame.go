package wire

import "github.com/coldwave-io/qcore/internal/protocol"

// AckRange is one contiguous range of acknowledged packet numbers,
// inclusive on both ends. Grounded on the teacher's internal/wire/ack_range.go.
type AckRange struct {
	Smallest protocol.PacketNumber
	Largest  protocol.PacketNumber
}

// AckFrame is an ACK frame. ACK_ECN is treated as a plain ACK and does not
// get its own type.
type AckFrame struct {
	baseFrame

	// AckRanges is ordered from largest to smallest, matching wire order.
	AckRanges []AckRange
	DelayTime protocol.ByteCount // placeholder unit; real decode would be a time.Duration from the codec

	ECT0, ECT1, ECNCE uint64
}

func (f *AckFrame) LargestAcked() protocol.PacketNumber {
	if len(f.AckRanges) == 0 {
		return protocol.InvalidPacketNumber
	}
	return f.AckRanges[0].Largest
}

func (f *AckFrame) LowestAcked() protocol.PacketNumber {
	if len(f.AckRanges) == 0 {
		return protocol.InvalidPacketNumber
	}
	return f.AckRanges[len(f.AckRanges)-1].Smallest
}

func (f *AckFrame) HasMissingRanges() bool { return len(f.AckRanges) > 1 }

// AcksPacket reports whether pn falls within one of the ranges.
func (f *AckFrame) AcksPacket(pn protocol.PacketNumber) bool {
	for _, r := range f.AckRanges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}
