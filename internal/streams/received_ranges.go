package streams

import (
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/utils"
	"github.com/coldwave-io/qcore/internal/utils/tree"
)

// receivedRanges tracks which byte ranges of a stream's receive buffer have
// actually arrived, using the same interval tree the read buffer itself
// would use to stay ordered by offset and non-overlapping. It answers one
// question a stream's head-of-line latch needs: does a read starting at
// offset 0 stall behind a hole, or has everything up to the highest offset
// seen so far arrived contiguously.
type receivedRanges struct {
	tree          *tree.Btree
	highestOffset protocol.ByteCount
}

func newReceivedRanges() *receivedRanges {
	return &receivedRanges{tree: tree.New()}
}

// add records that bytes [start, end) arrived.
func (r *receivedRanges) add(start, end protocol.ByteCount) {
	if end > r.highestOffset {
		r.highestOffset = end
	}
	if end <= start {
		return
	}
	r.tree.Insert(&utils.ByteInterval{Start: start, End: end - 1})
}

// hasGap reports whether the ranges received so far leave a hole before
// highestOffset.
func (r *receivedRanges) hasGap() bool {
	if r.highestOffset == 0 {
		return false
	}
	var contiguous protocol.ByteCount
	gap := false
	r.tree.Ascend(func(n *tree.Node, i int) bool {
		iv := n.Value.(*utils.ByteInterval)
		if iv.Start > contiguous {
			gap = true
			return false
		}
		if end := iv.End + 1; end > contiguous {
			contiguous = end
		}
		return true
	})
	return gap || contiguous < r.highestOffset
}
