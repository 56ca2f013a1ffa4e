package flowcontrol

import (
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/utils"
)

// StreamFlowController enforces one stream's send and receive windows and
// coordinates with the connection-level controller so a single stream
// cannot exceed the connection's aggregate budget.
type StreamFlowController struct {
	baseFlowController

	streamID protocol.StreamID
	conn     *ConnectionFlowController

	receivedFinalOffset bool
}

func NewStreamFlowController(streamID protocol.StreamID, conn *ConnectionFlowController, receiveWindow, maxReceiveWindow, sendWindow protocol.ByteCount, rttStats *utils.RTTStats) *StreamFlowController {
	return &StreamFlowController{
		streamID: streamID,
		conn:     conn,
		baseFlowController: baseFlowController{
			rttStats:                  rttStats,
			receiveWindow:             receiveWindow,
			maxReceiveWindowIncrement: maxReceiveWindow,
			receiveWindowIncrement:    receiveWindow,
			sendWindow:                sendWindow,
		},
	}
}

// UpdateHighestReceived records that the peer has sent up to byteOffset on
// this stream, optionally marking it final (a FIN or RESET_STREAM final
// size). It returns a *qerr.TransportError if this violates the stream's
// advertised receive window or contradicts a previously reported final
// size.
func (c *StreamFlowController) UpdateHighestReceived(byteOffset protocol.ByteCount, final bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if final && c.receivedFinalOffset && byteOffset != c.highestReceived {
		return qerr.NewTransportError(qerr.FinalSizeError, "final size changed")
	}
	if c.receivedFinalOffset && byteOffset > c.highestReceived {
		return qerr.NewTransportError(qerr.FinalSizeError, "received data beyond the final size")
	}

	if byteOffset <= c.highestReceived {
		if final {
			c.receivedFinalOffset = true
		}
		return nil
	}

	increment := byteOffset - c.highestReceived
	c.highestReceived = byteOffset
	if final {
		c.receivedFinalOffset = true
	}
	if c.checkFlowControlViolation() {
		return qerr.NewTransportError(qerr.FlowControlError, "received more data than allowed")
	}
	return c.conn.addIncrement(increment)
}

// AddBytesRead records n local application bytes consumed and
// returns the stream- and connection-level window updates due, if any (0
// meaning none is owed at that level).
func (c *StreamFlowController) AddBytesRead(n protocol.ByteCount) (streamUpdate, connUpdate protocol.ByteCount) {
	c.baseFlowController.AddBytesRead(n)
	c.conn.AddBytesRead(n)

	c.mutex.Lock()
	streamUpdate = c.getWindowUpdate()
	c.mutex.Unlock()
	connUpdate = c.conn.GetWindowUpdate()
	return
}

// SendWindowSize reports how many more bytes this stream may send before
// it becomes either stream- or connection-flow-control blocked.
func (c *StreamFlowController) SendWindowSize() protocol.ByteCount {
	c.mutex.RLock()
	streamSize := c.sendWindowSize()
	c.mutex.RUnlock()
	return utils.Min(streamSize, c.conn.SendWindowSize())
}

func (c *StreamFlowController) IsStreamFlowControlBlocked() bool { return c.IsBlocked() }

func (c *StreamFlowController) IsConnectionFlowControlBlocked() bool { return c.conn.IsBlocked() }
