package flowcontrol

import (
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/utils"
)

// ConnectionFlowController enforces the connection-wide receive and send
// windows that bound the sum of all streams' data.
type ConnectionFlowController struct {
	baseFlowController
}

func NewConnectionFlowController(receiveWindow, maxReceiveWindow, sendWindow protocol.ByteCount, rttStats *utils.RTTStats) *ConnectionFlowController {
	return &ConnectionFlowController{
		baseFlowController: baseFlowController{
			rttStats:                  rttStats,
			receiveWindow:             receiveWindow,
			maxReceiveWindowIncrement: maxReceiveWindow,
			receiveWindowIncrement:    receiveWindow,
			sendWindow:                sendWindow,
		},
	}
}

// addIncrement is called by a StreamFlowController when one of its streams
// received new data, so the connection-wide highestReceived total stays in
// sync and can be checked for a connection-level violation.
func (c *ConnectionFlowController) addIncrement(n protocol.ByteCount) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.highestReceived += n
	if c.checkFlowControlViolation() {
		return qerr.NewTransportError(qerr.FlowControlError, "received more data than allowed")
	}
	return nil
}

func (c *ConnectionFlowController) GetWindowUpdate() protocol.ByteCount {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.getWindowUpdate()
}

func (c *ConnectionFlowController) SendWindowSize() protocol.ByteCount {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.sendWindowSize()
}
