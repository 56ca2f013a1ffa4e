// Package flowcontrol implements the per-stream and per-connection
// send/receive windows the connection core enforces. It tracks bytes sent
// and read, and decides when a window update is owed to the peer; it
// never decides what frame carries that update — that is the codec's job.
package flowcontrol

import (
	"sync"
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/utils"
)

type baseFlowController struct {
	mutex sync.RWMutex

	rttStats *utils.RTTStats

	bytesSent  protocol.ByteCount
	sendWindow protocol.ByteCount

	lastWindowUpdateTime time.Time

	bytesRead                 protocol.ByteCount
	highestReceived           protocol.ByteCount
	receiveWindow             protocol.ByteCount
	receiveWindowIncrement    protocol.ByteCount
	maxReceiveWindowIncrement protocol.ByteCount
}

func (c *baseFlowController) AddBytesSent(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.bytesSent += n
}

// UpdateSendWindow is called after the peer raises its advertised limit; it
// only ever grows the window, never shrinks it.
func (c *baseFlowController) UpdateSendWindow(offset protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if offset > c.sendWindow {
		c.sendWindow = offset
	}
}

func (c *baseFlowController) sendWindowSize() protocol.ByteCount {
	// happens during the handshake, before the peer's transport parameters
	// (or first MAX_DATA/MAX_STREAM_DATA) have set a send window at all.
	if c.bytesSent > c.sendWindow {
		return 0
	}
	return c.sendWindow - c.bytesSent
}

func (c *baseFlowController) AddBytesRead(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.bytesRead == 0 {
		c.lastWindowUpdateTime = time.Now()
	}
	c.bytesRead += n
}

// getWindowUpdate returns the new receive-window offset to advertise, or 0
// if the consumed fraction hasn't crossed protocol.WindowUpdateThreshold
// yet and no update is owed.
func (c *baseFlowController) getWindowUpdate() protocol.ByteCount {
	bytesRemaining := c.receiveWindow - c.bytesRead
	if bytesRemaining >= protocol.ByteCount(float64(c.receiveWindowIncrement)*(1-protocol.WindowUpdateThreshold)) {
		return 0
	}

	c.maybeAdjustWindowIncrement()
	c.receiveWindow = c.bytesRead + c.receiveWindowIncrement
	c.lastWindowUpdateTime = time.Now()
	return c.receiveWindow
}

func (c *baseFlowController) IsBlocked() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.sendWindowSize() == 0
}

// maybeAdjustWindowIncrement doubles the receive-window increment (up to
// maxReceiveWindowIncrement) if updates are needed more often than once
// per smoothed RTT (4 × WindowUpdateThreshold × RTT).
func (c *baseFlowController) maybeAdjustWindowIncrement() {
	if c.lastWindowUpdateTime.IsZero() {
		return
	}

	rtt := c.rttStats.SmoothedRTT()
	if rtt == 0 {
		return
	}

	timeSinceLastWindowUpdate := time.Since(c.lastWindowUpdateTime)
	if timeSinceLastWindowUpdate >= 4*time.Duration(protocol.WindowUpdateThreshold*float64(rtt)) {
		return
	}
	c.receiveWindowIncrement = utils.Min(2*c.receiveWindowIncrement, c.maxReceiveWindowIncrement)
}

func (c *baseFlowController) checkFlowControlViolation() bool {
	return c.highestReceived > c.receiveWindow
}
