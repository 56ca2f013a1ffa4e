package flowcontrol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/utils"
)

func TestConnectionFlowControllerBlocksAtSendWindow(t *testing.T) {
	c := NewConnectionFlowController(100, 1000, 50, &utils.RTTStats{})
	require.False(t, c.IsBlocked())
	c.AddBytesSent(50)
	require.True(t, c.IsBlocked())
	c.UpdateSendWindow(100)
	require.False(t, c.IsBlocked())
}

func TestConnectionFlowControllerRejectsOverLimit(t *testing.T) {
	c := NewConnectionFlowController(100, 1000, 50, &utils.RTTStats{})
	err := c.addIncrement(101)
	require.Error(t, err)
}

func TestStreamFlowControllerPropagatesToConnection(t *testing.T) {
	conn := NewConnectionFlowController(1000, 10000, 1000, &utils.RTTStats{})
	s := NewStreamFlowController(4, conn, 100, 1000, 100, &utils.RTTStats{})

	require.NoError(t, s.UpdateHighestReceived(50, false))
	require.NoError(t, s.UpdateHighestReceived(80, true))

	err := s.UpdateHighestReceived(90, false)
	require.Error(t, err)
}

func TestStreamFlowControllerSendWindowIsMinOfBoth(t *testing.T) {
	conn := NewConnectionFlowController(1000, 10000, 30, &utils.RTTStats{})
	s := NewStreamFlowController(4, conn, 100, 1000, 100, &utils.RTTStats{})

	require.Equal(t, protocol.ByteCount(30), s.SendWindowSize())
}

func TestStreamFlowControllerWindowUpdateOnRead(t *testing.T) {
	conn := NewConnectionFlowController(1000, 10000, 1000, &utils.RTTStats{})
	s := NewStreamFlowController(4, conn, 100, 1000, 100, &utils.RTTStats{})

	streamUpdate, _ := s.AddBytesRead(80)
	require.NotZero(t, streamUpdate)
}
