package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamIDQuartets(t *testing.T) {
	require.Equal(t, PerspectiveClient, StreamID(0).InitiatedBy())
	require.Equal(t, PerspectiveServer, StreamID(1).InitiatedBy())
	require.Equal(t, StreamDirectionBidi, StreamID(0).Direction())
	require.Equal(t, StreamDirectionUni, StreamID(2).Direction())
	require.False(t, StreamID(0).IsUniDirectional())
	require.True(t, StreamID(3).IsUniDirectional())
}

func TestFirstStreamIDPerQuartet(t *testing.T) {
	require.Equal(t, StreamID(0), FirstStreamID(PerspectiveClient, StreamDirectionBidi))
	require.Equal(t, StreamID(1), FirstStreamID(PerspectiveServer, StreamDirectionBidi))
	require.Equal(t, StreamID(2), FirstStreamID(PerspectiveClient, StreamDirectionUni))
	require.Equal(t, StreamID(3), FirstStreamID(PerspectiveServer, StreamDirectionUni))
}

func TestStreamIDNumRoundTrip(t *testing.T) {
	for num := StreamNum(1); num < 50; num++ {
		id := StreamIDFromNum(PerspectiveClient, StreamDirectionBidi, num)
		require.Equal(t, num, id.Num(PerspectiveClient, StreamDirectionBidi))
		require.Equal(t, StreamIDIncrement, StreamID(4))
	}
}

func TestIsLocalIsRemote(t *testing.T) {
	id := FirstStreamID(PerspectiveClient, StreamDirectionBidi)
	require.True(t, id.IsLocal(PerspectiveClient))
	require.True(t, id.IsRemote(PerspectiveServer))
	require.False(t, id.IsLocal(PerspectiveServer))
}
