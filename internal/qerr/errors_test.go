package qerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransportErrorIs(t *testing.T) {
	err := NewTransportError(ProtocolViolation, "bad frame")
	require.True(t, errors.Is(err, NewTransportError(ProtocolViolation, "")))
	require.False(t, errors.Is(err, NewTransportError(FlowControlError, "")))
}

func TestTransportErrorMessage(t *testing.T) {
	err := NewTransportError(StreamStateError, "stream already closed")
	require.Equal(t, "STREAM_STATE_ERROR: stream already closed", err.Error())
}

func TestApplicationErrorIs(t *testing.T) {
	err := &ApplicationError{ErrorCode: 7}
	require.True(t, errors.Is(err, &ApplicationError{ErrorCode: 7}))
	require.False(t, errors.Is(err, &ApplicationError{ErrorCode: 8}))
}

func TestStreamErrorMessage(t *testing.T) {
	err := &StreamError{StreamID: 4, ErrorCode: 1, Remote: true}
	require.Contains(t, err.Error(), "remote")
	require.Contains(t, err.Error(), "stream 4")
}

func TestUnknownErrorCodeString(t *testing.T) {
	require.Contains(t, TransportErrorCode(0x42).String(), "unknown")
}
