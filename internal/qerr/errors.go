package qerr

import "fmt"

// TransportError is sent in a CONNECTION_CLOSE frame with a transport error
// code (frame type 0x1c). Grounded on the teacher's quic_error pattern of
// wrapping a code and a human-readable reason in a single error value the
// rest of the connection core can propagate with plain Go error handling.
type TransportError struct {
	ErrorCode    TransportErrorCode
	FrameType    uint64 // frame that triggered the error, 0 if not frame-specific
	ErrorMessage string
}

func (e *TransportError) Error() string {
	if e.ErrorMessage == "" {
		return e.ErrorCode.String()
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorMessage)
}

func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	return ok && t.ErrorCode == e.ErrorCode
}

func NewTransportError(code TransportErrorCode, msg string) *TransportError {
	return &TransportError{ErrorCode: code, ErrorMessage: msg}
}

// ApplicationError is sent in a CONNECTION_CLOSE frame with an
// application-layer error code (frame type 0x1d). The core never
// interprets the code; it is opaque and supplied by the application
// collaborator closing the connection.
type ApplicationError struct {
	ErrorCode    uint64
	ErrorMessage string
}

func (e *ApplicationError) Error() string {
	if e.ErrorMessage == "" {
		return fmt.Sprintf("Application error %#x", e.ErrorCode)
	}
	return fmt.Sprintf("Application error %#x: %s", e.ErrorCode, e.ErrorMessage)
}

func (e *ApplicationError) Is(target error) bool {
	t, ok := target.(*ApplicationError)
	return ok && t.ErrorCode == e.ErrorCode
}

// StreamError reports why a stream was reset or had its sending side
// stopped. It never closes the connection, only the one stream.
type StreamError struct {
	StreamID  uint64
	ErrorCode uint64
	Remote    bool // true if the peer initiated the reset/stop
}

func (e *StreamError) Error() string {
	who := "local"
	if e.Remote {
		who = "remote"
	}
	return fmt.Sprintf("stream %d reset by %s with error code %#x", e.StreamID, who, e.ErrorCode)
}

// IdleTimeoutError is returned when the connection's idle timeout fires
// with no ack-eliciting activity on either side.
type IdleTimeoutError struct{}

func (IdleTimeoutError) Error() string { return "timeout: no recent network activity" }

// HandshakeTimeoutError is returned when the handshake does not complete
// before the configured handshake timeout.
type HandshakeTimeoutError struct{}

func (HandshakeTimeoutError) Error() string { return "timeout: handshake did not complete in time" }
