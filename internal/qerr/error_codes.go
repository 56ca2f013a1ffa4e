// Package qerr defines the transport and application error codes a
// ServerStateMachine reports to its peer and to its caller. Encoding these
// codes onto the wire is the codec collaborator's job; this package only
// carries the values and the Go error types built on top of them.
package qerr

import "fmt"

// TransportErrorCode is one of the error codes defined by the QUIC
// transport (RFC 9000 §20.1). Crypto alert codes occupy 0x100-0x1ff and are
// reported by the TLS collaborator, not minted here.
type TransportErrorCode uint64

const (
	NoError                  TransportErrorCode = 0x0
	InternalError            TransportErrorCode = 0x1
	ConnectionRefused        TransportErrorCode = 0x2
	FlowControlError         TransportErrorCode = 0x3
	StreamLimitError         TransportErrorCode = 0x4
	StreamStateError         TransportErrorCode = 0x5
	FinalSizeError           TransportErrorCode = 0x6
	FrameEncodingError       TransportErrorCode = 0x7
	TransportParameterError  TransportErrorCode = 0x8
	ConnectionIDLimitError   TransportErrorCode = 0x9
	ProtocolViolation        TransportErrorCode = 0xa
	InvalidToken             TransportErrorCode = 0xb
	ApplicationErrorCode     TransportErrorCode = 0xc
	CryptoBufferExceeded     TransportErrorCode = 0xd
	KeyUpdateError           TransportErrorCode = 0xe
	AEADLimitReached         TransportErrorCode = 0xf
	NoViablePath             TransportErrorCode = 0x10
	// InvalidMigration is raised when a migration attempt fails validation
	// (no viable path, active migration already validating, or disabled by
	// configuration).
	InvalidMigration TransportErrorCode = 0x11

	// CryptoErrorBase is the low end of the crypto alert code range
	// (RFC 9001 §4.8); the TLS collaborator supplies the specific alert
	// number, but qcore raises this base code for internal handshake
	// invariant violations it detects itself (e.g. a changed 1-RTT write
	// cipher instance) that never reached the TLS engine.
	CryptoErrorBase TransportErrorCode = 0x100
)

func (c TransportErrorCode) isCryptoError() bool { return c >= 0x100 && c < 0x200 }

func (c TransportErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitError:
		return "STREAM_LIMIT_ERROR"
	case StreamStateError:
		return "STREAM_STATE_ERROR"
	case FinalSizeError:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ConnectionIDLimitError:
		return "CONNECTION_ID_LIMIT_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case InvalidToken:
		return "INVALID_TOKEN"
	case ApplicationErrorCode:
		return "APPLICATION_ERROR"
	case CryptoBufferExceeded:
		return "CRYPTO_BUFFER_EXCEEDED"
	case KeyUpdateError:
		return "KEY_UPDATE_ERROR"
	case AEADLimitReached:
		return "AEAD_LIMIT_REACHED"
	case NoViablePath:
		return "NO_VIABLE_PATH"
	case InvalidMigration:
		return "INVALID_MIGRATION"
	default:
		if c.isCryptoError() {
			return "CRYPTO_ERROR"
		}
		return fmt.Sprintf("unknown error code: %#x", uint64(c))
	}
}
