// Package handshake defines the boundary between the connection core and
// the TLS handshake engine. It carries no cryptography of its own: Driver
// is implemented by an external TLS collaborator, and this package's only
// concrete content is the transport parameter shapes the two sides
// exchange through it.
package handshake

import "github.com/coldwave-io/qcore/internal/protocol"

// Cipher is an opaque AEAD packet-protection handle. The core never
// inspects it, only installs it into the epoch it belongs to and hands it
// back to the (out-of-scope) codec collaborator for actual encrypt/decrypt.
type Cipher interface{}

// HeaderCipher is an opaque header-protection handle, kept distinct from
// Cipher because QUIC installs and uses them on slightly different
// schedules.
type HeaderCipher interface{}

// Driver drives the TLS handshake and exposes each cipher and the client's
// transport parameters as they become available. A Driver implementation
// is expected to be stateful and is owned exclusively by one Connection;
// none of its methods are safe to call concurrently, matching the
// single-goroutine-per-connection model the rest of the core assumes.
type Driver interface {
	// SetClientInitialExtensions hands the driver the client-advertised
	// extension set captured off the first Initial packet's ClientHello.
	SetClientInitialExtensions(extensions []byte)

	// SetLocalTransportParameters supplies the server's own transport
	// parameters for inclusion in its handshake flight. Must be called
	// before the driver produces its first Handshake-level output.
	SetLocalTransportParameters(params ServerTransportParameters)

	// HandleCryptoData delivers newly-available, in-order CRYPTO stream
	// bytes at the given encryption level to the TLS state machine. An
	// error here is surfaced to the caller as a CRYPTO_ERROR.
	HandleCryptoData(level protocol.EncryptionLevel, data []byte) error

	// ReadCryptoData returns the bytes at the given encryption level the
	// driver wants the core to send on the crypto stream, or nil if there
	// is nothing pending.
	ReadCryptoData(level protocol.EncryptionLevel) []byte

	// GetZeroRTTReadCipher returns the 0-RTT read cipher and its header
	// cipher once available; ok is false beforehand.
	GetZeroRTTReadCipher() (data Cipher, header HeaderCipher, ok bool)

	// GetHandshakeReadCipher returns the Handshake read data and header
	// ciphers together, installed as a pair.
	GetHandshakeReadCipher() (data Cipher, header HeaderCipher, ok bool)

	// GetHandshakeWriteCipher returns the Handshake write data and header
	// ciphers together.
	GetHandshakeWriteCipher() (data Cipher, header HeaderCipher, ok bool)

	// GetOneRTTWriteHeaderCipher returns the 1-RTT write header cipher.
	GetOneRTTWriteHeaderCipher() (HeaderCipher, bool)

	// GetOneRTTReadHeaderCipher returns the 1-RTT read header cipher,
	// paired with its data cipher, installed together.
	GetOneRTTReadHeaderCipher() (data Cipher, header HeaderCipher, ok bool)

	// GetOneRTTWriteCipher returns the 1-RTT write (data) cipher. Once it
	// has been returned once, the driver must keep returning the same
	// instance; a caller observing a *different* instance on a later call
	// is a "duplicate 1-RTT write cipher" condition, a fatal CRYPTO_ERROR
	// the caller (qcore.Connection), not this interface, is responsible
	// for detecting and raising.
	GetOneRTTWriteCipher() (Cipher, bool)

	// ClientTransportParameters returns the parameters the client sent,
	// once the driver has parsed them off the ClientHello; ok is false
	// until then.
	ClientTransportParameters() (params ClientTransportParameters, ok bool)

	// IsHandshakeDone reports whether the driver has confirmed the
	// handshake completed, i.e. received and validated the client's
	// Finished message.
	IsHandshakeDone() bool

	// PresentedSourceAddressToken returns the opaque source-address token
	// the client echoed back from an earlier session ticket, once the
	// driver has parsed it off the ClientHello's early-data extension; ok
	// is false if the client presented none. The core never interprets
	// the token bytes themselves, only whether one was presented.
	PresentedSourceAddressToken() (token []byte, ok bool)
}
