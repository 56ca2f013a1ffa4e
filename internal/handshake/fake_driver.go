package handshake

import "github.com/coldwave-io/qcore/internal/protocol"

// FakeDriver is a scriptable Driver used by qcore's tests, standing in for
// a real TLS library the core deliberately never vendors. Every "become
// available" transition is triggered explicitly by the test rather than by
// driving real cryptographic state.
type FakeDriver struct {
	clientExtensions []byte
	localParams      ServerTransportParameters

	cryptoIn  map[protocol.EncryptionLevel][]byte
	cryptoOut map[protocol.EncryptionLevel][]byte

	zeroRTTRead, zeroRTTReadHdr           Cipher
	zeroRTTReadOK                         bool
	handshakeRead, handshakeReadHdr       Cipher
	handshakeReadOK                       bool
	handshakeWrite, handshakeWriteHdr     Cipher
	handshakeWriteOK                      bool
	oneRTTWriteHdr                        HeaderCipher
	oneRTTWriteHdrOK                      bool
	oneRTTRead, oneRTTReadHdr             Cipher
	oneRTTReadOK                          bool
	oneRTTWrite                           Cipher
	oneRTTWriteOK                         bool
	clientParams                          ClientTransportParameters
	clientParamsOK                        bool
	done                                  bool

	sourceAddressToken   []byte
	sourceAddressTokenOK bool
}

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		cryptoIn:  make(map[protocol.EncryptionLevel][]byte),
		cryptoOut: make(map[protocol.EncryptionLevel][]byte),
	}
}

func (f *FakeDriver) SetClientInitialExtensions(ext []byte) { f.clientExtensions = ext }
func (f *FakeDriver) ClientExtensions() []byte              { return f.clientExtensions }

func (f *FakeDriver) SetLocalTransportParameters(p ServerTransportParameters) { f.localParams = p }
func (f *FakeDriver) LocalTransportParameters() ServerTransportParameters     { return f.localParams }

func (f *FakeDriver) HandleCryptoData(level protocol.EncryptionLevel, data []byte) error {
	f.cryptoIn[level] = append(f.cryptoIn[level], data...)
	return nil
}

func (f *FakeDriver) ReadCryptoData(level protocol.EncryptionLevel) []byte {
	data := f.cryptoOut[level]
	f.cryptoOut[level] = nil
	return data
}

// QueueCryptoOut lets a test stage bytes for ReadCryptoData to return.
func (f *FakeDriver) QueueCryptoOut(level protocol.EncryptionLevel, data []byte) {
	f.cryptoOut[level] = append(f.cryptoOut[level], data...)
}

func (f *FakeDriver) MakeZeroRTTReadAvailable(data, header Cipher) {
	f.zeroRTTRead, f.zeroRTTReadHdr, f.zeroRTTReadOK = data, header, true
}
func (f *FakeDriver) GetZeroRTTReadCipher() (Cipher, HeaderCipher, bool) {
	return f.zeroRTTRead, f.zeroRTTReadHdr, f.zeroRTTReadOK
}

func (f *FakeDriver) MakeHandshakeReadAvailable(data, header Cipher) {
	f.handshakeRead, f.handshakeReadHdr, f.handshakeReadOK = data, header, true
}
func (f *FakeDriver) GetHandshakeReadCipher() (Cipher, HeaderCipher, bool) {
	return f.handshakeRead, f.handshakeReadHdr, f.handshakeReadOK
}

func (f *FakeDriver) MakeHandshakeWriteAvailable(data, header Cipher) {
	f.handshakeWrite, f.handshakeWriteHdr, f.handshakeWriteOK = data, header, true
}
func (f *FakeDriver) GetHandshakeWriteCipher() (Cipher, HeaderCipher, bool) {
	return f.handshakeWrite, f.handshakeWriteHdr, f.handshakeWriteOK
}

func (f *FakeDriver) MakeOneRTTWriteHeaderAvailable(h HeaderCipher) {
	f.oneRTTWriteHdr, f.oneRTTWriteHdrOK = h, true
}
func (f *FakeDriver) GetOneRTTWriteHeaderCipher() (HeaderCipher, bool) {
	return f.oneRTTWriteHdr, f.oneRTTWriteHdrOK
}

func (f *FakeDriver) MakeOneRTTReadAvailable(data Cipher, header HeaderCipher) {
	f.oneRTTRead, f.oneRTTReadHdr, f.oneRTTReadOK = data, header, true
}
func (f *FakeDriver) GetOneRTTReadHeaderCipher() (Cipher, HeaderCipher, bool) {
	return f.oneRTTRead, f.oneRTTReadHdr, f.oneRTTReadOK
}

// MakeOneRTTWriteAvailable arms GetOneRTTWriteCipher to return c. Calling it
// a second time with a different cipher lets a test exercise the "duplicate
// 1-RTT write cipher" fatal-error path in qcore.Connection.
func (f *FakeDriver) MakeOneRTTWriteAvailable(c Cipher) {
	f.oneRTTWrite, f.oneRTTWriteOK = c, true
}
func (f *FakeDriver) GetOneRTTWriteCipher() (Cipher, bool) {
	return f.oneRTTWrite, f.oneRTTWriteOK
}

func (f *FakeDriver) SetClientTransportParameters(p ClientTransportParameters) {
	f.clientParams, f.clientParamsOK = p, true
}
func (f *FakeDriver) ClientTransportParameters() (ClientTransportParameters, bool) {
	return f.clientParams, f.clientParamsOK
}

func (f *FakeDriver) SetHandshakeDone(done bool) { f.done = done }
func (f *FakeDriver) IsHandshakeDone() bool       { return f.done }

// PresentSourceAddressToken arms PresentedSourceAddressToken to report that
// the client echoed token back.
func (f *FakeDriver) PresentSourceAddressToken(token []byte) {
	f.sourceAddressToken, f.sourceAddressTokenOK = token, true
}
func (f *FakeDriver) PresentedSourceAddressToken() ([]byte, bool) {
	return f.sourceAddressToken, f.sourceAddressTokenOK
}

var _ Driver = (*FakeDriver)(nil)
