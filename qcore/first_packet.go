package qcore

import (
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
)

// kMaxCIDGenerationAttempts is how many times HandleFirstPacket retries
// connection ID generation when a rejector is installed.
const kMaxCIDGenerationAttempts = 16

// HandleFirstPacket is the cold path run exactly once per connection: it
// validates the invariant header, allocates the
// server's own connection ID, installs the deterministic Initial ciphers,
// and records the peer's original address. It never processes frames;
// readOpen falls through to the regular per-packet pipeline for the same
// datagram once this returns.
func (c *Connection) HandleFirstPacket(data []byte, peer netip.AddrPort, now time.Time) error {
	hdr, err := c.codec.ParseInvariantHeader(data)
	if err != nil {
		c.dropPacket("invalid invariant header on first packet")
		return nil
	}
	if !hdr.IsLongHeader {
		c.dropPacket("first packet must use a long header")
		return nil
	}
	if hdr.Version == protocol.VersionUnknown {
		// Servers never receive version-negotiation packets themselves;
		// Version 0 on a long header is exactly that packet type.
		c.dropPacket("server received a version negotiation packet")
		return nil
	}
	if hdr.DestConnID.Len() < protocol.MinConnectionIDLenInitial {
		c.dropPacket("destination connection id shorter than minimum")
		return nil
	}

	newCID, err := c.allocateServerConnectionID()
	if err != nil {
		return qerr.NewTransportError(qerr.InternalError, err.Error())
	}

	readCipher, readHeader, writeCipher, writeHeader, err := c.initialKeys.DeriveInitialCiphers(hdr.DestConnID, hdr.Version, protocol.PerspectiveServer)
	if err != nil {
		return qerr.NewTransportError(qerr.InternalError, "failed to derive initial ciphers")
	}
	c.codec.InstallCipher(protocol.EncryptionInitial, CipherRead, readCipher, readHeader)
	c.codec.InstallCipher(protocol.EncryptionInitial, CipherWrite, writeCipher, writeHeader)

	c.originalDestConnID = hdr.DestConnID
	c.activeServerConnID = newCID
	c.activeClientConnID = hdr.SrcConnID
	c.originalPeerAddress = peer
	c.peerAddress = peer
	c.migrationTracker = newMigrationTracker(c.settings, c.serverAddr)

	// Hand the client's first-flight bytes to the handshake driver; the
	// ClientHello extension set itself is only available once the driver
	// has decrypted and parsed it, which is a concern of the (out-of-
	// scope) TLS collaborator, not this core.
	c.driver.SetClientInitialExtensions(data)
	c.driver.SetLocalTransportParameters(c.buildServerTransportParameters(newCID))

	c.logger.Infof("bootstrapped connection %s <- %s (version %s)", newCID, peer, hdr.Version)
	return nil
}

func (c *Connection) allocateServerConnectionID() (protocol.ConnectionID, error) {
	for attempt := 0; attempt < kMaxCIDGenerationAttempts; attempt++ {
		cid, err := c.cidAllocator.Generate(c.settings.ConnectionIDLength)
		if err != nil {
			return nil, err
		}
		if c.cidRejector != nil && c.cidRejector.Reject(cid) {
			continue
		}
		return cid, nil
	}
	return nil, errTooManyCIDRejections
}

var errTooManyCIDRejections = qerr.NewTransportError(qerr.InternalError, "failed to allocate a non-colliding connection id after 16 attempts")
