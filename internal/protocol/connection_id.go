package protocol

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// ConnectionID is a QUIC connection ID, up to 20 bytes as required by v1 and
// draft-29 (RFC 8999 allows longer IDs for greasing versions, not modeled
// here since the core only ever speaks the versions in IsValidTransportVersion).
type ConnectionID []byte

const maxConnectionIDLen = 20

// GenerateConnectionID generates a connection ID of the given length using
// a cryptographically secure random source.
func GenerateConnectionID(length int) (ConnectionID, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return ConnectionID(b), nil
}

func (c ConnectionID) Equal(other ConnectionID) bool { return bytes.Equal(c, other) }
func (c ConnectionID) Len() int                      { return len(c) }
func (c ConnectionID) Bytes() []byte                 { return []byte(c) }

func (c ConnectionID) String() string {
	if c.Len() == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("%x", c.Bytes())
}

// StatelessResetToken is the 16-byte token a server attaches to a
// self-issued connection ID, used to recognize a stateless reset.
type StatelessResetToken [16]byte

// GenerateStatelessResetToken derives a deterministic token for cid, keyed
// on secret, so that a reset can be recognized without retaining per-CID
// state. extra lets callers fold additional context (e.g. the server
// socket address) into the derivation.
func GenerateStatelessResetToken(secret []byte, cid ConnectionID, extra ...[]byte) StatelessResetToken {
	mac := hmac.New(sha256.New, secret)
	for _, e := range extra {
		mac.Write(e)
	}
	mac.Write(cid.Bytes())
	var token StatelessResetToken
	copy(token[:], mac.Sum(nil))
	return token
}
