package migration

import (
	"net/netip"
	"sync"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// selfCID is one connection ID this side has issued, and the sequence
// number and stateless-reset token that go with it.
type selfCID struct {
	SequenceNumber uint64
	ID             protocol.ConnectionID
	ResetToken     protocol.StatelessResetToken
}

// SelfCIDSet is the set of connection IDs a server has advertised to its
// peer via NEW_CONNECTION_ID, plus the deterministic generator used to
// derive each ID's stateless-reset token from (secret, serverSocketAddr).
type SelfCIDSet struct {
	mutex sync.Mutex

	secret     []byte
	serverAddr netip.AddrPort

	nextSequenceNumber uint64
	active             map[uint64]*selfCID
	retirePriorTo      uint64
}

func NewSelfCIDSet(secret []byte, serverAddr netip.AddrPort) *SelfCIDSet {
	return &SelfCIDSet{
		secret:     secret,
		serverAddr: serverAddr,
		active:     make(map[uint64]*selfCID),
	}
}

// Issue mints a new connection ID with the next sequence number, deriving
// its stateless-reset token from the tracker's keying material.
func (s *SelfCIDSet) Issue(id protocol.ConnectionID) (sequenceNumber uint64, token protocol.StatelessResetToken) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seq := s.nextSequenceNumber
	s.nextSequenceNumber++
	portBytes := []byte{byte(s.serverAddr.Port()), byte(s.serverAddr.Port() >> 8)}
	tok := protocol.GenerateStatelessResetToken(s.secret, id, s.serverAddr.Addr().AsSlice(), portBytes)
	s.active[seq] = &selfCID{SequenceNumber: seq, ID: id, ResetToken: tok}
	return seq, tok
}

// RetirePriorTo retires every issued connection ID with a sequence number
// below seq, mirroring a self-issued RETIRE_CONNECTION_ID request.
func (s *SelfCIDSet) RetirePriorTo(seq uint64) []uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if seq <= s.retirePriorTo {
		return nil
	}
	s.retirePriorTo = seq
	var retired []uint64
	for n, cid := range s.active {
		if cid.SequenceNumber < seq {
			retired = append(retired, n)
			delete(s.active, n)
		}
	}
	return retired
}

// ActiveCount returns how many self-issued connection IDs are currently
// outstanding, checked against the peer's active_connection_id_limit
// transport parameter before issuing more.
func (s *SelfCIDSet) ActiveCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.active)
}
