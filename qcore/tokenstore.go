package qcore

import (
	"net/netip"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// sourceAddressTokenStore is the capped most-recently-used list of client IPs behind
// validateAndUpdateSourceToken. Persisting the updated MRU list to the
// session-ticket store is modeled as a single-flight'd derivation so that
// two connections racing to update the same client's entry collapse into
// one write.
type sourceAddressTokenStore struct {
	mutex sync.Mutex
	mru   []netip.Addr // most-recently-used at the end
	max   int

	group      singleflight.Group
	persist    func(addrs []netip.Addr)
}

func newSourceAddressTokenStore(max int, persist func([]netip.Addr)) *sourceAddressTokenStore {
	if persist == nil {
		persist = func([]netip.Addr) {}
	}
	return &sourceAddressTokenStore{max: max, persist: persist}
}

// match reports whether ip is already in the list, moving it to the MRU
// end if so, and evicting the LRU entry if the list is at capacity and ip
// is new.
func (s *sourceAddressTokenStore) match(ip netip.Addr) bool {
	s.mutex.Lock()
	found := false
	for i, a := range s.mru {
		if a == ip {
			s.mru = append(s.mru[:i], s.mru[i+1:]...)
			found = true
			break
		}
	}
	s.mru = append(s.mru, ip)
	if !found && len(s.mru) > s.max {
		s.mru = s.mru[1:]
	}
	snapshot := append([]netip.Addr(nil), s.mru...)
	s.mutex.Unlock()

	s.group.Do(ip.String(), func() (interface{}, error) {
		s.persist(snapshot)
		return nil, nil
	})
	return found
}

// validateAndUpdateSourceToken derives zero-RTT admission from the
// configured ZeroRTTPolicy and, for the "limit if no exact match" policy,
// returns the writable-bytes limit that should be installed.
func (c *Connection) validateAndUpdateSourceToken(peerIP netip.Addr) (accept bool, limit protocol.ByteCount, hasLimit bool) {
	match := c.tokenStore.match(peerIP)

	switch c.settings.ZeroRTTPolicy {
	case ZeroRTTAlwaysReject:
		return false, 0, false
	case ZeroRTTRejectIfNoExactMatch:
		return match, 0, false
	case ZeroRTTLimitIfNoExactMatch:
		if match {
			return true, 0, false
		}
		return true, protocol.ByteCount(KLimitedCwndInMSS) * c.udpSendPacketLen, true
	default:
		return false, 0, false
	}
}
