// Package migration tracks connection migration state: the history of
// previous peer addresses a connection has validated, the saved
// congestion/RTT state a path can restore on return, and the self-issued
// connection ID set a peer may address future packets to.
package migration

import (
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/coldwave-io/qcore/internal/protocol"
)

// CongestionRTTState is the snapshot of one path's congestion controller
// and RTT estimator, saved on migration away from that path and restored
// if the peer returns to it within TimeToRetainLastCongestionAndRttState.
type CongestionRTTState struct {
	PeerAddress netip.AddrPort
	RecordTime  time.Time

	// Controller is an opaque handle to the congestion controller owned by
	// the connection; moved, never copied.
	Controller interface{}

	SRTT, LRTT, RTTVar, MRTT time.Duration
}

// TimeToRetainLastCongestionAndRttState bounds how stale a saved path's
// state may be before a migration back to it is treated as a fresh path
// instead of a restore.
const TimeToRetainLastCongestionAndRttState = 30 * time.Second

// MaxNumMigrationsAllowed caps how many times one connection may migrate
// before further attempts are rejected as INVALID_MIGRATION.
const MaxNumMigrationsAllowed = 5

// Tracker owns the migration bookkeeping for one connection: which peer
// addresses have been seen before, what state was saved for the most
// recent departure, and how many migrations have occurred so far.
type Tracker struct {
	// PreviousPeerAddresses records validated paths in the order they were
	// first observed; iteration order is meaningful for validation state.
	PreviousPeerAddresses []netip.AddrPort

	LastCongestionAndRTT *CongestionRTTState

	NumMigrations int

	CIDs *SelfCIDSet
}

func NewTracker(secret []byte, serverAddr netip.AddrPort) *Tracker {
	return &Tracker{CIDs: NewSelfCIDSet(secret, serverAddr)}
}

// HasSeen reports whether addr has previously been recorded as a validated
// peer address.
func (t *Tracker) HasSeen(addr netip.AddrPort) bool {
	for _, a := range t.PreviousPeerAddresses {
		if a == addr {
			return true
		}
	}
	return false
}

// Remember appends addr to the validated-path history if it isn't already
// there.
func (t *Tracker) Remember(addr netip.AddrPort) {
	if t.HasSeen(addr) {
		return
	}
	t.PreviousPeerAddresses = append(t.PreviousPeerAddresses, addr)
}

// SaveCongestionAndRTT snapshots the departing path's state, keyed on the
// address being left, replacing whatever was previously saved.
func (t *Tracker) SaveCongestionAndRTT(addr netip.AddrPort, now time.Time, controller interface{}, srtt, lrtt, rttvar, mrtt time.Duration) {
	t.LastCongestionAndRTT = &CongestionRTTState{
		PeerAddress: addr,
		RecordTime:  now,
		Controller:  controller,
		SRTT:        srtt,
		LRTT:        lrtt,
		RTTVar:      rttvar,
		MRTT:        mrtt,
	}
}

// TakeRestorableState returns the saved state for addr and clears it, if
// addr matches and the state hasn't gone stale past
// TimeToRetainLastCongestionAndRttState. A nil result means the caller
// should build a fresh congestion controller instead of restoring one.
func (t *Tracker) TakeRestorableState(addr netip.AddrPort, now time.Time) *CongestionRTTState {
	s := t.LastCongestionAndRTT
	if s == nil || s.PeerAddress != addr {
		return nil
	}
	if now.Sub(s.RecordTime) > TimeToRetainLastCongestionAndRttState {
		return nil
	}
	t.LastCongestionAndRTT = nil
	return s
}

// IsNATRebinding applies a NAT-rebinding heuristic: a port-only change with
// the same IP, or a same-family IPv4 change within a /24 subnet, is
// assumed to preserve path characteristics and its congestion/RTT state is
// never snapshotted or reset.
func IsNATRebinding(prev, next netip.AddrPort) bool {
	if prev.Addr() == next.Addr() {
		return prev.Port() != next.Port()
	}
	if prev.Addr().Is4() && next.Addr().Is4() {
		p, n := prev.Addr().As4(), next.Addr().As4()
		return p[0] == n[0] && p[1] == n[1] && p[2] == n[2]
	}
	return false
}

// PathRateLimiter gates writable bytes to a validating path to at most
// udpSendPacketLen worth of probing traffic until the path is confirmed,
// the anti-amplification defense required for a freshly observed peer
// address. Grounded on the teacher's pacer, replacing a hand-rolled token
// bucket with golang.org/x/time/rate.
type PathRateLimiter struct {
	limiter *rate.Limiter
}

// NewPathRateLimiter allows bursts of mtu bytes to accumulate at a rate of
// one mtu per RTT-scale interval; interval should be the current smoothed
// RTT (or a conservative default before one exists).
func NewPathRateLimiter(mtu protocol.ByteCount, interval time.Duration) *PathRateLimiter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &PathRateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval/time.Duration(mtu)), int(mtu)),
	}
}

// AllowN reports whether n additional bytes may be sent on the validating
// path right now.
func (p *PathRateLimiter) AllowN(now time.Time, n int) bool {
	return p.limiter.AllowN(now, n)
}
