package migration

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func addr(s string) netip.AddrPort { return netip.MustParseAddrPort(s) }

func TestNATRebindingPortOnly(t *testing.T) {
	require.True(t, IsNATRebinding(addr("1.2.3.4:1000"), addr("1.2.3.4:2000")))
	require.False(t, IsNATRebinding(addr("1.2.3.4:1000"), addr("1.2.3.4:1000")))
}

func TestNATRebindingSameSubnet(t *testing.T) {
	require.True(t, IsNATRebinding(addr("1.2.3.4:1000"), addr("1.2.3.9:1000")))
	require.False(t, IsNATRebinding(addr("1.2.3.4:1000"), addr("1.2.9.9:1000")))
}

func TestSaveAndRestoreWithinRetentionWindow(t *testing.T) {
	tr := NewTracker([]byte("secret"), addr("10.0.0.1:443"))
	now := time.Now()
	prev := addr("1.1.1.1:1000")
	controller := &struct{ name string }{"fake-controller"}

	tr.SaveCongestionAndRTT(prev, now, controller, 100*time.Millisecond, 90*time.Millisecond, 10*time.Millisecond, 80*time.Millisecond)

	restored := tr.TakeRestorableState(prev, now.Add(5*time.Second))
	require.NotNil(t, restored)
	require.Same(t, controller, restored.Controller)

	// State was consumed; a second lookup misses.
	require.Nil(t, tr.TakeRestorableState(prev, now))
}

func TestRestoreFailsAfterRetentionWindow(t *testing.T) {
	tr := NewTracker([]byte("secret"), addr("10.0.0.1:443"))
	now := time.Now()
	prev := addr("1.1.1.1:1000")

	tr.SaveCongestionAndRTT(prev, now, "c", 0, 0, 0, 0)
	require.Nil(t, tr.TakeRestorableState(prev, now.Add(TimeToRetainLastCongestionAndRttState+time.Second)))
}

func TestRestoreFailsForDifferentAddress(t *testing.T) {
	tr := NewTracker([]byte("secret"), addr("10.0.0.1:443"))
	now := time.Now()
	tr.SaveCongestionAndRTT(addr("1.1.1.1:1000"), now, "c", 0, 0, 0, 0)
	require.Nil(t, tr.TakeRestorableState(addr("2.2.2.2:1000"), now))
}

func TestSelfCIDIssueAndRetire(t *testing.T) {
	set := NewSelfCIDSet([]byte("secret"), addr("10.0.0.1:443"))

	seq0, tok0 := set.Issue([]byte{1, 2, 3})
	seq1, tok1 := set.Issue([]byte{4, 5, 6})
	require.Equal(t, uint64(0), seq0)
	require.Equal(t, uint64(1), seq1)
	require.NotEqual(t, tok0, tok1)
	require.Equal(t, 2, set.ActiveCount())

	retired := set.RetirePriorTo(1)
	require.ElementsMatch(t, []uint64{0}, retired)
	require.Equal(t, 1, set.ActiveCount())
}

func TestPathRateLimiterBudget(t *testing.T) {
	limiter := NewPathRateLimiter(1200, 100*time.Millisecond)
	now := time.Now()
	require.True(t, limiter.AllowN(now, 1200))
	require.False(t, limiter.AllowN(now, 1200))
}
