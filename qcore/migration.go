package qcore

import (
	"crypto/rand"
	"net/netip"
	"time"

	"github.com/coldwave-io/qcore/internal/migration"
	"github.com/coldwave-io/qcore/internal/protocol"
	"github.com/coldwave-io/qcore/internal/qerr"
	"github.com/coldwave-io/qcore/internal/wire"
)

func newMigrationTracker(cfg *Config, serverAddr netip.AddrPort) *migration.Tracker {
	return migration.NewTracker(cfg.StatelessResetSecret, serverAddr)
}

// onConnectionMigration handles a peer address change. Preconditions (non-
// probing packet, new peer address, AppData level) are checked by the
// caller before this is invoked.
func (c *Connection) onConnectionMigration(newPeerAddress netip.AddrPort, now time.Time) error {
	if c.migrationTracker.NumMigrations >= migration.MaxNumMigrationsAllowed {
		return qerr.NewTransportError(qerr.InvalidMigration, "exceeded the maximum number of allowed migrations")
	}
	if !c.settings.AllowMigration {
		return qerr.NewTransportError(qerr.InvalidMigration, "migration is administratively disabled")
	}

	hadQueuedChallenge := c.pending.sendPathChallenge
	hadScheduledValidation := c.pending.schedulePathValidation
	c.pending.sendPathChallenge = false

	natRebinding := migration.IsNATRebinding(c.peerAddress, newPeerAddress)

	if !c.migrationTracker.HasSeen(newPeerAddress) {
		var challenge [8]byte
		if _, err := rand.Read(challenge[:]); err != nil {
			return qerr.NewTransportError(qerr.InternalError, "failed to generate a path challenge")
		}
		c.queueFrame(&wire.PathChallengeFrame{Data: challenge})
		c.pending.SetSendPathChallenge()
		c.pending.SetSchedulePathValidation()
		c.pathRateLimiter = migration.NewPathRateLimiter(c.udpSendPacketLen, c.rttStats.SmoothedRTT())
	}

	outstandingValidation := hadQueuedChallenge || hadScheduledValidation

	if outstandingValidation {
		c.pending.schedulePathValidation = false
		if !natRebinding {
			c.restoreOrResetCongestionController(newPeerAddress, now)
		}
	} else {
		c.migrationTracker.Remember(c.peerAddress)
		if !natRebinding {
			c.migrationTracker.SaveCongestionAndRTT(c.peerAddress, now, c.congestion,
				c.rttStats.SmoothedRTT(), c.rttStats.LatestRTT(), c.rttStats.MeanDeviation(), c.rttStats.MinRTT())
			c.resetCongestionController()
		}
	}

	c.migrationTracker.NumMigrations++
	c.qlog.RecordMigration(c.peerAddress, newPeerAddress, natRebinding)
	c.stats.OnMigration(natRebinding)
	c.peerAddress = newPeerAddress
	return nil
}

// isIntentionalMigration reports whether the short header's destination
// connection ID differs from the currently active server connection ID, a
// signal that the peer deliberately switched paths rather than merely
// being rebound by a NAT.
func (c *Connection) isIntentionalMigration(shortHeaderDestCID protocol.ConnectionID) bool {
	return !shortHeaderDestCID.Equal(c.activeServerConnID)
}
