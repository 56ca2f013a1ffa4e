package qcore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coldwave-io/qcore/internal/protocol"
)

func TestMaybeEnablePLPMTUDTransitionsToBase(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeProbing, MaxUDPPayloadSize: 1452})
	conn, _, _ := newTestConnection(cfg)

	conn.maybeEnablePLPMTUD(1400, true)
	assert.Equal(t, pmtudBase, conn.pmtud)
}

func TestMaybeEnablePLPMTUDIgnoresOutOfRangeBase(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeProbing, MaxUDPPayloadSize: 1452})
	conn, _, _ := newTestConnection(cfg)

	conn.maybeEnablePLPMTUD(KMinMaxUDPPayload-1, true)
	assert.Equal(t, pmtudDisabled, conn.pmtud, "a base below the protocol minimum must not enable PLPMTUD")

	conn.maybeEnablePLPMTUD(9999, true)
	assert.Equal(t, pmtudDisabled, conn.pmtud, "a base above the configured payload ceiling must not enable PLPMTUD")

	conn.maybeEnablePLPMTUD(1400, false)
	assert.Equal(t, pmtudDisabled, conn.pmtud, "an absent peer parameter must not enable PLPMTUD")
}

func TestMaybeEnablePLPMTUDNoopWhenModeForced(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeForced, MaxUDPPayloadSize: 1452})
	conn, _, _ := newTestConnection(cfg)

	conn.maybeEnablePLPMTUD(1400, true)
	assert.Equal(t, pmtudDisabled, conn.pmtud)
}

func TestApplyForcedPMTUPinsToClientAdvertisedSize(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeForced, MaxUDPPayloadSize: 1452})
	conn, _, _ := newTestConnection(cfg)

	conn.applyForcedPMTU(1300)
	assert.Equal(t, protocol.ByteCount(1300), conn.udpSendPacketLen)
}

func TestApplyForcedPMTUClampsToConfiguredCeiling(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeForced, MaxUDPPayloadSize: 1200})
	conn, _, _ := newTestConnection(cfg)

	conn.applyForcedPMTU(1452)
	assert.Equal(t, protocol.ByteCount(1200), conn.udpSendPacketLen)
}

func TestApplyForcedPMTUNoopWhenModeProbing(t *testing.T) {
	cfg := PopulateServerConfig(&Config{PMTUMode: PMTUModeProbing, MaxUDPPayloadSize: 1452})
	conn, _, _ := newTestConnection(cfg)

	conn.applyForcedPMTU(1300)
	assert.Equal(t, protocol.ByteCount(1452), conn.udpSendPacketLen, "udpSendPacketLen starts pinned to MaxUDPPayloadSize and is untouched outside forced mode")
}
