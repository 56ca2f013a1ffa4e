package qcore

import "github.com/coldwave-io/qcore/internal/protocol"

// pmtudState mirrors mvfst's d6d (PLPMTUD) state machine. It is a hook with
// a no-op default: BASE never transitions to SEARCHING here, leaving the
// active-probing search to a future collaborator.
type pmtudState uint8

const (
	pmtudDisabled pmtudState = iota
	pmtudBase
	pmtudSearching
	pmtudSearchComplete
)

// maybeEnablePLPMTUD transitions PMTUD to BASE if the peer advertised a
// sane base PMTU parameter and the config allows probing.
func (c *Connection) maybeEnablePLPMTUD(basePMTU protocol.ByteCount, present bool) {
	if c.settings.PMTUMode != PMTUModeProbing {
		return
	}
	if !present || basePMTU < KMinMaxUDPPayload || basePMTU > c.settings.MaxUDPPayloadSize {
		return
	}
	c.pmtud = pmtudBase
}

// applyForcedPMTU pins udpSendPacketLen once a client's max_packet_size is
// known, for the "force PMTU" mode.
func (c *Connection) applyForcedPMTU(clientMaxPacketSize protocol.ByteCount) {
	if c.settings.PMTUMode != PMTUModeForced {
		return
	}
	limit := clientMaxPacketSize
	if c.settings.MaxUDPPayloadSize < limit {
		limit = c.settings.MaxUDPPayloadSize
	}
	c.udpSendPacketLen = limit
}
