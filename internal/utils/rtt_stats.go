package utils

import (
	"time"

	"github.com/coldwave-io/qcore/internal/protocol"
)

const (
	rttAlpha      = 0.125
	rttOneMinusAlpha = 1 - rttAlpha
	rttBeta       = 0.25
	rttOneMinusBeta = 1 - rttBeta
)

// RTTStats tracks round-trip-time measurements for one packet-number space
// and exposes the smoothed RTT, mean deviation and PTO derived from them.
type RTTStats struct {
	minRTT      time.Duration
	latestRTT   time.Duration
	smoothedRTT time.Duration
	meanDeviation time.Duration
	maxAckDelay time.Duration

	hasMeasurement bool
}

func (r *RTTStats) MinRTT() time.Duration      { return r.minRTT }
func (r *RTTStats) LatestRTT() time.Duration   { return r.latestRTT }
func (r *RTTStats) SmoothedRTT() time.Duration { return r.smoothedRTT }
func (r *RTTStats) MeanDeviation() time.Duration { return r.meanDeviation }
func (r *RTTStats) MaxAckDelay() time.Duration { return r.maxAckDelay }

func (r *RTTStats) SetMaxAckDelay(d time.Duration) { r.maxAckDelay = d }

// SetInitialRTT seeds the smoothed RTT before any real measurement is
// available, e.g. from a previous connection's cached state carried over
// on migration. It has no effect once a measurement has been recorded.
func (r *RTTStats) SetInitialRTT(rtt time.Duration) {
	if r.hasMeasurement {
		return
	}
	r.latestRTT = rtt
	r.smoothedRTT = rtt
}

// UpdateRTT updates the RTT estimate using sendDelta, the measured time
// between sending a packet and receiving its ACK, and ackDelay, the peer's
// reported delay in sending that ACK. recvTime is the time the ACK arrived;
// it is not used: MinRTT is the minimum over every sample recorded.
func (r *RTTStats) UpdateRTT(sendDelta, ackDelay time.Duration, recvTime time.Time) {
	if sendDelta <= 0 {
		return
	}

	if r.minRTT == 0 || sendDelta < r.minRTT {
		r.minRTT = sendDelta
	}

	sample := sendDelta
	if ackDelay > 0 && sample-r.minRTT >= ackDelay {
		sample -= ackDelay
	}
	r.latestRTT = sample

	if !r.hasMeasurement {
		r.smoothedRTT = sample
		r.meanDeviation = sample / 2
		r.hasMeasurement = true
		return
	}

	r.meanDeviation = time.Duration(rttOneMinusBeta*float64(r.meanDeviation) + rttBeta*float64(absDuration(r.smoothedRTT-sample)))
	r.smoothedRTT = time.Duration(rttOneMinusAlpha*float64(r.smoothedRTT) + rttAlpha*float64(sample))
}

// PTO returns the probe timeout duration: smoothed RTT plus four times the
// mean deviation, plus the max ack delay if includeMaxAckDelay is set. It
// never returns less than protocol.TimerGranularity.
func (r *RTTStats) PTO(includeMaxAckDelay bool) time.Duration {
	if r.smoothedRTT == 0 {
		return 2 * protocol.TimerGranularity
	}
	deviation := 4 * r.meanDeviation
	if deviation < protocol.TimerGranularity {
		deviation = protocol.TimerGranularity
	}
	pto := r.smoothedRTT + deviation
	if includeMaxAckDelay {
		pto += r.maxAckDelay
	}
	return pto
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
