package qcore

// pendingEvents is the dense flag set the event-loop driver consults
// between calls into the core, with idempotent setters; the driver reads
// and clears in one pass.
type pendingEvents struct {
	sendAck              bool
	cancelPing           bool
	schedulePathValidation bool
	sendHandshakeDone    bool
	sendPathChallenge    bool
	handshakeConfirmed   bool
}

func (p *pendingEvents) SetSendAck()               { p.sendAck = true }
func (p *pendingEvents) SetCancelPing()            { p.cancelPing = true }
func (p *pendingEvents) SetSchedulePathValidation() { p.schedulePathValidation = true }
func (p *pendingEvents) SetSendHandshakeDone()     { p.sendHandshakeDone = true }
func (p *pendingEvents) SetSendPathChallenge()     { p.sendPathChallenge = true }
func (p *pendingEvents) SetHandshakeConfirmed()    { p.handshakeConfirmed = true }

// Drain returns the current flag set and clears it, the "read and clear in
// one pass" contract the driver relies on.
func (p *pendingEvents) Drain() pendingEvents {
	current := *p
	*p = pendingEvents{}
	return current
}
