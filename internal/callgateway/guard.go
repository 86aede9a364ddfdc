package callgateway

// guard describes the state a deferred callback was scheduled against.
// Timers are never cancelled; each one re-checks its guard when it fires.
type guard struct {
	callID string
	state  callState
	// offline, when set, must still lack a live connection.
	offline string
}

// stillApplies returns the call the guard refers to when nothing has moved on
// since it was scheduled. Callers hold c.mu.
func (c *Coordinator) stillApplies(g guard) (*callSession, bool) {
	s := c.byCallID[g.callID]
	if s == nil || s.state != g.state {
		return nil, false
	}
	if g.offline != "" && c.conns != nil && c.conns.IsLive(g.offline) {
		return nil, false
	}
	return s, true
}
