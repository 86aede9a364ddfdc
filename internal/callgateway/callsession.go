package callgateway

import (
	"errors"
	"fmt"
	"time"
)

type callState string

const (
	stateAwaitingReady callState = "awaiting_ready"
	stateActive        callState = "active"
	stateEnded         callState = "ended"
)

var (
	errInvalidTransition = errors.New("invalid_call_transition")
	errMaxDuration       = errors.New("max_duration")
)

// callSession is shared by both participants, so every read of start or end
// time sees the same values from either side.
type callSession struct {
	id         string
	venter     string
	listener   string
	state      callState
	ready      map[string]bool
	startTime  time.Time
	endTime    time.Time
	extensions int
	endReason  string
}

func newCallSession(id, venter, listener string) *callSession {
	return &callSession{
		id:       id,
		venter:   venter,
		listener: listener,
		state:    stateAwaitingReady,
		ready:    map[string]bool{},
	}
}

func (s *callSession) has(sessionID string) bool {
	return sessionID == s.venter || sessionID == s.listener
}

func (s *callSession) partnerOf(sessionID string) string {
	if sessionID == s.venter {
		return s.listener
	}
	return s.venter
}

func (s *callSession) participants() [2]string {
	return [2]string{s.venter, s.listener}
}

// markReady records a ready signal and reports whether both sides are in.
func (s *callSession) markReady(sessionID string) (bool, error) {
	if s.state != stateAwaitingReady {
		return false, fmt.Errorf("%w: ready in %s", errInvalidTransition, s.state)
	}
	if !s.has(sessionID) {
		return false, fmt.Errorf("%w: %s is not a participant", errInvalidTransition, sessionID)
	}
	s.ready[sessionID] = true
	return s.ready[s.venter] && s.ready[s.listener], nil
}

func (s *callSession) start(now time.Time, length time.Duration) error {
	if s.state != stateAwaitingReady {
		return fmt.Errorf("%w: start in %s", errInvalidTransition, s.state)
	}
	s.state = stateActive
	s.startTime = now
	s.endTime = now.Add(length)
	s.ready = nil
	return nil
}

func (s *callSession) length() time.Duration {
	return s.endTime.Sub(s.startTime)
}

func (s *callSession) extend(by, maxLength time.Duration) error {
	if s.state != stateActive {
		return fmt.Errorf("%w: extend in %s", errInvalidTransition, s.state)
	}
	if s.length()+by > maxLength {
		return errMaxDuration
	}
	s.endTime = s.endTime.Add(by)
	s.extensions++
	return nil
}

func (s *callSession) end(reason string) error {
	if s.state == stateEnded {
		return fmt.Errorf("%w: already ended", errInvalidTransition)
	}
	s.state = stateEnded
	s.endReason = reason
	return nil
}

// Runtime is one participant's view of its current call.
type Runtime struct {
	CallID    string
	PartnerID string
	Active    bool
	StartTime time.Time
	EndTime   time.Time
}

func (s *callSession) runtimeFor(sessionID string) Runtime {
	return Runtime{
		CallID:    s.id,
		PartnerID: s.partnerOf(sessionID),
		Active:    s.state == stateActive,
		StartTime: s.startTime,
		EndTime:   s.endTime,
	}
}
