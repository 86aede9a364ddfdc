package callgateway

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// OnDisconnect runs after the session's current connection went away. Only
// active calls react; queued or awaiting-ready sessions keep their state so a
// reconnect or poll can recover it.
func (c *Coordinator) OnDisconnect(ctx context.Context, sessionID string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil || s.state != stateActive {
		c.mu.Unlock()
		return
	}
	elapsed := c.now().Sub(s.startTime)
	if elapsed < c.cfg.DisconnectGrace {
		g := guard{callID: s.id, state: stateActive, offline: sessionID}
		wait := c.cfg.DisconnectGrace - elapsed
		c.mu.Unlock()
		log.Info().
			Str("session_id", sessionID).
			Str("call_id", g.callID).
			Dur("grace", wait).
			Msg("disconnect_grace_started")
		time.AfterFunc(wait, func() {
			c.onGraceExpired(g)
		})
		return
	}
	ended, ok := c.detachLocked(s, EndReasonDisconnected)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.settle(ctx, ended, sessionID, nil, []string{ended.partnerOf(sessionID)})
}

func (c *Coordinator) onGraceExpired(g guard) {
	c.mu.Lock()
	s, ok := c.stillApplies(g)
	if !ok {
		c.mu.Unlock()
		return
	}
	ended, ok := c.detachLocked(s, EndReasonDisconnected)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.settle(context.Background(), ended, g.offline, nil, []string{ended.partnerOf(g.offline)})
}
