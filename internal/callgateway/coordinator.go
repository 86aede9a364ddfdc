package callgateway

import (
	"context"
	"sync"
	"time"

	"ventline/internal/config"
	"ventline/internal/ledger"
	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/store"
)

// Connections is the live-connection side the coordinator pushes through.
// Send reports whether the message was handed to a live connection.
type Connections interface {
	IsLive(sessionID string) bool
	Send(sessionID string, msg any) bool
}

type CallStore interface {
	CreateCall(ctx context.Context, c store.Call) error
	MarkCallConnected(ctx context.Context, callID string, startedAt time.Time) error
	RecordCallExtension(ctx context.Context, callID string) error
	EndCall(ctx context.Context, callID, reason string, endedAt time.Time) error
}

type Coordinator struct {
	calls   CallStore
	queue   *matchmaking.Queue
	ledger  *ledger.Ledger
	pending pending.Cache
	conns   Connections
	cfg     config.CallConfig
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*callSession
	byCallID map[string]*callSession
}

func NewCoordinator(calls CallStore, queue *matchmaking.Queue, led *ledger.Ledger, cache pending.Cache, conns Connections, cfg config.CallConfig) *Coordinator {
	return &Coordinator{
		calls:    calls,
		queue:    queue,
		ledger:   led,
		pending:  cache,
		conns:    conns,
		cfg:      cfg,
		now:      time.Now,
		sessions: map[string]*callSession{},
		byCallID: map[string]*callSession{},
	}
}

// RuntimeFor returns the session's current call view.
func (c *Coordinator) RuntimeFor(sessionID string) (Runtime, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sessions[sessionID]
	if s == nil {
		return Runtime{}, false
	}
	return s.runtimeFor(sessionID), true
}

// IsParticipant reports whether sessionID belongs to the live call callID.
func (c *Coordinator) IsParticipant(callID, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.byCallID[callID]
	return s != nil && s.state != stateEnded && s.has(sessionID)
}

func (c *Coordinator) inCall(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[sessionID] != nil
}

func (c *Coordinator) send(sessionID string, msg any) bool {
	if c.conns == nil {
		return false
	}
	return c.conns.Send(sessionID, msg)
}

func (c *Coordinator) defaultDurationSeconds() int64 {
	return int64(c.cfg.DefaultDuration / time.Second)
}

// detachLocked ends s and drops it from the runtime maps. Callers hold c.mu.
func (c *Coordinator) detachLocked(s *callSession, reason string) (endedCall, bool) {
	wasActive := s.state == stateActive
	if err := s.end(reason); err != nil {
		return endedCall{}, false
	}
	for _, id := range s.participants() {
		if c.sessions[id] == s {
			delete(c.sessions, id)
		}
	}
	delete(c.byCallID, s.id)
	if wasActive {
		metricActiveCalls.Add(-1)
	}
	return endedCall{
		callID:    s.id,
		venter:    s.venter,
		listener:  s.listener,
		reason:    reason,
		wasActive: wasActive,
		startTime: s.startTime,
		endTime:   s.endTime,
	}, true
}

// endedCall is the snapshot taken when a call leaves the runtime maps; the
// durable and economy side effects run from it without holding c.mu.
type endedCall struct {
	callID    string
	venter    string
	listener  string
	reason    string
	wasActive bool
	startTime time.Time
	endTime   time.Time
}

func (e endedCall) participants() [2]string {
	return [2]string{e.venter, e.listener}
}

func (e endedCall) partnerOf(sessionID string) string {
	if sessionID == e.venter {
		return e.listener
	}
	return e.venter
}

// clearSessions drops pending events and residual queue entries.
func (c *Coordinator) clearSessions(ctx context.Context, ids ...string) {
	if err := c.pending.Delete(ctx, ids...); err != nil {
		logError(err, "pending_delete_failed", ids...)
	}
	for _, id := range ids {
		if err := c.queue.Leave(ctx, id); err != nil {
			logError(err, "queue_leave_failed", id)
		}
	}
}
