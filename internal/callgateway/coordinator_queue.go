package callgateway

import (
	"context"
	"errors"

	"ventline/internal/matchmaking"
	"ventline/internal/pending"
	"ventline/internal/protocol"
	"ventline/internal/store"

	"github.com/rs/zerolog/log"
)

// Register runs once a connection is bound to sessionID. It opens the
// economy account on first sight and flushes a buffered match.
func (c *Coordinator) Register(ctx context.Context, sessionID string) {
	if err := c.ledger.EnsureAccount(ctx, sessionID); err != nil {
		logError(err, "account_ensure_failed", sessionID)
	}
	ev, err := c.pending.Take(ctx, sessionID)
	if err != nil {
		logError(err, "pending_take_failed", sessionID)
		return
	}
	if ev == nil {
		return
	}
	if !c.send(sessionID, ev.MatchFound()) {
		if err := c.pending.Put(ctx, sessionID, *ev); err != nil {
			logError(err, "pending_put_failed", sessionID)
		}
		return
	}
	log.Info().Str("session_id", sessionID).Str("call_id", ev.CallID).Msg("pending_match_flushed")
}

type JoinRequest struct {
	SessionID  string
	Mood       string
	CardID     string
	IsPriority bool
}

func (c *Coordinator) JoinQueue(ctx context.Context, req JoinRequest) {
	mood, ok := store.ParseMood(req.Mood)
	if !ok {
		c.rejectJoin(req.SessionID, rejectInvalidMood)
		return
	}
	if c.inCall(req.SessionID) {
		c.rejectJoin(req.SessionID, rejectAlreadyInCall)
		return
	}
	banned, err := c.ledger.IsSoftBanned(ctx, req.SessionID)
	if err != nil {
		logError(err, "soft_ban_check_failed", req.SessionID)
		c.rejectJoin(req.SessionID, rejectInternal)
		return
	}
	if banned {
		c.rejectJoin(req.SessionID, rejectSoftBanned)
		return
	}

	priority := false
	if req.IsPriority {
		priority, err = c.ledger.ConsumePriorityToken(ctx, req.SessionID)
		if err != nil {
			logError(err, "priority_token_failed", req.SessionID)
			priority = false
		}
	}

	entry, err := c.queue.Join(ctx, store.QueueEntry{
		SessionID:  req.SessionID,
		Mood:       mood,
		CardID:     req.CardID,
		IsPriority: priority,
	})
	if err != nil {
		logError(err, "queue_join_failed", req.SessionID)
		c.rejectJoin(req.SessionID, rejectInternal)
		return
	}
	log.Info().
		Str("session_id", req.SessionID).
		Str("mood", string(mood)).
		Bool("priority", priority).
		Msg("queue_joined")
	c.tryMatch(ctx, entry, true)
}

func (c *Coordinator) LeaveQueue(ctx context.Context, sessionID string) {
	if err := c.queue.Leave(ctx, sessionID); err != nil {
		logError(err, "queue_leave_failed", sessionID)
	}
}

// Heartbeat keeps a queue entry fresh and retries matching for it.
func (c *Coordinator) Heartbeat(ctx context.Context, sessionID string) {
	ok, err := c.queue.UpdateHeartbeat(ctx, sessionID)
	if err != nil {
		logError(err, "queue_heartbeat_failed", sessionID)
		return
	}
	if !ok {
		return
	}
	c.send(sessionID, protocol.NewHeartbeatAck())

	entry, err := c.queue.Entry(ctx, sessionID)
	if err != nil {
		logError(err, "queue_entry_lookup_failed", sessionID)
		return
	}
	if entry == nil || entry.Status != store.EntryWaiting || c.inCall(sessionID) {
		return
	}
	c.tryMatch(ctx, *entry, false)
}

func (c *Coordinator) rejectJoin(sessionID, reason string) {
	metricQueueRejectsTotal.Add(1)
	log.Info().Str("session_id", sessionID).Str("reason", reason).Msg("queue_rejected")
	c.send(sessionID, protocol.NewQueueRejected(reason, rejectMessage(reason)))
}

func (c *Coordinator) tryMatch(ctx context.Context, self store.QueueEntry, announce bool) {
	partner, err := c.queue.Match(ctx, self, c.conns)
	if errors.Is(err, matchmaking.ErrNotQueued) {
		// Another matcher claimed this entry and owns the pairing.
		return
	}
	if err != nil {
		logError(err, "match_attempt_failed", self.SessionID)
		return
	}
	if partner == nil {
		if announce {
			c.send(self.SessionID, protocol.NewWaiting(string(self.Mood)))
		}
		return
	}
	c.startCall(ctx, self, *partner)
}

func (c *Coordinator) startCall(ctx context.Context, a, b store.QueueEntry) {
	venter, listener := a.SessionID, b.SessionID
	if a.Mood == store.MoodListen {
		venter, listener = b.SessionID, a.SessionID
	}
	callID := store.NewCallID()
	if err := c.calls.CreateCall(ctx, store.Call{
		ID:                callID,
		VenterSessionID:   venter,
		ListenerSessionID: listener,
		Status:            store.CallPending,
		CreatedAt:         c.now(),
	}); err != nil {
		logError(err, "call_create_failed", venter, listener)
		c.abandonMatch(ctx, a.SessionID, b.SessionID)
		return
	}
	if err := c.queue.Consume(ctx, a.SessionID, b.SessionID); err != nil {
		logError(err, "queue_consume_failed", a.SessionID, b.SessionID)
	}

	s := newCallSession(callID, venter, listener)
	c.mu.Lock()
	c.sessions[venter] = s
	c.sessions[listener] = s
	c.byCallID[callID] = s
	c.mu.Unlock()
	metricCallsCreatedTotal.Add(1)

	c.scheduleReadyTimeout(callID)

	log.Info().
		Str("call_id", callID).
		Str("venter", venter).
		Str("listener", listener).
		Msg("call_matched")

	for _, id := range s.participants() {
		ev := pending.Event{CallID: callID, PartnerID: s.partnerOf(id), Duration: c.defaultDurationSeconds()}
		if c.send(id, ev.MatchFound()) {
			continue
		}
		metricPendingBufferedTotal.Add(1)
		if err := c.pending.Put(ctx, id, ev); err != nil {
			logError(err, "pending_put_failed", id)
		}
	}
}

// abandonMatch gives the partner its place back and rejects the requester.
func (c *Coordinator) abandonMatch(ctx context.Context, selfID, partnerID string) {
	if err := c.queue.Abandon(ctx, selfID, partnerID); err != nil {
		logError(err, "queue_abandon_failed", selfID, partnerID)
	}
	c.rejectJoin(selfID, rejectInternal)
}
