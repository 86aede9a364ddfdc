package callgateway

import (
	"context"
	"errors"
	"time"

	"ventline/internal/ledger"
	"ventline/internal/protocol"

	"github.com/rs/zerolog/log"
)

const (
	EndReasonNormal            = "normal"
	EndReasonDisconnected      = "disconnected"
	EndReasonReported          = "reported"
	EndReasonConnectionTimeout = "connection_timeout"

	refundThresholdSeconds = 60
)

var extensionTiers = map[int64]bool{5: true, 10: true, 20: true, 30: true}

// Ready records a ready signal. The timer starts when the second side is in.
func (c *Coordinator) Ready(ctx context.Context, sessionID, callID string) {
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil || s.id != callID {
		c.mu.Unlock()
		log.Warn().Str("session_id", sessionID).Str("call_id", callID).Msg("call_ready_unknown_call")
		return
	}
	if s.state == stateActive {
		started := protocol.NewCallStarted(s.id, s.startTime.UnixMilli(), int64(s.length()/time.Second))
		c.mu.Unlock()
		c.send(sessionID, started)
		return
	}
	both, err := s.markReady(sessionID)
	if err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Str("session_id", sessionID).Msg("call_ready_rejected")
		return
	}
	if !both {
		c.mu.Unlock()
		c.send(sessionID, protocol.NewWaitingForPartner(callID))
		return
	}
	now := c.now()
	if err := s.start(now, c.cfg.DefaultDuration); err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Str("call_id", callID).Msg("call_start_rejected")
		return
	}
	ids := s.participants()
	c.mu.Unlock()
	metricActiveCalls.Add(1)
	metricCallsStartedTotal.Add(1)

	if err := c.calls.MarkCallConnected(ctx, callID, now); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("call_mark_connected_failed")
	}
	msg := protocol.NewCallStarted(callID, now.UnixMilli(), c.defaultDurationSeconds())
	for _, id := range ids {
		c.send(id, msg)
	}
	if err := c.pending.Delete(ctx, ids[0], ids[1]); err != nil {
		logError(err, "pending_delete_failed", ids[0], ids[1])
	}
	log.Info().Str("call_id", callID).Int64("started_at", now.UnixMilli()).Msg("call_started")
}

func (c *Coordinator) scheduleReadyTimeout(callID string) {
	g := guard{callID: callID, state: stateAwaitingReady}
	time.AfterFunc(c.cfg.ReadyTimeout, func() {
		c.onReadyTimeout(g)
	})
}

func (c *Coordinator) onReadyTimeout(g guard) {
	c.mu.Lock()
	s, ok := c.stillApplies(g)
	if !ok {
		c.mu.Unlock()
		return
	}
	ended, ok := c.detachLocked(s, EndReasonConnectionTimeout)
	c.mu.Unlock()
	if !ok {
		return
	}
	metricReadyTimeoutsTotal.Add(1)
	log.Info().Str("call_id", g.callID).Msg("call_ready_timeout")
	ids := ended.participants()
	c.settle(context.Background(), ended, "", nil, ids[:])
}

// Extend lengthens the caller's active call. The time bank is debited before
// anything else changes.
func (c *Coordinator) Extend(ctx context.Context, sessionID string, minutes int64) {
	if !extensionTiers[minutes] {
		c.rejectExtension(sessionID, rejectInvalidMinutes)
		return
	}
	by := time.Duration(minutes) * time.Minute

	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil || s.state != stateActive {
		c.mu.Unlock()
		c.rejectExtension(sessionID, rejectNoActiveCall)
		return
	}
	if s.length()+by > c.cfg.MaxDuration {
		c.mu.Unlock()
		c.rejectExtension(sessionID, rejectMaxDuration)
		return
	}
	callID := s.id
	c.mu.Unlock()

	if _, err := c.ledger.SpendExtension(ctx, sessionID, callID, minutes); err != nil {
		if errors.Is(err, ledger.ErrInsufficientTimeBank) {
			c.rejectExtension(sessionID, rejectTimeBank)
			return
		}
		logError(err, "extension_debit_failed", sessionID)
		c.rejectExtension(sessionID, rejectInternal)
		return
	}

	c.mu.Lock()
	s, ok := c.stillApplies(guard{callID: callID, state: stateActive})
	var extendErr error = errInvalidTransition
	var ids [2]string
	if ok {
		extendErr = s.extend(by, c.cfg.MaxDuration)
		ids = s.participants()
	}
	c.mu.Unlock()
	if extendErr != nil {
		// The call moved on while the debit ran; give the minutes back.
		if _, err := c.ledger.RefundMinutes(ctx, sessionID, callID, minutes); err != nil {
			logError(err, "extension_refund_failed", sessionID)
		}
		if errors.Is(extendErr, errMaxDuration) {
			c.rejectExtension(sessionID, rejectMaxDuration)
		} else {
			c.rejectExtension(sessionID, rejectNoActiveCall)
		}
		return
	}

	if _, err := c.ledger.AwardExtension(ctx, sessionID, callID, minutes); err != nil {
		logError(err, "extension_award_failed", sessionID)
	}
	if err := c.calls.RecordCallExtension(ctx, callID); err != nil {
		log.Error().Err(err).Str("call_id", callID).Msg("call_record_extension_failed")
	}
	metricExtensionsTotal.Add(1)
	msg := protocol.NewCallExtended(minutes)
	for _, id := range ids {
		c.send(id, msg)
	}
	log.Info().Str("call_id", callID).Str("session_id", sessionID).Int64("minutes", minutes).Msg("call_extended")
}

func (c *Coordinator) rejectExtension(sessionID, reason string) {
	metricExtensionRejectsTotal.Add(1)
	c.send(sessionID, protocol.NewExtensionRejected(reason, rejectMessage(reason)))
}

// EndCall terminates the caller's call. remainingSeconds is the caller's own
// count of unused time and may be nil.
func (c *Coordinator) EndCall(ctx context.Context, sessionID, reason string, remainingSeconds *float64) {
	if reason == "" {
		reason = EndReasonNormal
	}
	c.mu.Lock()
	s := c.sessions[sessionID]
	if s == nil {
		c.mu.Unlock()
		c.clearSessions(ctx, sessionID)
		return
	}
	ended, ok := c.detachLocked(s, reason)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.settle(ctx, ended, sessionID, remainingSeconds, []string{ended.partnerOf(sessionID)})
}

// settle applies the durable and economy effects of a detached call and
// notifies the given sessions.
func (c *Coordinator) settle(ctx context.Context, e endedCall, initiator string, remainingSeconds *float64, notify []string) {
	now := c.now()
	metricCallsEndedTotal.Add(1)
	if err := c.calls.EndCall(ctx, e.callID, e.reason, now); err != nil {
		log.Error().Err(err).Str("call_id", e.callID).Msg("call_end_persist_failed")
	}

	if e.wasActive && now.Sub(e.startTime) >= c.cfg.DefaultDuration {
		for _, id := range e.participants() {
			if _, err := c.ledger.AwardCompletion(ctx, id, e.callID); err != nil {
				logError(err, "completion_award_failed", id)
			}
		}
	}

	if initiator != "" && remainingSeconds != nil && e.wasActive {
		remaining := int64(*remainingSeconds)
		if serverRemaining := int64(e.endTime.Sub(now) / time.Second); remaining > serverRemaining {
			remaining = serverRemaining
		}
		if remaining > refundThresholdSeconds {
			if _, err := c.ledger.RefundMinutes(ctx, initiator, e.callID, remaining/60); err != nil {
				logError(err, "unused_refund_failed", initiator)
			}
		}
	}

	if e.reason == EndReasonReported && initiator != "" {
		reported := e.partnerOf(initiator)
		if _, err := c.ledger.PenalizeReport(ctx, reported, e.callID); err != nil {
			logError(err, "report_penalty_failed", reported)
		}
	}

	msg := protocol.NewCallEnded(e.reason)
	for _, id := range notify {
		if !c.send(id, msg) {
			log.Debug().Str("session_id", id).Str("call_id", e.callID).Msg("call_ended_not_delivered")
		}
	}
	c.clearSessions(ctx, e.venter, e.listener)
	log.Info().Str("call_id", e.callID).Str("reason", e.reason).Msg("call_ended")
}
