package callgateway

import (
	"context"
	"time"

	"ventline/internal/pending"
	"ventline/internal/protocol"
)

// CheckMatch returns the buffered event for sessionID, or one rebuilt from
// its current call. nil means there is nothing to report.
func (c *Coordinator) CheckMatch(ctx context.Context, sessionID string) (*pending.Event, error) {
	ev, err := c.pending.Take(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ev != nil {
		return ev, nil
	}
	rt, ok := c.RuntimeFor(sessionID)
	if !ok {
		return nil, nil
	}
	out := &pending.Event{CallID: rt.CallID, PartnerID: rt.PartnerID, Duration: c.defaultDurationSeconds()}
	if rt.Active {
		startedAt := rt.StartTime.UnixMilli()
		out.StartedAt = &startedAt
		out.Duration = int64(rt.EndTime.Sub(rt.StartTime) / time.Second)
	}
	return out, nil
}

// PushPending answers a check_match frame. No event means no reply.
func (c *Coordinator) PushPending(ctx context.Context, sessionID string) {
	ev, err := c.CheckMatch(ctx, sessionID)
	if err != nil {
		logError(err, "check_match_failed", sessionID)
		return
	}
	if ev == nil {
		return
	}
	c.send(sessionID, ev.MatchFound())
}

// PendingMatch serves the request/response poll.
func (c *Coordinator) PendingMatch(ctx context.Context, sessionID string) (protocol.PendingMatch, error) {
	if sessionID == "" {
		return protocol.PendingMatch{}, ErrInvalidSession
	}
	ev, err := c.CheckMatch(ctx, sessionID)
	if err != nil {
		return protocol.PendingMatch{}, err
	}
	return ev.PendingMatch(), nil
}
